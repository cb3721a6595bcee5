package handler

import (
	"context"
	"net/http"

	"github.com/iho/gofolio/internal/adapter/http/dto"
)

// ReportService builds and delivers the daily report.
type ReportService interface {
	Build(ctx context.Context, owner string) (string, error)
	Deliver(ctx context.Context, owner, text string) (bool, string)
}

// AssistantService answers questions about a portfolio.
type AssistantService interface {
	Ask(ctx context.Context, owner, question string) (string, error)
}

// ReportHandler serves the report and assistant endpoints.
type ReportHandler struct {
	reportUC    ReportService
	assistantUC AssistantService
}

// NewReportHandler creates a new ReportHandler. assistantUC may be nil when
// no assistant is configured.
func NewReportHandler(reportUC ReportService, assistantUC AssistantService) *ReportHandler {
	return &ReportHandler{reportUC: reportUC, assistantUC: assistantUC}
}

// Report builds the owner's report. With ?send=true it is also delivered
// through the notifier.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}

	text, err := h.reportUC.Build(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "failed to build report", err)
		return
	}

	resp := dto.ReportResponse{Report: text}
	if r.URL.Query().Get("send") == "true" {
		resp.Sent, resp.Detail = h.reportUC.Deliver(r.Context(), owner, text)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ask forwards a question to the assistant.
func (h *ReportHandler) Ask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	if h.assistantUC == nil {
		writeError(w, http.StatusNotImplemented, "assistant is not configured", "")
		return
	}
	var req dto.AssistantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answer, err := h.assistantUC.Ask(r.Context(), owner, req.Question)
	if err != nil {
		writeDomainError(w, "assistant failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AssistantResponse{Answer: answer})
}
