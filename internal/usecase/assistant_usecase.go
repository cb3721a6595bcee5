package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
)

// ErrAssistantUnavailable is returned when no assistant is configured.
var ErrAssistantUnavailable = errors.New("assistant not configured")

const assistantInstructions = `You are a careful personal-finance assistant.
Answer the question using only the portfolio summary below.
Amounts are in the reference currency unless stated otherwise.
If the summary does not contain the answer, say so.`

// AssistantUseCase answers questions about an owner's portfolio.
type AssistantUseCase struct {
	valuation *ValuationUseCase
	assistant Assistant
	logger    zerolog.Logger
}

// NewAssistantUseCase creates a new AssistantUseCase. assistant may be nil.
func NewAssistantUseCase(valuation *ValuationUseCase, assistant Assistant, logger zerolog.Logger) *AssistantUseCase {
	return &AssistantUseCase{
		valuation: valuation,
		assistant: assistant,
		logger:    logger.With().Str("component", "assistant").Logger(),
	}
}

// Ask answers question with the owner's current valuation as context.
func (uc *AssistantUseCase) Ask(ctx context.Context, owner, question string) (string, error) {
	if uc.assistant == nil {
		return "", ErrAssistantUnavailable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyQuestion
	}

	v, err := uc.valuation.ComputeValuation(ctx, owner)
	if err != nil {
		return "", err
	}

	prompt := assistantInstructions + "\n\n" + FormatReport(v) + "\n\nQuestion: " + question
	answer, err := uc.assistant.Generate(ctx, prompt)
	if err != nil {
		uc.logger.Warn().Err(err).Str("owner", owner).Msg("assistant failed")
		return "", fmt.Errorf("assistant: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
