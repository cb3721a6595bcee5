package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/gofolio/internal/adapter/http/dto"
	"github.com/iho/gofolio/internal/adapter/http/middleware"
	"github.com/iho/gofolio/internal/infrastructure/auth"
)

type options struct {
	baseURL string
	owner   string
	token   string
	timeout time.Duration
	raw     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "gofolio",
		Short:        "gofolio CLI tool",
		Long:         `A command line interface for the gofolio portfolio ledger API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("GOFOLIO_URL", "http://localhost:8080"), "Base URL of the gofolio API")
	rootCmd.PersistentFlags().StringVarP(&opts.owner, "owner", "o", os.Getenv("GOFOLIO_OWNER"), "Portfolio owner")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GOFOLIO_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.raw, "raw", false, "Print raw JSON instead of rendered output")

	rootCmd.AddCommand(
		ledgerCmd(opts),
		valuationCmd(opts),
		buyCmd(opts),
		sellCmd(opts),
		dividendCmd(opts),
		cashCmd(opts, "deposit", "Deposit cash"),
		cashCmd(opts, "withdraw", "Withdraw cash"),
		cashCmd(opts, "transfer", "Record an external transfer"),
		exchangeCmd(opts),
		watchlistCmd(opts),
		reconcileCmd(opts),
		reportCmd(opts),
		askCmd(opts),
		tokenCmd(),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiError is a non-2xx response.
type apiError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Body.Error, e.Status, e.Body.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// call sends body as JSON to the owner-scoped path and decodes the response
// into out. Mutating requests carry a fresh idempotency key.
func (o *options) call(method, path string, body, out any) error {
	if o.owner == "" {
		return fmt.Errorf("--owner is required")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(o.baseURL, "/") + "/api/v1/owners/" + url.PathEscape(o.owner) + path
	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(middleware.IdempotencyKeyHeader, ulid.Make().String())
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(payload, &apiErr.Body)
		if apiErr.Body.Message == "" {
			apiErr.Body.Message = strings.TrimSpace(string(payload))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDecimal(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return d, nil
}

func ledgerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show the owner's ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out dto.LedgerResponse
			if err := opts.call(http.MethodGet, "/ledger", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func valuationCmd(opts *options) *cobra.Command {
	var movers int
	cmd := &cobra.Command{
		Use:   "valuation",
		Short: "Value the portfolio at current quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/valuation"
			if movers > 0 {
				path += fmt.Sprintf("?movers=%d", movers)
			}
			var out dto.ValuationResponse
			if err := opts.call(http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&movers, "movers", 0, "Number of gainers and losers to list")
	return cmd
}

func printReceipt(cmd *cobra.Command, opts *options, out dto.ReceiptResponse) error {
	if opts.raw {
		return printJSON(cmd.OutOrStdout(), out)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	return err
}

func buyCmd(opts *options) *cobra.Command {
	req := dto.BuyRequest{}
	cmd := &cobra.Command{
		Use:   "buy SYMBOL QUANTITY PRICE",
		Short: "Buy shares",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Symbol = args[0]
			if req.Quantity, err = parseDecimal("quantity", args[1]); err != nil {
				return err
			}
			if req.Price, err = parseDecimal("price", args[2]); err != nil {
				return err
			}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPost, "/buy", req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
	cmd.Flags().StringVar(&req.Sector, "sector", "", "Sector of the holding")
	cmd.Flags().StringVar(&req.Note, "note", "", "Free-form note")
	return cmd
}

func sellCmd(opts *options) *cobra.Command {
	req := dto.SellRequest{}
	cmd := &cobra.Command{
		Use:   "sell SYMBOL QUANTITY PRICE",
		Short: "Sell shares, oldest lots first",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Symbol = args[0]
			if req.Quantity, err = parseDecimal("quantity", args[1]); err != nil {
				return err
			}
			if req.Price, err = parseDecimal("price", args[2]); err != nil {
				return err
			}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPost, "/sell", req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
	cmd.Flags().StringVar(&req.Currency, "currency", "", "Currency of the proceeds (default USD)")
	return cmd
}

func dividendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dividend SYMBOL AMOUNT CURRENCY",
		Short: "Record a dividend",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseDecimal("amount", args[1])
			if err != nil {
				return err
			}
			req := dto.DividendRequest{Symbol: args[0], Amount: amount, Currency: args[2]}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPost, "/dividends", req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
}

func cashCmd(opts *options, name, short string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   name + " AMOUNT CURRENCY",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseDecimal("amount", args[0])
			if err != nil {
				return err
			}
			req := dto.CashRequest{Amount: amount, Currency: args[1], Note: note}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPost, "/"+name, req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	return cmd
}

func exchangeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange AMOUNT FROM TO",
		Short: "Convert cash between currencies at the default rates",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseDecimal("amount", args[0])
			if err != nil {
				return err
			}
			req := dto.ExchangeRequest{Amount: amount, From: args[1], To: args[2]}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPost, "/exchange", req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
}

func watchlistCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "List watched symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []dto.WatchResponse
			if err := opts.call(http.MethodGet, "/watchlist", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	var buy, sell, note string
	add := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Add or update a watchlist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.WatchRequest{Symbol: args[0], Note: note}
			var err error
			if buy != "" {
				if req.BuyTarget, err = parseDecimal("buy target", buy); err != nil {
					return err
				}
			}
			if sell != "" {
				if req.SellTarget, err = parseDecimal("sell target", sell); err != nil {
					return err
				}
			}
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodPut, "/watchlist", req, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}
	add.Flags().StringVar(&buy, "buy", "", "Buy target price")
	add.Flags().StringVar(&sell, "sell", "", "Sell target price")
	add.Flags().StringVar(&note, "note", "", "Free-form note")

	remove := &cobra.Command{
		Use:   "remove SYMBOL",
		Short: "Remove a watchlist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out dto.ReceiptResponse
			if err := opts.call(http.MethodDelete, "/watchlist/"+url.PathEscape(args[0]), nil, &out); err != nil {
				return err
			}
			return printReceipt(cmd, opts, out)
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check ledger consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out dto.ReconciliationResponse
			if err := opts.call(http.MethodGet, "/reconcile", nil, &out); err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if out.Consistent {
				fmt.Fprintf(w, "Consistency check PASSED for %s\n", out.Owner)
				return nil
			}
			fmt.Fprintf(w, "Consistency check FAILED for %s\n", out.Owner)
			for _, issue := range out.Issues {
				fmt.Fprintf(w, "  - %s: %s\n", issue.Kind, issue.Detail)
			}
			return fmt.Errorf("%d issue(s) found", len(out.Issues))
		},
	}
}

func reportCmd(opts *options) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the portfolio report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/report"
			if send {
				path += "?send=true"
			}
			var out dto.ReportResponse
			if err := opts.call(http.MethodPost, path, nil, &out); err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), out)
			}

			if err := renderMarkdown(cmd.OutOrStdout(), out.Report); err != nil {
				return err
			}
			if send {
				fmt.Fprintf(cmd.OutOrStdout(), "delivered: %t (%s)\n", out.Sent, out.Detail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "Also deliver the report to the notification channel")
	return cmd
}

func renderMarkdown(w io.Writer, text string) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func askCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the assistant about the portfolio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.AssistantRequest{Question: strings.Join(args, " ")}
			var out dto.AssistantResponse
			if err := opts.call(http.MethodPost, "/assistant", req, &out); err != nil {
				return err
			}
			if opts.raw {
				return printJSON(cmd.OutOrStdout(), out)
			}
			return renderMarkdown(cmd.OutOrStdout(), out.Answer)
		},
	}
}

// tokenCmd signs a token locally with the server's secret.
func tokenCmd() *cobra.Command {
	var secret string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token OWNER",
		Short: "Generate a bearer token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
