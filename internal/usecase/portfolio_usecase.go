package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
)

// PortfolioUseCase runs ledger mutations: load, apply, persist, announce.
type PortfolioUseCase struct {
	repo      LedgerRepository
	engine    *TransactionEngine
	gateway   *QuoteGateway
	converter *domain.Converter
	events    EventPublisher
	idGen     IDGenerator
	clock     Clock
	metrics   MetricsRecorder
	logger    zerolog.Logger
	locks     *OwnerLocks
}

// NewPortfolioUseCase creates a new PortfolioUseCase. gateway and events
// may be nil. locks must be the set shared with ValuationUseCase; nil
// gives the use case a private set.
func NewPortfolioUseCase(
	repo LedgerRepository,
	locks *OwnerLocks,
	engine *TransactionEngine,
	gateway *QuoteGateway,
	converter *domain.Converter,
	events EventPublisher,
	idGen IDGenerator,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *PortfolioUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if locks == nil {
		locks = NewOwnerLocks()
	}
	return &PortfolioUseCase{
		repo:      repo,
		engine:    engine,
		gateway:   gateway,
		converter: converter,
		events:    events,
		idGen:     idGen,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With().Str("component", "portfolio").Logger(),
		locks:     locks,
	}
}

type mutation func(ledger *domain.Ledger) (*domain.Ledger, *Receipt, error)

// Buy records a purchase. The trade currency comes from the quote gateway
// unless the input names one.
func (uc *PortfolioUseCase) Buy(ctx context.Context, input BuyInput) (*Receipt, error) {
	if input.Currency == "" {
		input.Currency = uc.tradeCurrency(ctx, input.Symbol)
	}
	return uc.mutate(ctx, input.Owner, OpBuy, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Buy(l, input)
	})
}

// Sell records a sale against the oldest lots.
func (uc *PortfolioUseCase) Sell(ctx context.Context, input SellInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpSell, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Sell(l, input)
	})
}

// RecordDividend records a dividend credit.
func (uc *PortfolioUseCase) RecordDividend(ctx context.Context, input DividendInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpDividend, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.RecordDividend(l, input)
	})
}

// Deposit credits cash.
func (uc *PortfolioUseCase) Deposit(ctx context.Context, input CashInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpDeposit, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Deposit(l, input)
	})
}

// Withdraw debits cash.
func (uc *PortfolioUseCase) Withdraw(ctx context.Context, input CashInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpWithdraw, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Withdraw(l, input)
	})
}

// Transfer records a signed internal cash movement.
func (uc *PortfolioUseCase) Transfer(ctx context.Context, input CashInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpTransfer, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Transfer(l, input)
	})
}

// ExchangeCurrency converts cash using rates refreshed from the gateway.
func (uc *PortfolioUseCase) ExchangeCurrency(ctx context.Context, input ExchangeInput) (*Receipt, error) {
	converter := uc.converter
	if uc.gateway != nil {
		converter = uc.gateway.Rates(ctx, uc.converter, input.From, input.To)
	}
	return uc.mutate(ctx, input.Owner, OpExchange, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.ExchangeCurrency(l, input, converter)
	})
}

// Watch adds or updates a watchlist entry.
func (uc *PortfolioUseCase) Watch(ctx context.Context, input WatchInput) (*Receipt, error) {
	return uc.mutate(ctx, input.Owner, OpWatch, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Watch(l, input)
	})
}

// Unwatch removes a watchlist entry.
func (uc *PortfolioUseCase) Unwatch(ctx context.Context, owner, symbol string) (*Receipt, error) {
	return uc.mutate(ctx, owner, OpUnwatch, func(l *domain.Ledger) (*domain.Ledger, *Receipt, error) {
		return uc.engine.Unwatch(l, symbol)
	})
}

// Ledger returns the owner's ledger. An unreadable store yields an empty
// ledger.
func (uc *PortfolioUseCase) Ledger(ctx context.Context, owner string) (*domain.Ledger, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}
	ledger, err := uc.repo.Load(ctx, owner)
	if err != nil {
		uc.logger.Warn().Err(err).Str("owner", owner).Msg("ledger unreadable, returning empty ledger")
		return domain.NewLedger(owner), nil
	}
	return ledger, nil
}

func (uc *PortfolioUseCase) mutate(ctx context.Context, owner, op string, apply mutation) (*Receipt, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(owner)
	defer unlock()

	ledger, err := uc.repo.Load(ctx, owner)
	if err != nil {
		uc.metrics.ObserveOperation(op, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}

	next, receipt, err := apply(ledger)
	if err != nil {
		uc.metrics.ObserveOperation(op, err)
		uc.logger.Info().Err(err).Str("owner", owner).Str("operation", op).Msg("operation rejected")
		return nil, err
	}

	if err := uc.repo.Save(ctx, next, receipt.Streams, receipt.Message); err != nil {
		uc.metrics.ObserveStoreFailure(op)
		uc.metrics.ObserveOperation(op, err)
		uc.logger.Error().Err(err).Str("owner", owner).Str("operation", op).Msg("failed to persist ledger")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	uc.metrics.ObserveOperation(op, nil)
	uc.logger.Info().Str("owner", owner).Str("operation", op).Msg(receipt.Message)
	uc.publish(ctx, receipt)

	return receipt, nil
}

func (uc *PortfolioUseCase) tradeCurrency(ctx context.Context, symbol string) string {
	if uc.gateway == nil {
		return uc.converter.Reference()
	}
	return uc.gateway.TradeCurrency(ctx, symbol, uc.converter.Reference())
}

func (uc *PortfolioUseCase) publish(ctx context.Context, receipt *Receipt) {
	if uc.events == nil {
		return
	}
	event := domain.Event{
		ID:        uc.idGen.Generate(),
		Owner:     receipt.Owner,
		Type:      eventType(receipt),
		Payload:   eventPayload(receipt),
		CreatedAt: uc.clock.Now(),
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		uc.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish event")
	}
}

func eventType(r *Receipt) string {
	switch r.Operation {
	case OpBuy, OpSell:
		return domain.EventTypeTradeExecuted
	case OpDividend:
		return domain.EventTypeDividendRecorded
	case OpExchange:
		return domain.EventTypeCurrencyExchanged
	case OpWatch, OpUnwatch:
		return domain.EventTypeWatchlistUpdated
	default:
		return domain.EventTypeCashMoved
	}
}

func eventPayload(r *Receipt) map[string]any {
	var body any
	switch {
	case r.Lot != nil:
		body = domain.TradeExecutedEvent{
			Side:     OpBuy,
			Symbol:   r.Lot.Symbol,
			Quantity: r.Lot.Quantity.String(),
			Price:    r.Lot.Price.String(),
			Currency: r.Lot.Currency,
		}
	case r.Sale != nil:
		body = domain.TradeExecutedEvent{
			Side:         OpSell,
			Symbol:       r.Sale.Symbol,
			Quantity:     r.Sale.Quantity.String(),
			Price:        r.Sale.Price.String(),
			Currency:     r.Sale.Currency,
			RealizedGain: r.Sale.RealizedGain.String(),
		}
	case r.Operation == OpExchange && len(r.Cash) == 2:
		body = domain.CurrencyExchangedEvent{
			From:      r.Cash[0].Currency,
			To:        r.Cash[1].Currency,
			Amount:    r.Cash[0].Amount.Neg().String(),
			Converted: r.Cash[1].Amount.String(),
		}
	case len(r.Cash) > 0:
		body = domain.CashMovedEvent{
			Type:     string(r.Cash[0].Type),
			Amount:   r.Cash[0].Amount.String(),
			Currency: r.Cash[0].Currency,
		}
	default:
		return map[string]any{"operation": r.Operation, "message": r.Message}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return map[string]any{"operation": r.Operation}
	}
	payload := map[string]any{}
	_ = json.Unmarshal(raw, &payload)
	payload["operation"] = r.Operation
	return payload
}

// Outcome collapses an operation result into a success flag and a short
// message suitable for display.
func Outcome(receipt *Receipt, err error) (bool, string) {
	if err != nil {
		return false, err.Error()
	}
	if receipt == nil {
		return false, "nothing was recorded"
	}
	return true, receipt.Message
}
