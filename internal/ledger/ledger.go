package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
	"github.com/mae-kelly/stay-fly/internal/pricefeed"
)

// Seller liquidates a holding back into the base asset.
type Seller interface {
	ExecuteSell(ctx context.Context, tokenAddress string, quantity float64) *domain.TradeOutcome
}

// Recorder receives one record per open and per close.
type Recorder interface {
	Record(rec TradeRecord) error
}

// Config carries the exit policy.
type Config struct {
	TakeProfitMultiple float64
	StopLossMultiple   float64
	MaxHold            time.Duration
	CloseRetries       int
}

// Ledger is the single owner of open positions and the capital account.
// All state transitions happen under its lock; sells happen outside it so
// a slow venue never blocks the book.
type Ledger struct {
	cfg        Config
	account    *CapitalAccount
	seller     Seller
	prices     pricefeed.Source
	history    Recorder
	milestones *MilestoneTracker
	bus        events.Publisher
	logger     *zap.Logger

	mu   sync.Mutex
	open map[string]*Position
}

func New(cfg Config, account *CapitalAccount, seller Seller, prices pricefeed.Source,
	history Recorder, milestones *MilestoneTracker, bus events.Publisher, logger *zap.Logger) *Ledger {
	return &Ledger{
		cfg:        cfg,
		account:    account,
		seller:     seller,
		prices:     prices,
		history:    history,
		milestones: milestones,
		bus:        bus,
		logger:     logger.Named("ledger"),
		open:       make(map[string]*Position),
	}
}

// HasPosition reports whether a position for the token is on the book.
func (l *Ledger) HasPosition(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.open[strings.ToLower(token)]
	return ok
}

// OpenCount returns the number of positions on the book.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// Cash returns the available balance.
func (l *Ledger) Cash() float64 { return l.account.Cash() }

// OpenPositions returns copies of every position currently on the book.
func (l *Ledger) OpenPositions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, *p)
	}
	return out
}

// OpenPosition commits an executed buy to the book. The token is
// re-checked against the book at commit time: execution runs outside the
// lock, so a racing open for the same token loses here rather than
// double-booking. A debit the account cannot cover fails the open but
// leaves the process running.
func (l *Ledger) OpenPosition(sig *domain.TradeSignal, stakeUSD float64, outcome *domain.TradeOutcome) (*Position, error) {
	if !outcome.Success() {
		return nil, domain.NewFault(domain.FaultLedger,
			"cannot book an unexecuted trade", nil)
	}

	token := strings.ToLower(sig.TokenAddress)

	l.mu.Lock()
	if _, ok := l.open[token]; ok {
		l.mu.Unlock()
		return nil, domain.NewFault(domain.FaultLedger,
			fmt.Sprintf("position already open for %s", token), nil)
	}

	if err := l.account.Debit(stakeUSD); err != nil {
		l.mu.Unlock()
		l.logger.Error("LEDGER INVARIANT VIOLATION: stake debit refused",
			zap.String("token", token),
			zap.Float64("stake_usd", stakeUSD),
			zap.Float64("cash", l.account.Cash()),
			zap.Error(err))
		return nil, err
	}

	p := &Position{
		ID:           uuid.New().String(),
		TokenAddress: token,
		SourceWallet: sig.WalletAddress,
		Confidence:   sig.Confidence,
		StakeUSD:     stakeUSD,
		EntryPrice:   outcome.EffectivePrice,
		Quantity:     outcome.AmountOut,
		OpenedAt:     time.Now(),
		EntryTx:      outcome.TxHash,
		State:        StateMonitoring,
	}
	l.open[token] = p
	snapshot := *p
	l.mu.Unlock()

	l.logger.Info("Position opened",
		zap.String("token", token),
		zap.String("position_id", p.ID),
		zap.Float64("stake_usd", stakeUSD),
		zap.Float64("entry_price", p.EntryPrice),
		zap.Float64("quantity", p.Quantity))

	if l.history != nil {
		_ = l.history.Record(TradeRecord{
			ID:           p.ID,
			Timestamp:    p.OpenedAt,
			SourceWallet: p.SourceWallet,
			TokenAddress: token,
			Action:       "open",
			StakeUSD:     stakeUSD,
			Quantity:     p.Quantity,
			Price:        p.EntryPrice,
			TxHash:       p.EntryTx,
		})
	}
	l.publish(events.PositionOpenedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.PositionOpened, EventTime: time.Now()},
		PositionID:   p.ID,
		TokenAddress: token,
		StakeUSD:     stakeUSD,
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		TxHash:       p.EntryTx,
	})

	return &snapshot, nil
}

// Tick evaluates the exit policy for every monitored position. Checks run
// in priority order: take profit, stop loss, time limit.
func (l *Ledger) Tick(ctx context.Context) {
	now := time.Now()
	for _, p := range l.OpenPositions() {
		if p.State != StateMonitoring {
			continue
		}

		price, err := l.prices.PriceUSD(ctx, p.TokenAddress)
		if err != nil || price <= 0 {
			l.logger.Debug("Price unavailable, skipping exit check",
				zap.String("token", p.TokenAddress),
				zap.Error(err))
			continue
		}

		multiple := p.Multiple(price)
		var reason domain.ExitReason
		switch {
		case multiple >= l.cfg.TakeProfitMultiple:
			reason = domain.ExitTakeProfit
		case multiple <= l.cfg.StopLossMultiple:
			reason = domain.ExitStopLoss
		case p.Age(now) >= l.cfg.MaxHold:
			reason = domain.ExitTimeLimit
		default:
			continue
		}

		l.logger.Info("Exit triggered",
			zap.String("token", p.TokenAddress),
			zap.String("reason", string(reason)),
			zap.Float64("multiple", multiple))

		if err := l.ClosePosition(ctx, p.TokenAddress, reason); err != nil {
			l.logger.Error("Close failed",
				zap.String("token", p.TokenAddress),
				zap.Error(err))
		}
	}
}

// RunTicker drives Tick at the given interval until the context ends.
func (l *Ledger) RunTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// ClosePosition liquidates one position. Concurrent calls for the same
// token are collapsed: the first transitions the position to Closing and
// proceeds, the rest are no-ops. Exactly one credit and one history
// record happen per close.
func (l *Ledger) ClosePosition(ctx context.Context, token string, reason domain.ExitReason) error {
	token = strings.ToLower(token)

	l.mu.Lock()
	p, ok := l.open[token]
	if !ok || p.State == StateClosing || p.State == StateClosed {
		l.mu.Unlock()
		return nil
	}
	p.State = StateClosing
	quantity := p.Quantity
	l.mu.Unlock()

	outcome, err := l.sellWithRetry(ctx, token, quantity)
	if err != nil {
		l.mu.Lock()
		p.State = StateMonitoring
		l.mu.Unlock()

		l.logger.Error("MANUAL INTERVENTION REQUIRED: close retries exhausted",
			zap.String("token", token),
			zap.String("position_id", p.ID),
			zap.Error(err))
		l.publish(events.InterventionRequiredEvent{
			BaseEvent:    events.BaseEvent{EventType: events.InterventionRequired, EventTime: time.Now()},
			PositionID:   p.ID,
			TokenAddress: token,
			Detail:       err.Error(),
		})
		return err
	}

	now := time.Now()

	l.mu.Lock()
	p.State = StateClosed
	p.ExitPrice = outcome.EffectivePrice
	p.ProceedsUSD = outcome.AmountOut
	p.RealizedPnL = outcome.AmountOut - p.StakeUSD
	p.ExitReason = reason
	p.ClosedAt = now
	p.ExitTx = outcome.TxHash
	closed := *p
	delete(l.open, token)
	l.mu.Unlock()

	if err := l.account.Credit(closed.ProceedsUSD); err != nil {
		l.logger.Error("LEDGER INVARIANT VIOLATION: proceeds credit refused",
			zap.String("token", token),
			zap.Error(err))
	}

	l.logger.Info("Position closed",
		zap.String("token", token),
		zap.String("reason", string(reason)),
		zap.Float64("proceeds_usd", closed.ProceedsUSD),
		zap.Float64("pnl", closed.RealizedPnL),
		zap.Float64("cash", l.account.Cash()))

	if l.history != nil {
		pnlPct := 0.0
		if closed.StakeUSD > 0 {
			pnlPct = closed.RealizedPnL / closed.StakeUSD * 100
		}
		_ = l.history.Record(TradeRecord{
			ID:           closed.ID,
			Timestamp:    now,
			SourceWallet: closed.SourceWallet,
			TokenAddress: token,
			Action:       "close",
			StakeUSD:     closed.StakeUSD,
			Quantity:     closed.Quantity,
			Price:        closed.ExitPrice,
			TxHash:       closed.ExitTx,
			ExitReason:   reason,
			EntryPrice:   closed.EntryPrice,
			PnL:          closed.RealizedPnL,
			PnLPercent:   pnlPct,
			HoldTime:     formatHoldTime(now.Sub(closed.OpenedAt)),
		})
	}
	l.publish(events.PositionClosedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.PositionClosed, EventTime: now},
		PositionID:   closed.ID,
		TokenAddress: token,
		Reason:       reason,
		ExitPrice:    closed.ExitPrice,
		ProceedsUSD:  closed.ProceedsUSD,
		RealizedPnL:  closed.RealizedPnL,
		Multiple:     closed.Multiple(closed.ExitPrice),
		HeldFor:      now.Sub(closed.OpenedAt),
		TxHash:       closed.ExitTx,
	})

	l.checkMilestones()
	return nil
}

// CloseAll makes a best-effort pass over the book. Used on shutdown and
// for capital-preservation liquidation; failures are logged and the pass
// continues.
func (l *Ledger) CloseAll(ctx context.Context, reason domain.ExitReason) {
	for _, p := range l.OpenPositions() {
		if err := l.ClosePosition(ctx, p.TokenAddress, reason); err != nil {
			l.logger.Warn("Best-effort close failed",
				zap.String("token", p.TokenAddress),
				zap.Error(err))
		}
	}
}

func (l *Ledger) sellWithRetry(ctx context.Context, token string, quantity float64) (*domain.TradeOutcome, error) {
	op := func() (*domain.TradeOutcome, error) {
		outcome := l.seller.ExecuteSell(ctx, token, quantity)
		if !outcome.Success() {
			return nil, fmt.Errorf("sell %s: %s", token, outcome.Reason)
		}
		return outcome, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(l.cfg.CloseRetries)+1),
	)
}

func (l *Ledger) checkMilestones() {
	if l.milestones == nil {
		return
	}
	for _, ms := range l.milestones.Check(l.account.Cash()) {
		l.logger.Info("Capital milestone reached",
			zap.Float64("multiple", ms.Multiple),
			zap.Float64("capital_usd", ms.CapitalUSD))
		l.publish(events.MilestoneReachedEvent{
			BaseEvent:  events.BaseEvent{EventType: events.MilestoneReached, EventTime: time.Now()},
			Multiple:   ms.Multiple,
			CapitalUSD: ms.CapitalUSD,
		})
	}
}

func (l *Ledger) publish(evt events.Event) {
	if l.bus == nil {
		return
	}
	_ = l.bus.Publish(evt)
}
