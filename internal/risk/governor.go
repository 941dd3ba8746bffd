package risk

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
	"github.com/mae-kelly/stay-fly/internal/ledger"
)

// Book is the slice of the ledger the governor acts on.
type Book interface {
	OpenPositions() []ledger.Position
	ClosePosition(ctx context.Context, token string, reason domain.ExitReason) error
	CloseAll(ctx context.Context, reason domain.ExitReason)
	Cash() float64
}

// Config bounds the governor's two circuit breakers.
type Config struct {
	MaxPositions     int
	StartingCapital  float64
	DrawdownFraction float64
	Interval         time.Duration
}

// Governor periodically enforces portfolio-level limits the per-signal
// checks cannot see: total position overflow and capital drawdown.
type Governor struct {
	cfg    Config
	book   Book
	bus    events.Publisher
	logger *zap.Logger
}

func NewGovernor(cfg Config, book Book, bus events.Publisher, logger *zap.Logger) *Governor {
	return &Governor{
		cfg:    cfg,
		book:   book,
		bus:    bus,
		logger: logger.Named("risk"),
	}
}

// Run drives Evaluate on the configured interval until the context ends.
func (g *Governor) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Evaluate(ctx)
		}
	}
}

// Evaluate runs one governance pass. Drawdown is checked first: if
// capital preservation triggers, the whole book goes regardless of the
// position count.
func (g *Governor) Evaluate(ctx context.Context) {
	cash := g.book.Cash()
	floor := g.cfg.StartingCapital * g.cfg.DrawdownFraction
	if cash < floor {
		g.logger.Warn("Capital preservation triggered, liquidating book",
			zap.Float64("cash", cash),
			zap.Float64("floor", floor))
		g.publishForced("", domain.ExitCapitalPreservation)
		g.book.CloseAll(ctx, domain.ExitCapitalPreservation)
		return
	}

	g.trimOverflow(ctx)
}

// trimOverflow force-closes lowest-confidence positions while the book
// exceeds 1.5x the configured cap. The cap itself is enforced per signal;
// this catches drift from races and governor-disabled windows.
func (g *Governor) trimOverflow(ctx context.Context) {
	limit := int(float64(g.cfg.MaxPositions) * 1.5)
	open := g.book.OpenPositions()
	if len(open) <= limit {
		return
	}

	sort.Slice(open, func(i, j int) bool {
		return open[i].Confidence < open[j].Confidence
	})

	excess := len(open) - limit
	for _, p := range open[:excess] {
		g.logger.Warn("Forcing out overflow position",
			zap.String("token", p.TokenAddress),
			zap.Float64("confidence", p.Confidence),
			zap.Int("open", len(open)),
			zap.Int("limit", limit))
		g.publishForced(p.TokenAddress, domain.ExitForcedLiquidation)
		if err := g.book.ClosePosition(ctx, p.TokenAddress, domain.ExitForcedLiquidation); err != nil {
			g.logger.Error("Forced close failed",
				zap.String("token", p.TokenAddress),
				zap.Error(err))
		}
	}
}

func (g *Governor) publishForced(token string, reason domain.ExitReason) {
	if g.bus == nil {
		return
	}
	_ = g.bus.Publish(events.ForcedLiquidationEvent{
		BaseEvent:    events.BaseEvent{EventType: events.ForcedLiquidation, EventTime: time.Now()},
		TokenAddress: token,
		Reason:       reason,
	})
}
