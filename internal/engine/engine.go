package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
	"github.com/mae-kelly/stay-fly/internal/ledger"
	"github.com/mae-kelly/stay-fly/internal/safety"
	"github.com/mae-kelly/stay-fly/internal/signal"
	"github.com/mae-kelly/stay-fly/internal/watchset"
)

// BuyExecutor submits a mirrored buy.
type BuyExecutor interface {
	ExecuteBuy(ctx context.Context, tokenAddress string, stakeUSD float64) *domain.TradeOutcome
}

// Book is the slice of the ledger the pipeline needs.
type Book interface {
	OpenPosition(sig *domain.TradeSignal, stakeUSD float64, outcome *domain.TradeOutcome) (*ledger.Position, error)
	Cash() float64
}

// Config bounds the execution stage.
type Config struct {
	Workers   int
	QueueSize int
}

// Engine runs the signal pipeline: classify observed activity, validate,
// safety-check, size and hand off to a bounded worker pool for
// execution. One token is in flight at most once; a second signal for a
// token being executed is rejected, not queued.
type Engine struct {
	cfg       Config
	watch     *watchset.WatchSet
	builder   *signal.Builder
	validator *signal.Validator
	sizer     *signal.Sizer
	safety    safety.Oracle
	gateway   BuyExecutor
	book      Book
	audit     signal.Auditor
	bus       events.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

func New(cfg Config, watch *watchset.WatchSet, builder *signal.Builder, validator *signal.Validator,
	sizer *signal.Sizer, oracle safety.Oracle, gateway BuyExecutor, book Book,
	audit signal.Auditor, bus events.Publisher, logger *zap.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Engine{
		cfg:       cfg,
		watch:     watch,
		builder:   builder,
		validator: validator,
		sizer:     sizer,
		safety:    oracle,
		gateway:   gateway,
		book:      book,
		audit:     audit,
		bus:       bus,
		logger:    logger.Named("engine"),
		inflight:  make(map[string]bool),
	}
}

type job struct {
	sig   *domain.TradeSignal
	stake float64
}

// Run consumes the activity stream until it closes or the context ends.
func (e *Engine) Run(ctx context.Context, activities <-chan domain.ObservedActivity) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, e.cfg.QueueSize)

	g.Go(func() error {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case act, ok := <-activities:
				if !ok {
					return nil
				}
				e.handleActivity(ctx, &act, jobs)
			}
		}
	})

	e.logger.Info("🚀 Starting execution workers", zap.Int("workers", e.cfg.Workers))
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				e.execute(ctx, j)
			}
			return nil
		})
	}

	return g.Wait()
}

// handleActivity walks one observed transaction through classification,
// validation, the safety oracle and sizing, then queues it for
// execution.
func (e *Engine) handleActivity(ctx context.Context, act *domain.ObservedActivity, jobs chan<- job) {
	wallet, ok := e.watch.Lookup(act.From)
	if !ok {
		return
	}

	sig, ok := e.builder.Build(act, wallet.Confidence)
	if !ok {
		return
	}

	e.logger.Info("Signal detected",
		zap.String("wallet", sig.WalletAddress),
		zap.String("token", sig.TokenAddress),
		zap.Float64("notional_eth", sig.Notional),
		zap.Float64("confidence", sig.Confidence))
	e.publish(events.SignalDetectedEvent{
		BaseEvent:     events.BaseEvent{EventType: events.SignalDetected, EventTime: time.Now()},
		WalletAddress: sig.WalletAddress,
		TokenAddress:  sig.TokenAddress,
		Confidence:    sig.Confidence,
		NotionalETH:   sig.Notional,
		SourceTxHash:  sig.SourceTxHash,
	})

	if reason, ok := e.validator.Validate(sig); !ok {
		e.publishRejected(sig, reason)
		return
	}

	safe, score, err := e.safety.IsSafeToTrade(ctx, sig.TokenAddress)
	if err != nil || !safe {
		e.logger.Warn("Token failed safety check",
			zap.String("token", sig.TokenAddress),
			zap.Float64("score", score),
			zap.Error(err))
		e.audit.RecordSignal(sig, false, domain.RejectUnsafeToken)
		e.publishRejected(sig, domain.RejectUnsafeToken)
		return
	}

	stake := e.sizer.Size(e.book.Cash(), sig.Confidence)
	if stake <= 0 {
		e.audit.RecordSignal(sig, false, domain.RejectZeroStake)
		e.publishRejected(sig, domain.RejectZeroStake)
		return
	}

	if !e.acquire(sig.TokenAddress) {
		e.audit.RecordSignal(sig, false, domain.RejectExistingPosition)
		e.publishRejected(sig, domain.RejectExistingPosition)
		return
	}

	select {
	case jobs <- job{sig: sig, stake: stake}:
	case <-ctx.Done():
		e.release(sig.TokenAddress)
	}
}

func (e *Engine) execute(ctx context.Context, j job) {
	defer e.release(j.sig.TokenAddress)

	outcome := e.gateway.ExecuteBuy(ctx, j.sig.TokenAddress, j.stake)
	if !outcome.Success() {
		e.logger.Warn("Execution did not complete",
			zap.String("token", j.sig.TokenAddress),
			zap.String("status", string(outcome.Status)),
			zap.String("reason", outcome.Reason))
		return
	}

	if _, err := e.book.OpenPosition(j.sig, j.stake, outcome); err != nil {
		e.logger.Error("Failed to book executed trade",
			zap.String("token", j.sig.TokenAddress),
			zap.Error(err))
	}
}

// acquire marks a token as having an execution in flight. Returns false
// if one is already running.
func (e *Engine) acquire(token string) bool {
	token = strings.ToLower(token)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[token] {
		return false
	}
	e.inflight[token] = true
	return true
}

func (e *Engine) release(token string) {
	token = strings.ToLower(token)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, token)
}

func (e *Engine) publishRejected(sig *domain.TradeSignal, reason domain.RejectReason) {
	e.logger.Debug("Signal rejected",
		zap.String("token", sig.TokenAddress),
		zap.String("reason", string(reason)))
	e.publish(events.SignalRejectedEvent{
		BaseEvent:     events.BaseEvent{EventType: events.SignalRejected, EventTime: time.Now()},
		WalletAddress: sig.WalletAddress,
		TokenAddress:  sig.TokenAddress,
		SourceTxHash:  sig.SourceTxHash,
		Reason:        reason,
	})
}

func (e *Engine) publish(evt events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(evt)
}
