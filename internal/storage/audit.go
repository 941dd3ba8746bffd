package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
	"github.com/mae-kelly/stay-fly/internal/storage/models"
)

const writeTimeout = 3 * time.Second

// Audit adapts a Store to the validator's audit hook. Writes are
// best-effort: a failed insert is logged, never blocks validation.
type Audit struct {
	store  Store
	logger *zap.Logger
}

func NewAudit(store Store, logger *zap.Logger) *Audit {
	return &Audit{store: store, logger: logger.Named("audit")}
}

// RecordSignal persists one validation verdict.
func (a *Audit) RecordSignal(sig *domain.TradeSignal, accepted bool, reason domain.RejectReason) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := a.store.SaveSignalAudit(ctx, &models.SignalAudit{
		SourceTxHash:  sig.SourceTxHash,
		WalletAddress: sig.WalletAddress,
		TokenAddress:  sig.TokenAddress,
		Confidence:    sig.Confidence,
		NotionalETH:   sig.Notional,
		Accepted:      accepted,
		RejectReason:  string(reason),
		DetectedAt:    sig.DetectedAt,
	})
	if err != nil {
		a.logger.Warn("Failed to persist signal audit",
			zap.String("tx", sig.SourceTxHash),
			zap.Error(err))
	}
}

// AttachPersistence subscribes trade and milestone persistence to the
// bus. Handler failures are logged by the bus and do not stall the
// pipeline.
func AttachPersistence(bus *events.Bus, store Store, logger *zap.Logger) []events.Subscription {
	log := logger.Named("persistence")

	return []events.Subscription{
		bus.SubscribeFunc(events.PositionOpened, func(ctx context.Context, evt events.Event) error {
			e, ok := evt.(events.PositionOpenedEvent)
			if !ok {
				return nil
			}
			return store.SaveTrade(ctx, &models.Trade{
				TradeID:      e.PositionID,
				TokenAddress: e.TokenAddress,
				Action:       "open",
				StakeUSD:     e.StakeUSD,
				Quantity:     e.Quantity,
				Price:        e.EntryPrice,
				TxHash:       e.TxHash,
			})
		}),
		bus.SubscribeFunc(events.PositionClosed, func(ctx context.Context, evt events.Event) error {
			e, ok := evt.(events.PositionClosedEvent)
			if !ok {
				return nil
			}
			return store.SaveTrade(ctx, &models.Trade{
				TradeID:      e.PositionID + ":close",
				TokenAddress: e.TokenAddress,
				Action:       "close",
				StakeUSD:     e.ProceedsUSD - e.RealizedPnL,
				Price:        e.ExitPrice,
				PnL:          e.RealizedPnL,
				ExitReason:   string(e.Reason),
				TxHash:       e.TxHash,
			})
		}),
		bus.SubscribeFunc(events.MilestoneReached, func(ctx context.Context, evt events.Event) error {
			e, ok := evt.(events.MilestoneReachedEvent)
			if !ok {
				return nil
			}
			log.Info("Persisting capital milestone", zap.Float64("multiple", e.Multiple))
			return store.SaveMilestone(ctx, &models.CapitalMilestone{
				Multiple:   e.Multiple,
				CapitalUSD: e.CapitalUSD,
			})
		}),
	}
}
