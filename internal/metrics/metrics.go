package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/events"
)

var (
	signalsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayfly_signals_detected_total",
		Help: "Classified buy signals from watched wallets",
	})
	signalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayfly_signals_rejected_total",
		Help: "Signals turned away before execution, by reason",
	}, []string{"reason"})
	positionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayfly_positions_opened_total",
		Help: "Mirrored positions committed to the book",
	})
	positionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayfly_positions_closed_total",
		Help: "Positions removed from the book, by exit reason",
	}, []string{"reason"})
	realizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stayfly_realized_pnl_usd",
		Help: "Cumulative realized profit and loss in USD, losses included",
	})
	interventions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayfly_interventions_total",
		Help: "Closes that exhausted retries and paged an operator",
	})
)

// Attach subscribes the counters to the event bus.
func Attach(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.SubscribeFunc(events.SignalDetected, func(context.Context, events.Event) error {
			signalsDetected.Inc()
			return nil
		}),
		bus.SubscribeFunc(events.SignalRejected, func(_ context.Context, evt events.Event) error {
			if e, ok := evt.(events.SignalRejectedEvent); ok {
				signalsRejected.WithLabelValues(string(e.Reason)).Inc()
			}
			return nil
		}),
		bus.SubscribeFunc(events.PositionOpened, func(context.Context, events.Event) error {
			positionsOpened.Inc()
			return nil
		}),
		bus.SubscribeFunc(events.PositionClosed, func(_ context.Context, evt events.Event) error {
			if e, ok := evt.(events.PositionClosedEvent); ok {
				positionsClosed.WithLabelValues(string(e.Reason)).Inc()
				realizedPnL.Add(e.RealizedPnL)
			}
			return nil
		}),
		bus.SubscribeFunc(events.InterventionRequired, func(context.Context, events.Event) error {
			interventions.Inc()
			return nil
		}),
	}
}

// Serve exposes /metrics on addr until the context ends.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
