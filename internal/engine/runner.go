package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	osignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mae-kelly/stay-fly/internal/config"
	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
	"github.com/mae-kelly/stay-fly/internal/executor"
	"github.com/mae-kelly/stay-fly/internal/export"
	"github.com/mae-kelly/stay-fly/internal/ledger"
	"github.com/mae-kelly/stay-fly/internal/logger"
	"github.com/mae-kelly/stay-fly/internal/metrics"
	"github.com/mae-kelly/stay-fly/internal/notify"
	"github.com/mae-kelly/stay-fly/internal/pricefeed"
	"github.com/mae-kelly/stay-fly/internal/risk"
	"github.com/mae-kelly/stay-fly/internal/safety"
	"github.com/mae-kelly/stay-fly/internal/signal"
	"github.com/mae-kelly/stay-fly/internal/storage"
	"github.com/mae-kelly/stay-fly/internal/storage/postgres"
	"github.com/mae-kelly/stay-fly/internal/stream"
	"github.com/mae-kelly/stay-fly/internal/venue"
	"github.com/mae-kelly/stay-fly/internal/watchset"
)

const historyMaxRecords = 1000

// Runner assembles every component from config and supervises the whole
// process: stream, pipeline, exit ticker, risk governor, bus and stores.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		logger:     logger,
		shutdownCh: make(chan os.Signal, 1),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	osignal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	// Persistence: optional, the engine runs fine without a database.
	var store storage.Store = storage.Nop{}
	if r.cfg.PostgresURL != "" {
		pg, err := postgres.NewStore(r.cfg.PostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("postgres connect failed: %w", err)
		}
		if err := pg.RunMigrations(); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		store = pg
	}
	defer store.Close()

	bus := events.NewBus(r.logger, 256)
	subs := notify.Attach(bus, notify.NewWebhookNotifier(r.cfg.WebhookURL, r.logger))
	subs = append(subs, storage.AttachPersistence(bus, store, r.logger)...)
	subs = append(subs, metrics.Attach(bus)...)
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	history, err := ledger.NewHistory("logs", historyMaxRecords, r.logger)
	if err != nil {
		return fmt.Errorf("trade history init failed: %w", err)
	}
	defer history.Close()

	venueClient := venue.NewClient(r.cfg.VenueBaseURL, venue.Credentials{
		APIKey:     r.cfg.VenueAPIKey,
		SecretKey:  r.cfg.VenueSecretKey,
		Passphrase: r.cfg.VenuePassphrase,
	}, r.logger)
	prices := pricefeed.NewDexScreener(r.cfg.PriceAPIURL, r.logger)
	oracle := safety.NewHoneypotOracle(r.cfg.SafetyAPIURL, r.logger)

	gateway := executor.NewGateway(executor.Config{
		MaxSlippagePct: r.cfg.MaxSlippagePct,
		MaxGasUnits:    r.cfg.MaxGasUnits,
		Retries:        r.cfg.Retries,
		WalletAddress:  r.cfg.WalletAddress,
	}, venueClient, venueClient, prices, r.logger)

	account := ledger.NewCapitalAccount(r.cfg.StartingCapital)
	var journal ledger.LineWriter
	milestoneJournal, err := logger.NewSafeFileWriter(
		filepath.Join("logs", "milestones.log"), 5*time.Second, r.logger)
	if err != nil {
		r.logger.Warn("Milestone journal unavailable", zap.Error(err))
	} else {
		journal = milestoneJournal
		defer milestoneJournal.Close()
	}
	milestones := ledger.NewMilestoneTracker(r.cfg.StartingCapital, journal)
	book := ledger.New(ledger.Config{
		TakeProfitMultiple: r.cfg.TakeProfitMultiplier,
		StopLossMultiple:   r.cfg.StopLossMultiplier,
		MaxHold:            r.cfg.MaxHold,
		CloseRetries:       r.cfg.Retries,
	}, account, gateway, prices, history, milestones, bus, r.logger)

	audit := storage.NewAudit(store, r.logger)
	validator := signal.NewValidator(signal.ValidatorConfig{
		MinConfidence: r.cfg.MinConfidence,
		MaxPositions:  r.cfg.MaxPositions,
		MinNotional:   r.cfg.MinNotionalETH,
	}, book, audit, r.logger)
	sizer := signal.NewSizer(signal.SizerConfig{
		MaxPositionFraction: r.cfg.MaxPositionFraction,
		MaxSingleFraction:   r.cfg.MaxSingleFraction,
		MinStakeUSD:         r.cfg.MinStakeUSD,
	})

	watch := watchset.New()
	refresher := watchset.NewRefresher(watch,
		watchset.NewFileDiscovery(r.cfg.WatchlistPath), r.cfg.RefreshInterval, r.logger)
	if err := refresher.RefreshOnce(runCtx); err != nil {
		r.logger.Warn("Initial watchlist load failed, starting empty", zap.Error(err))
	}
	r.logger.Info("📋 Watch set loaded", zap.Int("wallets", watch.Len()))

	rpc := stream.NewRPCClient(r.cfg.EthHTTPURL, 10*time.Second)
	watcher := stream.NewWatcher(r.cfg.EthWSURL, rpc, watch, r.logger)
	activities, err := watcher.Subscribe(runCtx)
	if err != nil {
		return fmt.Errorf("stream subscribe failed: %w", err)
	}

	governor := risk.NewGovernor(risk.Config{
		MaxPositions:     r.cfg.MaxPositions,
		StartingCapital:  r.cfg.StartingCapital,
		DrawdownFraction: r.cfg.DrawdownFraction,
		Interval:         r.cfg.RiskInterval,
	}, book, bus, r.logger)

	eng := New(Config{Workers: r.cfg.Workers},
		watch, signal.NewBuilder(), validator, sizer, oracle, gateway, book,
		audit, bus, r.logger)

	r.logger.Info("🚀 Engine starting",
		zap.Float64("starting_capital", r.cfg.StartingCapital),
		zap.Int("workers", r.cfg.Workers))

	g, gCtx := errgroup.WithContext(runCtx)
	if r.cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gCtx, r.cfg.MetricsAddr, r.logger) })
	}
	g.Go(func() error { return refresher.Run(gCtx) })
	g.Go(func() error { return book.RunTicker(gCtx, r.cfg.MonitorInterval) })
	g.Go(func() error { return governor.Run(gCtx) })
	g.Go(func() error { return eng.Run(gCtx, activities) })

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	r.shutdown(book, bus, history)
	return runErr
}

// shutdown makes one best-effort pass to flatten the book, drain the bus
// and write the session export, all within the configured grace period.
func (r *Runner) shutdown(book *ledger.Ledger, bus *events.Bus, history *ledger.History) {
	r.logger.Info("👋 Shutting down",
		zap.Duration("grace", r.cfg.ShutdownGrace),
		zap.Int("open_positions", book.OpenCount()))

	graceCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownGrace)
	defer cancel()

	book.CloseAll(graceCtx, domain.ExitShutdown)
	r.logger.Debug("Draining event bus", zap.Any("bus", bus.Stats()))
	if err := bus.Shutdown(graceCtx); err != nil {
		r.logger.Warn("Event bus drain incomplete", zap.Error(err))
	}

	exporter := export.NewTradeExporter(r.logger)
	if _, err := exporter.Export(history.Recent(historyMaxRecords), history.Statistics(), export.Options{
		Format:    export.FormatJSON,
		OutputDir: "logs/sessions",
	}); err != nil {
		r.logger.Debug("Session export skipped", zap.Error(err))
	}

	r.logger.Info("✅ Shutdown complete", zap.Float64("final_cash", book.Cash()))
}
