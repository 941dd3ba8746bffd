package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/config"
	"github.com/mae-kelly/stay-fly/internal/engine"
	"github.com/mae-kelly/stay-fly/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("💥 Configuration invalid, refusing to start",
			zap.String("path", *configPath),
			zap.Error(err))
	}

	if cfg.DebugLogging && !logCfg.Development {
		logCfg.Development = true
		if debugLog, err := logger.New(logCfg); err == nil {
			_ = log.Sync()
			log = debugLog
		}
	}

	log.Info("Starting whale mirror engine",
		zap.String("config", *configPath))

	runner := engine.NewRunner(cfg, log.Logger)
	if err := runner.Run(context.Background()); err != nil {
		log.Error("Engine exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
