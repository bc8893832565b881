package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/magiccrafter/engineering-metrics-data-collector/common/id"
	"github.com/magiccrafter/engineering-metrics-data-collector/common/logger"
	"github.com/magiccrafter/engineering-metrics-data-collector/common/otel"
	"github.com/magiccrafter/engineering-metrics-data-collector/core/config"
	"github.com/magiccrafter/engineering-metrics-data-collector/core/db"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

// app holds what every subcommand needs: config, telemetry, logging and the database.
type app struct {
	cfg       config.Config
	telemetry *otel.Telemetry
	db        *db.DB
	stores    *store.Stores
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(config.ServiceTypeCollector)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// OTel must init before logger (logger uses the OTel log provider when configured)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		return nil, err
	}
	logger.Setup(cfg)

	if err := id.Init(1); err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	slog.DebugContext(ctx, "database connected")

	return &app{
		cfg:       cfg,
		telemetry: telemetry,
		db:        database,
		stores:    store.NewStores(database.Queries()),
	}, nil
}

func (a *app) close() {
	a.db.Close()
	if a.telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "otel shutdown error", "error", err)
	}
}
