package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/videoshop/core/logger"
)

// Connect opens the database, configures the pool, and retries until the server answers or wait elapses.
func Connect(ctx context.Context, cfg Config, wait time.Duration) (*sqlx.DB, error) {
	if cfg.Driver == DriverSQLite {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	start := time.Now()
	deadline := start.Add(wait)
	var (
		db  *sqlx.DB
		err error
	)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		db, err = sqlx.ConnectContext(dialCtx, cfg.Driver, cfg.DSN())
		cancel()
		if err == nil {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			logger.DB.Error("db connect failed",
				slog.String("event", "db.connect"),
				slog.String("driver", cfg.Driver),
				slog.String("db", cfg.Target()),
				slog.Int("attempts", attempt),
				slog.Duration("duration", logger.Took(start)),
				logger.Err(err),
			)
			return nil, fmt.Errorf("db connect: %w", err)
		}
		logger.DB.Warn("db not ready",
			slog.String("event", "db.connect"),
			slog.String("driver", cfg.Driver),
			slog.Int("attempts", attempt),
			logger.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)
	return db, nil
}
