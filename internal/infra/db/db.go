// Package db подключение к Postgres и прогон миграций.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/Spok95/bom-tracker/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql драйвер "pgx" для goose
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// MigratePostgres накатывает migrations/postgres.
func MigratePostgres(ctx context.Context, dsn string, log *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return Migrate(ctx, sqlDB, goose.DialectPostgres, "postgres", log)
}

// Migrate накатывает каталог dir из встроенных миграций.
func Migrate(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, dir string, log *zap.Logger) error {
	sub, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, sqlDB, sub)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied", zap.String("dir", dir), zap.String("source", r.Source.Path), zap.Duration("took", r.Duration))
	}
	return nil
}
