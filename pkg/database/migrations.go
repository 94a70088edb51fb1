package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"routeopt/pkg/config"
	"routeopt/pkg/logger"
)

// Migrator применяет goose-миграции, встроенные в бинарник через embed.FS
type Migrator struct {
	pool       *pgxpool.Pool
	migrations embed.FS
	dir        string
}

// NewMigrator создаёт мигратор; dir - каталог миграций внутри migrations
func NewMigrator(pool *pgxpool.Pool, migrations embed.FS, dir string) *Migrator {
	return &Migrator{pool: pool, migrations: migrations, dir: dir}
}

// withGoose открывает database/sql поверх пула и настраивает goose.
// goose работает только с database/sql, поэтому соединение берётся
// через stdlib-адаптер pgx.
func (m *Migrator) withGoose(fn func(db *sql.DB) error) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn(db)
}

// Up применяет все недостающие миграции
func (m *Migrator) Up(ctx context.Context) error {
	err := m.withGoose(func(db *sql.DB) error {
		return goose.UpContext(ctx, db, m.dir)
	})
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Log.Info("migrations applied")
	return nil
}

// Down откатывает последнюю миграцию
func (m *Migrator) Down(ctx context.Context) error {
	err := m.withGoose(func(db *sql.DB) error {
		return goose.DownContext(ctx, db, m.dir)
	})
	if err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}

	logger.Log.Info("migration rolled back")
	return nil
}

// Status печатает состояние миграций
func (m *Migrator) Status(ctx context.Context) error {
	return m.withGoose(func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, m.dir)
	})
}

// RunMigrations применяет миграции, если в конфигурации включён auto_migrate
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, migrations embed.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("auto-migration disabled")
		return nil
	}
	return NewMigrator(pool, migrations, dir).Up(ctx)
}
