package di

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-cms-ci/internal/runtimeconfig"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// OpenDB opens the database described by cfg. sqlite connections are capped
// at one so in-memory databases survive between queries.
func OpenDB(cfg runtimeconfig.Config, logger interfaces.Logger) (*bun.DB, error) {
	var (
		driver string
		db     *bun.DB
	)
	switch cfg.DialectName() {
	case "postgres":
		driver = "pgx"
	default:
		driver = "sqlite3"
	}

	sqlDB, err := sql.Open(driver, strings.TrimSpace(cfg.Database.DSN))
	if err != nil {
		return nil, fmt.Errorf("di: open %s: %w", driver, err)
	}

	switch driver {
	case "pgx":
		db = bun.NewDB(sqlDB, pgdialect.New())
	default:
		db = bun.NewDB(sqlDB, sqlitedialect.New())
		db.SetMaxOpenConns(1)
	}
	if cfg.Database.Debug && logger != nil {
		db.AddQueryHook(queryLogger{logger: logger})
	}
	return db, nil
}

type queryLogger struct {
	logger interfaces.Logger
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{
		"query", event.Query,
		"duration_ms", time.Since(event.StartTime).Milliseconds(),
	}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		h.logger.Warn("db.query.failed", append(args, "error", event.Err)...)
		return
	}
	h.logger.Trace("db.query", args...)
}
