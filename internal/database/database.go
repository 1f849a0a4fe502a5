// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn, opts)      – pool with tunables and a retried Ping.
//	Wrap(db, driver)          – adopt an existing *sql.DB (tests, sqlmock).
//
// Open pings the database before returning so callers can fail fast during
// bootstrap.  Callers should Close() the returned *sqlx.DB on shutdown.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool.  Zero fields take the defaults below.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Retries is how many extra Ping attempts follow a failed first one.
	Retries      int
	RetryBackoff time.Duration
}

const (
	defaultMaxOpen      = 15
	defaultMaxIdle      = 5
	defaultLifetime     = 30 * time.Minute
	defaultRetryBackoff = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = defaultMaxOpen
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = defaultMaxIdle
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = defaultLifetime
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// sqlOpen is swapped in tests.
var sqlOpen = sql.Open

// Open returns a *sqlx.DB for dsn after a successful Ping.
func Open(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	raw, err := sqlOpen("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db := Wrap(raw, "mysql", opts)
	if err := ping(ctx, db, opts.withDefaults()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Wrap applies opts to an existing *sql.DB.
func Wrap(raw *sql.DB, driver string, opts Options) *sqlx.DB {
	opts = opts.withDefaults()
	db := sqlx.NewDb(raw, driver)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db
}

// ping retries with linear backoff until it succeeds, attempts run out, or
// ctx ends.
func ping(ctx context.Context, db *sqlx.DB, opts Options) error {
	var err error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			zap.S().Warnw("database ping failed, retrying",
				"attempt", attempt, "of", opts.Retries, "err", err)
			t := time.NewTimer(time.Duration(attempt) * opts.RetryBackoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("database ping: %w", ctx.Err())
			case <-t.C:
			}
		}
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("database ping after %d attempts: %w", opts.Retries+1, err)
}
