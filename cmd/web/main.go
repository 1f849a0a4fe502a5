// cmd/web/main.go
//
// Intake – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Load config (YAML + INTAKE_* env + vault: secrets).
//
//  3. Start daily rotating logger (tees to console when running in a TTY).
//
//  4. Open the intake DB and build the block-list and record stores.
//
//  5. Build the blob store, ban gate, and session cache.
//
//  6. Mount routes:
//
//     • /metrics      – Prometheus
//     • /healthz      – DB ping
//     • /uploads/*    – stored photos (public, cacheable, nosniff)
//     • /sessions/*   – intake session API (security headers, CSRF)
//
//  7. Serve until SIGINT or SIGTERM, then drain and stop the cache.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap/zapcore"

	"github.com/yanizio/intake/internal/banlist"
	"github.com/yanizio/intake/internal/blob"
	"github.com/yanizio/intake/internal/config"
	"github.com/yanizio/intake/internal/csrf"
	"github.com/yanizio/intake/internal/database"
	"github.com/yanizio/intake/internal/intake"
	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/middleware"
	"github.com/yanizio/intake/internal/record"
	"github.com/yanizio/intake/internal/server"
	"github.com/yanizio/intake/internal/submission"
)

const serverEnvPath = "/usr/local/etc/intake/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	logOut, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Tee: runningInTTY(), Level: level})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	//
	// ── 3.  Database and stores ─────────────────────────────────────────
	//
	dsn, err := cfg.Database.DSNWithPassword()
	if err != nil {
		logOut.Fatalw("database dsn", "err", err)
	}
	logOut.Infow("connecting to intake DB")
	db, err := database.Open(ctx, dsn, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		Retries:      5,
	})
	if err != nil {
		logOut.Fatalw("connect intake DB", "err", err)
	}
	defer db.Close()

	// Log the active block-list size as an early sanity check.
	bans := banlist.New(db)
	if n, err := bans.CountActive(ctx); err != nil {
		logOut.Warnw("intake DB online, block list unreadable", "err", err)
	} else {
		logOut.Infow("intake DB online", "active_bans", n)
	}

	blobs, err := blob.NewDiskStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		logOut.Fatalw("blob store", "err", err)
	}

	//
	// ── 4.  Pipeline and session cache ──────────────────────────────────
	//
	previews := submission.NewMemoryPreviews()
	sessions := intake.New(submission.Deps{
		Gate:        submission.NewBanGate(bans, cfg.Intake.CallTimeout),
		Blobs:       blobs,
		Records:     record.New(db),
		Previews:    previews,
		CallTimeout: cfg.Intake.CallTimeout,
	}, intake.Options{
		IdleTTL:    cfg.Intake.SessionIdleTTL,
		MaxEntries: cfg.Intake.MaxSessions,
	})
	defer sessions.Stop()

	signer, err := csrf.NewSigner(cfg.CSRF.Key, cfg.CSRF.MaxAge)
	if err != nil {
		logOut.Fatalw("csrf signer", "err", err)
	}
	if signer.Ephemeral() {
		logOut.Warnw("csrf.key not set, using a random key; tokens reset on restart")
	}

	//
	// ── 5.  Routes ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, middleware.RequestLogger(logOut), chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	uploads := uploadsPrefix(cfg.Storage.PublicBaseURL)
	r.Handle(uploads+"*", http.StripPrefix(uploads, middleware.StoredFiles(http.FileServer(http.Dir(blobs.Dir())))))

	api := intake.NewHandler(sessions, signer, previews)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Security)
		r.Mount("/sessions", api.Routes())
	})

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	// One ban check, a put and URL lookup per photo, and the insert.
	calls := 1 + 2*submission.MaxPhotos + 1
	srv := server.New(cfg.HTTP.ListenAddr, r, server.WriteTimeoutFor(cfg.Intake.CallTimeout, calls))

	go func() {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Errorw("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logOut.Infow("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logOut.Warnw("http shutdown", "err", err)
	}
}

// uploadsPrefix returns the path part of the public base URL with a
// trailing slash, or "/uploads/" when the URL has no path.
func uploadsPrefix(base string) string {
	p := "/uploads"
	if u, err := url.Parse(base); err == nil && strings.Trim(u.Path, "/") != "" {
		p = "/" + strings.Trim(u.Path, "/")
	}
	return p + "/"
}
