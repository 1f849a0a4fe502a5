// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// Intake writes lifecycle, pipeline, and error events to one JSON log per
// day under `<dir>/intake-YYYY-MM-DD.log`.  When running in an interactive
// TTY we tee the same events to stdout in console form.  Rotation,
// compression, and retention are handled by Lumberjack.
//
// Request-scoped loggers travel in context.Context.  HTTP middleware attaches
// one carrying request fields (path, device), and pipeline code retrieves it
// with FromContext.  Code running without a request falls back to the
// process-wide logger installed by New.
//
// Usage
// -----
//
//	log, err := logger.New(logger.Options{Dir: root + "/logs", Tee: true})
//	ctx = logger.WithContext(ctx, log.With("session", id))
//	logger.FromContext(ctx).Infow("submission stored", "record", rec.ID)
//
// Notes
// -----
// • ISO-8601 timestamps and lowercase levels.
// • Errors from zap itself go to the same file sink.
package logger

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.  Zero Level means Info.
type Options struct {
	Dir   string
	Tee   bool
	Level zapcore.Level
}

// New returns a *zap.SugaredLogger that writes JSON to a daily file under
// opts.Dir and installs it as the process-wide default via
// zap.ReplaceGlobals.
func New(opts Options) (*zap.SugaredLogger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	fileName := "intake-" + time.Now().Format("2006-01-02") + ".log"
	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, fileName),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(fileSink), opts.Level),
	}
	if opts.Tee {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stdout),
			opts.Level,
		))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	).Sugar()

	zap.ReplaceGlobals(z.Desugar())

	z.Infow("logger online", "dir", opts.Dir, "tee", opts.Tee)
	return z, nil
}

/*──────────────────────────── context helpers ─────────────────────────────*/

type ctxKey struct{}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored by WithContext, or the global
// sugared logger when none is present.  It never returns nil.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}
	return zap.S()
}
