// internal/config/model.go
//
// Typed configuration model for Intake.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `INTAKE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal and defaulting; the app
// fails fast if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations accept Go syntax ("15s", "30m").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The DSN is kept in YAML so operators can tweak host, port, or flags
// without touching Vault.  The password is usually a `vault:` reference
// and is spliced in by DSNWithPassword.
type Database struct {
	DSN          string `koanf:"dsn"            validate:"required"`
	Password     string `koanf:"password"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"gte=0"`
}

// DSNWithPassword returns DSN with Password applied.  An empty Password
// leaves the DSN untouched.
func (d Database) DSNWithPassword() (string, error) {
	if d.Password == "" {
		return d.DSN, nil
	}
	cfg, err := mysql.ParseDSN(d.DSN)
	if err != nil {
		return "", fmt.Errorf("parse database.dsn: %w", err)
	}
	cfg.Passwd = d.Password
	return cfg.FormatDSN(), nil
}

//
// Storage section
//

// Storage locates uploaded photos on disk and on the web.
type Storage struct {
	Dir           string `koanf:"dir"             validate:"required"`
	PublicBaseURL string `koanf:"public_base_url" validate:"required"`
}

//
// Intake section
//

// Intake tunes the submission pipeline and the session cache.
type Intake struct {
	CallTimeout    time.Duration `koanf:"call_timeout"     validate:"gte=0"`
	SessionIdleTTL time.Duration `koanf:"session_idle_ttl" validate:"gte=0"`
	MaxSessions    int           `koanf:"max_sessions"     validate:"gte=0"`
}

//
// CSRF section
//

// CSRF holds the token signing key (base64url, 32+ bytes).  Empty means a
// random per-process key.
type CSRF struct {
	Key    string        `koanf:"key"`
	MaxAge time.Duration `koanf:"max_age" validate:"gte=0"`
}

//
// Log section
//

// Log selects the log directory (relative paths hang off Paths.Root) and
// level name (debug, info, warn, error).
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // INTAKE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Storage  Storage  `koanf:"storage"`
	Intake   Intake   `koanf:"intake"`
	CSRF     CSRF     `koanf:"csrf"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"-"`
}

// Defaults for zero-valued tunables.
const (
	DefaultListenAddr     = ":8080"
	DefaultCallTimeout    = 15 * time.Second
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultMaxSessions    = 1000
	DefaultMaxOpenConns   = 15
	DefaultMaxIdleConns   = 5
	DefaultLogDir         = "logs"
	DefaultLogLevel       = "info"
)

// applyDefaults fills zero values.  Runs after unmarshal, before validation.
func (c *Config) applyDefaults() {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = DefaultListenAddr
	}
	if c.Intake.CallTimeout == 0 {
		c.Intake.CallTimeout = DefaultCallTimeout
	}
	if c.Intake.SessionIdleTTL == 0 {
		c.Intake.SessionIdleTTL = DefaultSessionIdleTTL
	}
	if c.Intake.MaxSessions == 0 {
		c.Intake.MaxSessions = DefaultMaxSessions
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.Log.Dir == "" {
		c.Log.Dir = DefaultLogDir
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
