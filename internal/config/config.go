// Package config resolves server settings from a .env file, HSE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the resolved server settings.
type Config struct {
	Backend     string
	DBPath      string
	RedisURL    string
	RedisPrefix string
	Addr        string

	LogLevel  string
	LogFormat string
	LogPath   string

	// JWTSecret is generated and stored on first run when empty.
	JWTSecret   string
	LoginLimit  int64
	LoginPeriod time.Duration

	AdminName  string
	AdminEmail string
}

const usage = `Usage: hsefield [flags]

Flags:
  -s, -store <sqlite|redis>  storage backend (env HSE_STORE, default: sqlite)
  -d, -db <path>             SQLite database path (env HSE_DB_PATH, default: hsefield.sqlite3)
  -r, -redis <url>           Redis URL (env HSE_REDIS_URL, default: redis://localhost:6379/0)
  -a, -addr <host:port>      listen address (env HSE_ADDR, default: :8080)
  -e, -email <address>       admin email on first run (env HSE_ADMIN_EMAIL, default: admin@hse.local)
  -l, -log <path>            log file path (env HSE_LOG_PATH, default: stdout/stderr only)
  -log-level <level>         debug, info, warn or error (env HSE_LOG_LEVEL, default: info)
  -log-format <format>       text or json (env HSE_LOG_FORMAT, default: text)
  -h, -help                  show this help and exit

Environment only:
  HSE_REDIS_PREFIX           key prefix in Redis (default: hsefield:)
  HSE_JWT_SECRET             token signing secret (default: generated and stored)
  HSE_LOGIN_LIMIT            login attempts per client per minute (default: 10)
  HSE_ADMIN_NAME             admin display name on first run (default: Administrator)
`

// Load reads the optional .env file, the environment and args. A missing
// .env file is not an error. flag.ErrHelp is returned for -h.
func Load(args []string, out io.Writer) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	limit, err := envInt("HSE_LOGIN_LIMIT", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend:     env("HSE_STORE", BackendSQLite),
		DBPath:      env("HSE_DB_PATH", "hsefield.sqlite3"),
		RedisURL:    env("HSE_REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: env("HSE_REDIS_PREFIX", "hsefield:"),
		Addr:        env("HSE_ADDR", ":8080"),
		LogLevel:    env("HSE_LOG_LEVEL", "info"),
		LogFormat:   env("HSE_LOG_FORMAT", "text"),
		LogPath:     env("HSE_LOG_PATH", ""),
		JWTSecret:   env("HSE_JWT_SECRET", ""),
		LoginLimit:  limit,
		LoginPeriod: time.Minute,
		AdminName:   env("HSE_ADMIN_NAME", "Administrator"),
		AdminEmail:  env("HSE_ADMIN_EMAIL", "admin@hse.local"),
	}

	fs := flag.NewFlagSet("hsefield", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	fs.StringVar(&cfg.Backend, "store", cfg.Backend, "")
	fs.StringVar(&cfg.Backend, "s", cfg.Backend, "")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "")
	fs.StringVar(&cfg.RedisURL, "r", cfg.RedisURL, "")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.AdminEmail, "email", cfg.AdminEmail, "")
	fs.StringVar(&cfg.AdminEmail, "e", cfg.AdminEmail, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if cfg.Backend != BackendSQLite && cfg.Backend != BackendRedis {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return cfg, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) (int64, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
