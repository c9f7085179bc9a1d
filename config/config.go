// Package config reads service settings from the environment once at start.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTP
	Log      Log
	Database Database
}

// HTTP configures the listener and the request pipeline.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR,default=:8000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`

	// APIToken is the secret the X-Token header is compared against.
	APIToken string `env:"API_TOKEN"`
	// QueryToken, when set, is required as ?token= on every group.
	QueryToken string `env:"QUERY_TOKEN"`

	CORSOrigins    []string `env:"CORS_ORIGINS"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=20"`
}

// Log configures the process logger.
type Log struct {
	Level   string `env:"LOG_LEVEL,default=info"`
	Format  string `env:"LOG_FORMAT,default=text"`
	Queries bool   `env:"LOG_QUERIES,default=false"`
}

// Database holds the connection settings.
type Database struct {
	Driver   string `env:"DB_DRIVER,default=mysql"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST,default=localhost"`
	Port     int    `env:"DB_PORT"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE,default=disable"`

	ConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD,default=200ms"`
}

// Load reads the given .env files into the process environment and decodes it.
// Missing files are skipped and variables already set are not overridden.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	cfg.Database.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (d *Database) setDefaults() {
	if d.Port != 0 {
		return
	}
	switch d.Driver {
	case "mysql":
		d.Port = 3306
	case "postgres":
		d.Port = 5432
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("config: DB_NAME is required"))
	}
	if c.HTTP.APIToken == "" {
		errs = append(errs, errors.New("config: API_TOKEN is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DSN returns the driver-specific connection string. It is deterministic.
func (d Database) DSN() string {
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:     "/" + d.Name,
			RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
		}
		return u.String()
	case "sqlite3":
		return "file:" + d.Name + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	}

	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	mc.DBName = d.Name
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

// Redacted is DSN with the password masked, for logs.
func (d Database) Redacted() string {
	if d.Password == "" {
		return d.DSN()
	}
	d.Password = "xxxxx"
	return d.DSN()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Logger is NewLogger on stderr.
func (l Log) Logger() *slog.Logger {
	return l.NewLogger(os.Stderr)
}
