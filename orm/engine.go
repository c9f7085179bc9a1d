package orm

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
)

// Engine is the process-wide handle to one database.
// It is created once at startup, shared read-only by every request, and
// closed once at shutdown. Sessions borrow connections from it but never own it.
type Engine struct {
	db      *sqlx.DB
	dialect Dialect
	obs     *ObservabilityConfig

	connMaxLifetime time.Duration
	maxOpenConns    int

	opened atomic.Int64
	closed atomic.Int64
}

// Option configures an Engine
type Option func(*Engine)

// WithConnMaxLifetime recycles pooled connections older than d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(e *Engine) {
		e.connMaxLifetime = d
	}
}

// WithMaxOpenConns caps the number of open connections. Zero means unlimited.
func WithMaxOpenConns(n int) Option {
	return func(e *Engine) {
		e.maxOpenConns = n
	}
}

// NewEngine wraps an existing pool. It does not touch the network.
func NewEngine(db *sql.DB, dialect Dialect, opts ...Option) *Engine {
	e := &Engine{
		db:      sqlx.NewDb(db, dialect.Name()),
		dialect: dialect,
		obs:     defaultObservabilityConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(e.connMaxLifetime)
	}
	if e.maxOpenConns > 0 {
		db.SetMaxOpenConns(e.maxOpenConns)
	}
	return e
}

// Open creates the pool for driver/dsn and verifies the database is reachable.
// An unreachable database is an error; there is no retry.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Engine, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("orm: open %s: %w", driver, err)
	}
	return OpenDB(ctx, db, dialect, opts...)
}

// OpenDB is Open for a pool the caller already created.
// The pool is closed if the database cannot be reached.
func OpenDB(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Engine, error) {
	e := NewEngine(db, dialect, opts...)
	if err := e.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("orm: connect %s: %w", dialect.Name(), err)
	}
	if e.obs.Logger != nil {
		e.obs.Logger.LogAttrs(ctx, slog.LevelInfo, "database connected", slog.String("db.system", dialect.Name()))
	}
	return e, nil
}

// Dialect returns the engine's dialect.
func (e *Engine) Dialect() Dialect { return e.dialect }

// Ping checks that a connection can be established.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the pool. Sessions still open fail on their next statement.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Acquire opens a new session pinned to one pooled connection.
// The caller owns the session and must Close it; prefer WithSession.
func (e *Engine) Acquire(ctx context.Context) (*Session, error) {
	conn, err := e.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("orm: acquire session: %w", err)
	}
	e.opened.Add(1)
	return &Session{engine: e, conn: conn, executor: conn}, nil
}

// WithSession acquires a session, runs fn with it and closes the session on
// every exit path, including a panic in fn, which is re-raised after release.
func (e *Engine) WithSession(ctx context.Context, fn func(s *Session) error) (err error) {
	s, err := e.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// SessionStats counts sessions over the engine's lifetime.
type SessionStats struct {
	Opened int64
	Closed int64
	InUse  int64
}

// Stats returns the session counters.
func (e *Engine) Stats() SessionStats {
	closed := e.closed.Load()
	opened := e.opened.Load()
	return SessionStats{Opened: opened, Closed: closed, InUse: opened - closed}
}
