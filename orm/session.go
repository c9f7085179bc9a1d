package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Executor defines the database operations shared by a connection and a transaction
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

// Session is a request-scoped unit of work bound to one pooled connection.
//
// A session is owned by a single goroutine and is not safe for concurrent use.
// Statements run in autocommit mode unless a transaction is open; writes that
// must be persisted together belong inside Transaction.
type Session struct {
	engine   *Engine
	conn     *sqlx.Conn
	tx       *sqlx.Tx
	executor Executor // conn, or tx while a transaction is open
	closed   bool
}

// Dialect returns the dialect of the engine the session was borrowed from.
func (s *Session) Dialect() Dialect { return s.engine.dialect }

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	var result sql.Result
	err := s.observe(ctx, "exec", query, func(ctx context.Context) error {
		var err error
		result, err = s.executor.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

func (s *Session) Select(ctx context.Context, dest any, query string, args ...any) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.observe(ctx, "select", query, func(ctx context.Context) error {
		return s.executor.SelectContext(ctx, dest, query, args...)
	})
}

func (s *Session) Get(ctx context.Context, dest any, query string, args ...any) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.observe(ctx, "get", query, func(ctx context.Context) error {
		return s.executor.GetContext(ctx, dest, query, args...)
	})
}

// Begin opens a transaction on the session's connection.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return errors.New("orm: transaction already open")
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orm: begin: %w", err)
	}
	s.tx = tx
	s.executor = tx
	return nil
}

func (s *Session) Commit() error {
	if s.tx == nil {
		return sql.ErrTxDone
	}
	err := s.tx.Commit()
	s.endTx()
	return err
}

func (s *Session) Rollback() error {
	if s.tx == nil {
		return sql.ErrTxDone
	}
	err := s.tx.Rollback()
	s.endTx()
	return err
}

func (s *Session) endTx() {
	s.tx = nil
	s.executor = s.conn
}

// Transaction executes fn within a transaction.
// It commits when fn returns nil and rolls back on error or panic.
// If a transaction is already open, fn joins it.
func (s *Session) Transaction(ctx context.Context, fn func(s *Session) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	if err := s.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback()
			panic(p)
		} else if err != nil {
			_ = s.Rollback()
		}
	}()

	if err = fn(s); err != nil {
		return err
	}
	return s.Commit()
}

// Close returns the connection to the pool. An open transaction is rolled back.
// Close is idempotent; only the first call releases anything.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		_ = s.Rollback()
	}
	s.engine.closed.Add(1)
	return s.conn.Close()
}
