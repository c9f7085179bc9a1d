// Package app wires configuration, the database engine and the HTTP surface
// into one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/arllen133/usersvc/api"
	"github.com/arllen133/usersvc/config"
	"github.com/arllen133/usersvc/orm"

	// registers the model schemas
	_ "github.com/arllen133/usersvc/models/generated"
)

// App is the assembled service. It owns the engine.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *orm.Engine
	handler http.Handler
}

// New connects to the database, creates missing tables and builds the
// handler. Any failure is fatal to startup; nothing is retried.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db := cfg.Database
	logger.LogAttrs(ctx, slog.LevelInfo, "connecting to database",
		slog.String("driver", db.Driver),
		slog.String("dsn", db.Redacted()),
	)

	engine, err := orm.Open(ctx, db.Driver, db.DSN(),
		orm.WithConnMaxLifetime(db.ConnMaxLifetime),
		orm.WithLogger(logger.With(slog.String("component", "orm"))),
		orm.WithQueryLogging(cfg.Log.Queries),
		orm.WithSlowQueryThreshold(db.SlowQueryThreshold),
		orm.WithDefaultTracer(),
		orm.WithDefaultMeter(),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if err := orm.EnsureSchema(ctx, engine); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	opts := api.Options{
		Logger:         logger,
		DB:             engine,
		HeaderVerifier: api.StaticToken(cfg.HTTP.APIToken),
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}
	if cfg.HTTP.QueryToken != "" {
		opts.QueryVerifier = api.StaticToken(cfg.HTTP.QueryToken)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		handler: api.NewHandler(opts),
	}, nil
}

// Handler returns the composed HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Engine returns the database engine.
func (a *App) Engine() *orm.Engine { return a.engine }

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		_ = a.engine.Close()
		return fmt.Errorf("app: listen %s: %w", a.cfg.HTTP.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains in-flight requests and
// closes the engine.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	// Requests keep ctx's values but outlive its cancellation, so Shutdown can drain them.
	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.LogAttrs(gctx, slog.LevelInfo, "http server listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.LogAttrs(context.Background(), slog.LevelInfo, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := a.engine.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("app: close engine: %w", cerr)
	}
	a.logger.LogAttrs(context.Background(), slog.LevelInfo, "stopped", slog.Any("sessions", a.engine.Stats()))
	return err
}
