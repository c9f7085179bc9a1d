package app_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/usersvc/app"
	"github.com/arllen133/usersvc/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		HTTP: config.HTTP{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			APIToken:        "fake-super-secret-token",
			RateLimitBurst:  20,
		},
		Log: config.Log{Level: "debug"},
		Database: config.Database{
			Driver:             "sqlite3",
			Name:               filepath.Join(t.TempDir(), "app.db"),
			ConnMaxLifetime:    time.Hour,
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewWiresEverything(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.HTTP.QueryToken = "jessica"

	a, err := app.New(ctx, cfg, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { a.Engine().Close() })

	body := strings.NewReader(`{"name":"Rick","email":"rick@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/?token=jessica", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "query token enforced")

	req = httptest.NewRequest(http.MethodGet, "/items/plumbus?token=jessica", nil)
	req.Header.Set("X-Token", "fake-super-secret-token")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, a.Engine().Stats().InUse)
}

func TestNewFailsOnUnreachableDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Name = filepath.Join(t.TempDir(), "missing", "dir", "app.db")

	_, err := app.New(context.Background(), cfg, quiet())
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	cfg := testConfig(t)

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Error(t, a.Engine().Ping(context.Background()), "engine is closed after shutdown")
	assert.Contains(t, logs.String(), "shutting down")
}

func TestRunFailsOnBadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = "256.0.0.1:-1"

	a, err := app.New(context.Background(), cfg, quiet())
	require.NoError(t, err)

	assert.Error(t, a.Run(context.Background()))
}
