package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arllen133/usersvc/api"
	"github.com/arllen133/usersvc/orm"

	_ "github.com/arllen133/usersvc/models/generated"
)

const testToken = "fake-super-secret-token"

func newEngine(t *testing.T) *orm.Engine {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_busy_timeout=5000&_txlock=immediate"
	engine, err := orm.Open(ctx, "sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, orm.EnsureSchema(ctx, engine))
	return engine
}

func newHandler(t *testing.T, db api.Database, mutate ...func(*api.Options)) http.Handler {
	t.Helper()
	opts := api.Options{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:             db,
		HeaderVerifier: api.StaticToken(testToken),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return api.NewHandler(opts)
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) JSON(t *testing.T) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &v), r.Body.String())
	return v
}

func (r response) Detail(t *testing.T) any {
	t.Helper()
	return r.JSON(t)["detail"]
}

func do(h http.Handler, method, target string, body any, headers ...string) response {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return response{rec}
}
