package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arllen133/usersvc/orm"
)

func TestCreateAndReadUser(t *testing.T) {
	engine := newEngine(t)
	h := newHandler(t, engine)

	res := do(h, http.MethodPost, "/users/", map[string]any{"name": "Rick", "email": "rick@citadel.example", "age": 70})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	created := res.JSON(t)
	id, ok := created["id"].(float64)
	require.True(t, ok, "id missing: %v", created)
	assert.NotZero(t, id)
	assert.Equal(t, "Rick", created["name"])
	assert.Equal(t, "rick@citadel.example", created["email"])
	assert.EqualValues(t, 70, created["age"])
	assert.NotEmpty(t, created["created_at"])
	assert.Nil(t, created["updated_at"])

	res = do(h, http.MethodGet, fmt.Sprintf("/users/%d", int64(id)), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, mustJSON(t, created), res.Body.String())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestCreateUserWithoutAge(t *testing.T) {
	h := newHandler(t, newEngine(t))

	res := do(h, http.MethodPost, "/users/", map[string]any{"name": "Jerry", "email": "jerry@example.com"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	created := res.JSON(t)
	assert.Contains(t, created, "age")
	assert.Nil(t, created["age"])

	res = do(h, http.MethodGet, fmt.Sprintf("/users/%d", int64(created["id"].(float64))), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, res.JSON(t)["age"])
}

func TestCreateUserFromQuery(t *testing.T) {
	h := newHandler(t, newEngine(t))

	q := url.Values{"name": {"Morty"}, "email": {"morty@example.com"}, "age": {"14"}}
	res := do(h, http.MethodPost, "/users/?"+q.Encode(), nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.EqualValues(t, 14, res.JSON(t)["age"])
}

func TestCreateUserFromForm(t *testing.T) {
	h := newHandler(t, newEngine(t))

	form := url.Values{"name": {"Summer"}, "email": {"summer@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Summer"`)
}

func TestCreateUserValidation(t *testing.T) {
	h := newHandler(t, newEngine(t))

	tests := []struct {
		name   string
		target string
		body   any
		loc    string
		typ    string
	}{
		{"missing name in query", "/users/?email=a@example.com", nil, "name", "missing"},
		{"bad age in query", "/users/?name=a&email=a@example.com&age=old", nil, "age", "int_parsing"},
		{"missing email in body", "/users/", map[string]any{"name": "a"}, "email", "missing"},
		{"age as object in body", "/users/", map[string]any{"name": "a", "email": "a@example.com", "age": map[string]int{"years": 3}}, "age", "int_type"},
		{"fractional age in body", "/users/", map[string]any{"name": "a", "email": "a@example.com", "age": 1.5}, "age", "int_from_float"},
		{"age as string in body", "/users/", map[string]any{"name": "a", "email": "a@example.com", "age": "old"}, "age", "int_parsing"},
		{"name as number in body", "/users/", map[string]any{"name": 7, "email": "a@example.com"}, "name", "string_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(h, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())

			issues, ok := res.Detail(t).([]any)
			require.True(t, ok)
			require.NotEmpty(t, issues)
			issue := issues[0].(map[string]any)
			loc := issue["loc"].([]any)
			assert.Equal(t, tt.loc, loc[len(loc)-1])
			assert.Equal(t, tt.typ, issue["type"])
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	h := newHandler(t, newEngine(t))
	body := map[string]any{"name": "Rick", "email": "rick@example.com", "age": 70}

	res := do(h, http.MethodPost, "/users/", body)
	require.Equal(t, http.StatusCreated, res.Code)

	res = do(h, http.MethodPost, "/users/", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Email already registered", res.Detail(t))
}

func TestReadUserNotFound(t *testing.T) {
	h := newHandler(t, newEngine(t))

	res := do(h, http.MethodGet, "/users/4242", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "User not found", res.Detail(t))

	res = do(h, http.MethodGet, "/users/99999999999999999999", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestSessionsReleasedPerRequest(t *testing.T) {
	engine := newEngine(t)
	h := newHandler(t, engine)
	base := engine.Stats()

	requests := []struct {
		method, target string
		body           any
		status         int
	}{
		{http.MethodPost, "/users/", map[string]any{"name": "A", "email": "a@example.com"}, http.StatusCreated},
		{http.MethodPost, "/users/", map[string]any{"name": "A", "email": "a@example.com"}, http.StatusBadRequest},
		{http.MethodGet, "/users/1", nil, http.StatusOK},
		{http.MethodGet, "/users/777", nil, http.StatusNotFound},
	}
	for i, r := range requests {
		res := do(h, r.method, r.target, r.body)
		require.Equal(t, r.status, res.Code, res.Body.String())

		stats := engine.Stats()
		assert.Equal(t, int64(i+1), stats.Opened-base.Opened, "one session per request")
		assert.Equal(t, int64(i+1), stats.Closed-base.Closed, "session closed after request")
	}
	assert.Zero(t, engine.Stats().InUse)

	// Static routes never open a session.
	do(h, http.MethodGet, "/users/me", nil)
	assert.Equal(t, int64(len(requests)), engine.Stats().Opened-base.Opened)
}

// faultyDB wraps an engine and injects a failure after the handler's work ran.
type faultyDB struct {
	*orm.Engine
	fail func(s *orm.Session) error
}

func (f faultyDB) WithSession(ctx context.Context, fn func(s *orm.Session) error) error {
	return f.Engine.WithSession(ctx, func(s *orm.Session) error {
		return f.fail(s)
	})
}

func TestDatabaseErrorIsHidden(t *testing.T) {
	engine := newEngine(t)
	db := faultyDB{Engine: engine, fail: func(*orm.Session) error { return errors.New("connection reset by peer") }}
	h := newHandler(t, db)
	base := engine.Stats()

	res := do(h, http.MethodGet, "/users/1", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "Database error occurred", res.Detail(t))
	assert.NotContains(t, res.Body.String(), "connection reset")

	stats := engine.Stats()
	assert.Equal(t, stats.Opened-base.Opened, stats.Closed-base.Closed)
}

func TestSessionReleasedOnPanic(t *testing.T) {
	engine := newEngine(t)
	db := faultyDB{Engine: engine, fail: func(*orm.Session) error { panic("portal malfunction") }}
	h := newHandler(t, db)
	base := engine.Stats()

	res := do(h, http.MethodPost, "/users/", map[string]any{"name": "A", "email": "a@example.com"})
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "Internal Server Error", res.Detail(t))

	stats := engine.Stats()
	assert.Equal(t, int64(1), stats.Opened-base.Opened)
	assert.Equal(t, int64(1), stats.Closed-base.Closed)
}

func TestSessionReleasedOnCancel(t *testing.T) {
	engine := newEngine(t)
	h := newHandler(t, engine)
	base := engine.Stats()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	stats := engine.Stats()
	assert.Equal(t, stats.Opened-base.Opened, stats.Closed-base.Closed)
	assert.Zero(t, stats.InUse)
}

func TestConcurrentCreateSameEmail(t *testing.T) {
	engine := newEngine(t)
	h := newHandler(t, engine)
	const clients = 8

	var (
		mu    sync.Mutex
		codes = map[int]int{}
		g     errgroup.Group
	)
	for i := range clients {
		g.Go(func() error {
			res := do(h, http.MethodPost, "/users/", map[string]any{"name": fmt.Sprintf("clone%d", i), "email": "rick@example.com"})
			mu.Lock()
			codes[res.Code]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, codes[http.StatusCreated], "codes: %v", codes)
	assert.Equal(t, clients-1, codes[http.StatusBadRequest], "codes: %v", codes)
	assert.Zero(t, engine.Stats().InUse)
}
