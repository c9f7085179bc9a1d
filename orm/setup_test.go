package orm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arllen133/usersvc/orm"

	_ "github.com/arllen133/usersvc/models/generated"
)

// setupTestEngine opens an engine with the users table in place.
// TEST_DRIVER/TEST_DSN select a real server; the default is a sqlite file per test.
func setupTestEngine(t *testing.T, opts ...orm.Option) *orm.Engine {
	t.Helper()

	driver := os.Getenv("TEST_DRIVER")
	dsn := os.Getenv("TEST_DSN")
	if driver == "" {
		driver = "sqlite3"
		dsn = "file:" + filepath.Join(t.TempDir(), "orm.db") + "?_busy_timeout=5000&_txlock=immediate"
	}

	ctx := context.Background()
	engine, err := orm.Open(ctx, driver, dsn, opts...)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if err := orm.EnsureSchema(ctx, engine); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	if driver != "sqlite3" {
		if err := engine.WithSession(ctx, func(s *orm.Session) error {
			_, err := s.Exec(ctx, "DELETE FROM users")
			return err
		}); err != nil {
			t.Fatalf("Failed to reset users: %v", err)
		}
	}
	return engine
}

func ptr[T any](v T) *T { return &v }
