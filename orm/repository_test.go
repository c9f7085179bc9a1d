package orm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/arllen133/usersvc/models"
	"github.com/arllen133/usersvc/models/generated"
	"github.com/arllen133/usersvc/orm"
)

func createUser(t *testing.T, engine *orm.Engine, u *models.User) {
	t.Helper()
	ctx := context.Background()
	err := engine.WithSession(ctx, func(s *orm.Session) error {
		return orm.NewRepository[models.User](s).Create(ctx, u)
	})
	if err != nil {
		t.Fatalf("Create %s failed: %v", u.Email, err)
	}
}

func TestRepositoryCreateAndFindOne(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	user := &models.User{Name: "Rick", Email: "rick@example.com", Age: ptr(70)}
	createUser(t, engine, user)
	if user.ID == 0 {
		t.Fatal("expected generated ID to be backfilled")
	}
	if user.CreatedAt.IsZero() {
		t.Error("expected BeforeCreate to stamp CreatedAt")
	}

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		found, err := orm.NewRepository[models.User](s).FindOne(ctx, user.ID)
		if err != nil {
			return err
		}
		if found.Name != "Rick" || found.Email != "rick@example.com" || found.Age == nil || *found.Age != 70 {
			t.Errorf("unexpected user: %+v", found)
		}
		if !found.CreatedAt.Equal(user.CreatedAt) {
			t.Errorf("CreatedAt mismatch: got %v want %v", found.CreatedAt, user.CreatedAt)
		}
		if found.UpdatedAt != nil {
			t.Errorf("UpdatedAt should be NULL, got %v", found.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
}

func TestRepositoryStoresMissingAgeAsNull(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	user := &models.User{Name: "Jerry", Email: "jerry@example.com"}
	createUser(t, engine, user)

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		var nulls int
		if err := s.Get(ctx, &nulls, "SELECT COUNT(*) FROM users WHERE age IS NULL"); err != nil {
			return err
		}
		if nulls != 1 {
			t.Errorf("expected 1 row with NULL age, got %d", nulls)
		}

		found, err := orm.NewRepository[models.User](s).FindOne(ctx, user.ID)
		if err != nil {
			return err
		}
		if found.Age != nil {
			t.Errorf("expected nil Age, got %d", *found.Age)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
}

func TestRepositoryFindOneNotFound(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		_, err := orm.NewRepository[models.User](s).FindOne(ctx, 999)
		return err
	})
	if !errors.Is(err, orm.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryCreateDuplicateEmail(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	createUser(t, engine, &models.User{Name: "Rick", Email: "dup@example.com"})

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		return orm.NewRepository[models.User](s).Create(ctx, &models.User{Name: "Morty", Email: "dup@example.com"})
	})
	if !errors.Is(err, orm.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	user := &models.User{Name: "Summer", Email: "summer@example.com", Age: ptr(17)}
	createUser(t, engine, user)

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		users := orm.NewRepository[models.User](s)
		user.Age = ptr(18)
		if err := users.Update(ctx, user); err != nil {
			return err
		}
		if user.UpdatedAt == nil {
			t.Error("expected BeforeUpdate to stamp UpdatedAt")
		}

		found, err := users.FindOne(ctx, user.ID)
		if err != nil {
			return err
		}
		if found.Age == nil || *found.Age != 18 {
			t.Errorf("expected age 18, got %v", found.Age)
		}

		missing := &models.User{ID: user.ID + 100, Name: "Nobody", Email: "nobody@example.com"}
		if err := users.Update(ctx, missing); !errors.Is(err, orm.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing row, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestQueryBuilderWithTypedFields(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	for i, name := range []string{"Rick", "Morty", "Summer", "Beth"} {
		createUser(t, engine, &models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name), Age: ptr(10 * (i + 1))})
	}

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		users := orm.NewRepository[models.User](s)

		older, err := users.Query().
			Where(generated.User.Age.Gt(15)).
			OrderBy(generated.User.Name.Asc()).
			Find(ctx)
		if err != nil {
			return err
		}
		if len(older) != 3 || older[0].Name != "Beth" || older[2].Name != "Summer" {
			t.Errorf("unexpected result: %d rows", len(older))
		}

		n, err := users.Query().Where(orm.Or{
			generated.User.Name.Eq("Rick"),
			generated.User.Email.Like("Morty%"),
		}).Count(ctx)
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}

		none, err := users.Query().Where(generated.User.Name.In("Jerry")).Find(ctx)
		if err != nil {
			return err
		}
		if none == nil || len(none) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", none)
		}

		first, err := users.Query().Limit(2).Offset(1).Find(ctx)
		if err != nil {
			return err
		}
		if len(first) != 2 {
			t.Errorf("expected 2 rows with limit, got %d", len(first))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
}

func TestQueryBuilderToSQL(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	err := engine.WithSession(ctx, func(s *orm.Session) error {
		query, args, err := orm.Query[models.User](s).
			Where(orm.And{generated.User.Age.Gt(18), generated.User.Age.Lt(65)}).
			OrderBy(generated.User.ID.Desc()).
			Limit(5).
			ToSQL()
		if err != nil {
			return err
		}
		want := "SELECT id, name, email, age, created_at, updated_at FROM users WHERE (users.age > ?) AND (users.age < ?) ORDER BY users.id DESC LIMIT 5"
		if query != want {
			t.Errorf("unexpected sql:\n got: %s\nwant: %s", query, want)
		}
		if len(args) != 2 {
			t.Errorf("expected 2 args, got %v", args)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentCreates(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()
	const workers = 8

	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			return engine.WithSession(ctx, func(s *orm.Session) error {
				return orm.NewRepository[models.User](s).Create(ctx, &models.User{
					Name:  fmt.Sprintf("user%d", i),
					Email: fmt.Sprintf("user%d@example.com", i),
				})
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent creates failed: %v", err)
	}

	// Same email from every worker: exactly one wins.
	results := make([]error, workers)
	var same errgroup.Group
	for i := range workers {
		same.Go(func() error {
			results[i] = engine.WithSession(ctx, func(s *orm.Session) error {
				return orm.NewRepository[models.User](s).Create(ctx, &models.User{Name: "same", Email: "same@example.com"})
			})
			return nil
		})
	}
	_ = same.Wait()

	var ok, dup int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, orm.ErrDuplicate):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != workers-1 {
		t.Errorf("expected 1 success and %d duplicates, got %d and %d", workers-1, ok, dup)
	}

	if stats := engine.Stats(); stats.InUse != 0 {
		t.Errorf("sessions leaked: %+v", stats)
	}
}
