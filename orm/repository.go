package orm

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Repository manages CRUD operations for model T within one session.
//
// Usage example:
//
//	err := engine.WithSession(ctx, func(s *orm.Session) error {
//	    users := orm.NewRepository[models.User](s)
//	    return s.Transaction(ctx, func(s *orm.Session) error {
//	        return users.Create(ctx, user)
//	    })
//	})
type Repository[T any] struct {
	session *Session
	schema  Schema[T]
}

// NewRepository creates a Repository bound to session.
// Model T must be registered via RegisterSchema, otherwise this panics.
func NewRepository[T any](session *Session) *Repository[T] {
	return &Repository[T]{
		session: session,
		schema:  LoadSchema[T](),
	}
}

// Create inserts model and backfills its auto-increment primary key.
//
// Operation flow:
//  1. Trigger BeforeCreate hook
//  2. Extract insert data from model (via schema.InsertRow)
//  3. Execute INSERT (with RETURNING on dialects without LastInsertId)
//  4. Backfill the generated key
//  5. Trigger AfterCreate hook
//
// A unique constraint violation is reported as ErrDuplicate.
func (r *Repository[T]) Create(ctx context.Context, model *T) error {
	if err := triggerBeforeCreate(ctx, model); err != nil {
		return err
	}

	cols, vals := r.schema.InsertRow(model)
	dialect := r.session.Dialect()
	table := r.schema.TableName()

	builder := sq.Insert(table).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(dialect.PlaceholderFormat())

	returning := r.schema.AutoIncrement() && dialect.SupportsReturning()
	if returning {
		builder = builder.Suffix("RETURNING " + r.schema.PK(nil).Column.Name)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	if returning {
		var id int64
		if err := r.session.Get(ctx, &id, query, args...); err != nil {
			return r.writeError("insert into", err)
		}
		r.schema.SetPK(model, id)
	} else {
		result, err := r.session.Exec(ctx, query, args...)
		if err != nil {
			return r.writeError("insert into", err)
		}
		if r.schema.AutoIncrement() {
			if id, err := result.LastInsertId(); err == nil {
				r.schema.SetPK(model, id)
			}
		}
	}

	return triggerAfterCreate(ctx, model)
}

// Update writes every updatable field of model, located by its primary key.
// It returns ErrNotFound when no row has that key.
func (r *Repository[T]) Update(ctx context.Context, model *T) error {
	if err := triggerBeforeUpdate(ctx, model); err != nil {
		return err
	}

	pk := r.schema.PK(model)
	query, args, err := sq.Update(r.schema.TableName()).
		SetMap(r.schema.UpdateMap(model)).
		Where(sq.Eq{pk.Column.Name: pk.Value}).
		PlaceholderFormat(r.session.Dialect().PlaceholderFormat()).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.session.Exec(ctx, query, args...)
	if err != nil {
		return r.writeError("update", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return triggerAfterUpdate(ctx, model)
}

// FindOne queries a single record by primary key.
// If no record matches, it returns ErrNotFound.
//
//	user, err := userRepo.FindOne(ctx, 123)
//	if errors.Is(err, orm.ErrNotFound) {
//	    // User not found
//	}
func (r *Repository[T]) FindOne(ctx context.Context, id any) (*T, error) {
	pk := r.schema.PK(nil)
	return r.Query().Where(Eq{Column: pk.Column, Value: id}).First(ctx)
}

// Query returns a QueryBuilder for building more complex reads.
func (r *Repository[T]) Query() *QueryBuilder[T] {
	return Query[T](r.session)
}

func (r *Repository[T]) writeError(op string, err error) error {
	if r.session.Dialect().IsUniqueViolation(err) {
		return fmt.Errorf("orm: %s %s: %w: %w", op, r.schema.TableName(), ErrDuplicate, err)
	}
	return fmt.Errorf("orm: %s %s: %w", op, r.schema.TableName(), err)
}
