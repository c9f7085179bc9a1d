package orm

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// QueryBuilder is a generic SELECT builder for model T.
//
//	users, err := orm.NewRepository[models.User](s).Query().
//	    Where(generated.User.Age.Gt(18)).
//	    OrderBy(generated.User.Name.Asc()).
//	    Limit(10).
//	    Find(ctx)
//
// Methods modify and return the receiver. The first build error is kept
// and returned by the terminal method.
type QueryBuilder[T any] struct {
	session *Session
	schema  Schema[T]
	builder sq.SelectBuilder
	err     error
}

// Query creates a new QueryBuilder for T.
// Model T must be registered, otherwise this panics.
func Query[T any](session *Session) *QueryBuilder[T] {
	schema := LoadSchema[T]()
	return &QueryBuilder[T]{
		session: session,
		schema:  schema,
		builder: sq.Select().
			From(schema.TableName()).
			PlaceholderFormat(session.Dialect().PlaceholderFormat()),
	}
}

// Where adds a WHERE condition. Multiple calls are joined with AND.
func (q *QueryBuilder[T]) Where(expr Expression) *QueryBuilder[T] {
	if q.err != nil {
		return q
	}
	sql, args, err := expr.Build()
	if err != nil {
		q.err = err
		return q
	}
	q.builder = q.builder.Where(sq.Expr(sql, args...))
	return q
}

// OrderBy appends ORDER BY columns.
func (q *QueryBuilder[T]) OrderBy(orders ...OrderByColumn) *QueryBuilder[T] {
	if q.err != nil {
		return q
	}
	for _, o := range orders {
		sql, _, err := o.Build()
		if err != nil {
			q.err = err
			return q
		}
		q.builder = q.builder.OrderBy(sql)
	}
	return q
}

func (q *QueryBuilder[T]) Limit(n uint64) *QueryBuilder[T] {
	q.builder = q.builder.Limit(n)
	return q
}

func (q *QueryBuilder[T]) Offset(n uint64) *QueryBuilder[T] {
	q.builder = q.builder.Offset(n)
	return q
}

// Find executes the query and returns all matching records.
// Returns an empty slice, not an error, when nothing matches.
func (q *QueryBuilder[T]) Find(ctx context.Context) ([]*T, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("orm: failed to build sql: %w", err)
	}

	results := []*T{}
	if err := q.session.Select(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("orm: query %s: %w", q.schema.TableName(), err)
	}
	return results, nil
}

// Take returns one matching record without ordering, or ErrNotFound.
func (q *QueryBuilder[T]) Take(ctx context.Context) (*T, error) {
	results, err := q.Limit(1).Find(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results[0], nil
}

// First returns the first matching record ordered by primary key, or ErrNotFound.
func (q *QueryBuilder[T]) First(ctx context.Context) (*T, error) {
	return q.OrderBy(OrderByColumn{Column: q.schema.PK(nil).Column}).Take(ctx)
}

// Count returns the number of matching records, ignoring Limit and Offset.
func (q *QueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args, err := q.builder.Columns("COUNT(*)").
		RemoveLimit().
		RemoveOffset().
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("orm: failed to build count sql: %w", err)
	}

	var count int64
	if err := q.session.Get(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("orm: count %s: %w", q.schema.TableName(), err)
	}
	return count, nil
}

// ToSQL returns the SQL string and arguments without executing the query.
func (q *QueryBuilder[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	return q.builder.Columns(q.schema.SelectColumns()...).ToSql()
}
