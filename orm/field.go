package orm

import "golang.org/x/exp/constraints"

// String is a typed reference to a text column, used by generated schemas.
type String struct {
	column Column
}

// NewString returns a String field bound to table.name.
func NewString(table, name string) String {
	return String{column: Column{Table: table, Name: name}}
}

// Column returns the underlying column for this field
func (s String) Column() Column { return s.column }

// ColumnName implements the Columnar interface
func (s String) ColumnName() string { return s.column.ColumnName() }

// Eq creates an equality comparison expression (field = value).
func (s String) Eq(value string) Expression {
	return Eq{Column: s.column, Value: value}
}

// Like creates a LIKE comparison expression (field LIKE pattern).
func (s String) Like(pattern string) Expression {
	return Like{Column: s.column, Value: pattern}
}

// In creates an IN comparison expression (field IN (values...)).
func (s String) In(values ...string) Expression {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In{Column: s.column, Values: vals}
}

// Set creates an assignment for UPDATE operations (field = value).
func (s String) Set(val string) Assignment {
	return Assignment{Column: s.column, Value: val}
}

// Asc creates an ascending order expression for ORDER BY clauses.
func (s String) Asc() OrderByColumn { return OrderByColumn{Column: s.column} }

// Desc creates a descending order expression for ORDER BY clauses.
func (s String) Desc() OrderByColumn { return OrderByColumn{Column: s.column, Desc: true} }

// Number is a typed reference to a numeric column.
type Number[T constraints.Integer | constraints.Float] struct {
	column Column
}

// NewNumber returns a Number field bound to table.name.
func NewNumber[T constraints.Integer | constraints.Float](table, name string) Number[T] {
	return Number[T]{column: Column{Table: table, Name: name}}
}

// Column returns the underlying column for this field
func (n Number[T]) Column() Column { return n.column }

// ColumnName implements the Columnar interface
func (n Number[T]) ColumnName() string { return n.column.ColumnName() }

// Eq creates an equality comparison expression (field = value).
func (n Number[T]) Eq(value T) Expression {
	return Eq{Column: n.column, Value: value}
}

// Gt creates a greater than comparison expression (field > value).
func (n Number[T]) Gt(value T) Expression {
	return Gt{Column: n.column, Value: value}
}

// Lt creates a less than comparison expression (field < value).
func (n Number[T]) Lt(value T) Expression {
	return Lt{Column: n.column, Value: value}
}

// Set creates an assignment for UPDATE operations (field = value).
func (n Number[T]) Set(val T) Assignment {
	return Assignment{Column: n.column, Value: val}
}

// Asc creates an ascending order expression for ORDER BY clauses.
func (n Number[T]) Asc() OrderByColumn { return OrderByColumn{Column: n.column} }

// Desc creates a descending order expression for ORDER BY clauses.
func (n Number[T]) Desc() OrderByColumn { return OrderByColumn{Column: n.column, Desc: true} }

var (
	_ Columnar = String{}
	_ Columnar = Number[int64]{}
)
