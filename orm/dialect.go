// Package orm is a small type-safe data layer built on sqlx and squirrel.
//
// It provides the pieces a request-scoped web service needs:
//   - Engine: the process-wide connection handle, opened once at startup
//   - Session: a handle pinned to one pooled connection, borrowed per request
//   - Schema registry: model to table mapping, used to create tables at boot
//   - Repository / QueryBuilder: generic CRUD over registered models
//
// This file implements the database dialect abstraction.
//
// Dialect is responsible for:
//   - Database identification (MySQL, PostgreSQL, SQLite)
//   - Placeholder format (? vs $1, $2)
//   - Table and index DDL
//   - Recognising unique constraint violations from each driver
//
// Usage example:
//
//	engine, err := orm.Open(ctx, "mysql", dsn)
//	engine := orm.NewEngine(db, orm.SQLite)
package orm

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	SQLite     = SQLiteDialect{}
	MySQL      = MySQLDialect{}
	PostgreSQL = PostgreSQLDialect{}
)

// Dialect abstracts database-specific SQL features.
//
// Implementations:
//   - MySQLDialect: MySQL 5.7+ (go-sql-driver/mysql)
//   - PostgreSQLDialect: PostgreSQL 12+ (lib/pq)
//   - SQLiteDialect: SQLite 3.24+ (mattn/go-sqlite3)
type Dialect interface {
	// Name returns the driver name registered with database/sql.
	// Used for logging, metrics and sqlx binding.
	Name() string

	// PlaceholderFormat returns the placeholder format used by the database.
	PlaceholderFormat() sq.PlaceholderFormat

	// CreateTable returns the statements that create t and its indexes
	// if they do not exist. Running them twice must be harmless.
	CreateTable(t TableDef) []string

	// SupportsReturning reports whether INSERT ... RETURNING is needed to
	// read generated keys (LastInsertId is unsupported).
	SupportsReturning() bool

	// IsUniqueViolation reports whether err is the driver's unique constraint error.
	IsUniqueViolation(err error) bool
}

// DialectFor maps a database/sql driver name to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "postgres":
		return PostgreSQL, nil
	case "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("orm: unsupported driver %q", driver)
}

// columnSQL renders "name TYPE [constraints]" with a dialect-specific type.
func columnSQL(c ColumnDef, typ string, autoIncrement string) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(typ)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement && autoIncrement != "" {
			b.WriteString(" " + autoIncrement)
		}
		return b.String()
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique && !c.Index {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT " + c.Default)
	}
	return b.String()
}

// createIndexes renders standalone CREATE [UNIQUE] INDEX IF NOT EXISTS statements.
// Primary keys are already indexed and skipped.
func createIndexes(t TableDef) []string {
	var stmts []string
	for _, c := range t.Columns {
		if !c.Index || c.PrimaryKey {
			continue
		}
		kind := "INDEX"
		if c.Unique {
			kind = "UNIQUE INDEX"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
			kind, t.IndexName(c.Name), t.Name, c.Name))
	}
	return stmts
}

func createTable(name string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", name, strings.Join(defs, ",\n\t"))
}

// MySQLDialect implements MySQL database dialect.
//
// MySQL features:
//   - Uses ? as placeholder
//   - CREATE INDEX has no IF NOT EXISTS, so indexes are declared inline
//   - Duplicate key errors carry error number 1062
type MySQLDialect struct{}

// Name returns the MySQL dialect name.
func (MySQLDialect) Name() string { return "mysql" }

// PlaceholderFormat returns MySQL's placeholder format (?).
func (MySQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (MySQLDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInteger:
		return "INT"
	case TypeBigInt:
		return "BIGINT"
	case TypeTimestamp:
		return "DATETIME"
	}
	if c.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return "TEXT"
}

// CreateTable renders one CREATE TABLE with inline index definitions.
func (d MySQLDialect) CreateTable(t TableDef) []string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		typ := d.columnType(c)
		if c.PrimaryKey {
			typ += " NOT NULL"
		}
		defs = append(defs, columnSQL(c, typ, "AUTO_INCREMENT"))
	}
	for _, c := range t.Columns {
		if !c.Index || c.PrimaryKey {
			continue
		}
		kind := "INDEX"
		if c.Unique {
			kind = "UNIQUE INDEX"
		}
		defs = append(defs, fmt.Sprintf("%s %s (%s)", kind, t.IndexName(c.Name), c.Name))
	}
	return []string{createTable(t.Name, defs)}
}

// SupportsReturning is false; MySQL reports LastInsertId.
func (MySQLDialect) SupportsReturning() bool { return false }

// IsUniqueViolation matches ER_DUP_ENTRY (1062).
func (MySQLDialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// PostgreSQLDialect implements PostgreSQL database dialect.
//
// PostgreSQL features:
//   - Uses $1, $2, $3 as placeholders
//   - Auto-increment keys are BIGSERIAL and read back with RETURNING
//   - Unique violations carry SQLSTATE 23505
type PostgreSQLDialect struct{}

// Name returns the PostgreSQL dialect name.
func (PostgreSQLDialect) Name() string { return "postgres" }

// PlaceholderFormat returns PostgreSQL's placeholder format ($1, $2, ...).
func (PostgreSQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

func (PostgreSQLDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInteger:
		if c.AutoIncrement {
			return "SERIAL"
		}
		return "INTEGER"
	case TypeBigInt:
		if c.AutoIncrement {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case TypeTimestamp:
		return "TIMESTAMPTZ"
	}
	if c.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return "TEXT"
}

// CreateTable renders CREATE TABLE followed by CREATE INDEX IF NOT EXISTS statements.
func (d PostgreSQLDialect) CreateTable(t TableDef) []string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, columnSQL(c, d.columnType(c), ""))
	}
	return append([]string{createTable(t.Name, defs)}, createIndexes(t)...)
}

// SupportsReturning is true; lib/pq does not implement LastInsertId.
func (PostgreSQLDialect) SupportsReturning() bool { return true }

// IsUniqueViolation matches SQLSTATE 23505 (unique_violation).
func (PostgreSQLDialect) IsUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}

// SQLiteDialect implements SQLite database dialect.
//
// SQLite features:
//   - Uses ? as placeholder
//   - Auto-increment keys must be declared exactly INTEGER PRIMARY KEY AUTOINCREMENT
//   - Commonly used in testing and development environments
type SQLiteDialect struct{}

// Name returns the SQLite dialect name.
func (SQLiteDialect) Name() string { return "sqlite3" }

// PlaceholderFormat returns SQLite's placeholder format (?).
func (SQLiteDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (SQLiteDialect) columnType(c ColumnDef) string {
	switch c.Type {
	case TypeInteger, TypeBigInt:
		return "INTEGER"
	case TypeTimestamp:
		return "TIMESTAMP"
	}
	if c.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return "TEXT"
}

// CreateTable renders CREATE TABLE followed by CREATE INDEX IF NOT EXISTS statements.
func (d SQLiteDialect) CreateTable(t TableDef) []string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, columnSQL(c, d.columnType(c), "AUTOINCREMENT"))
	}
	return append([]string{createTable(t.Name, defs)}, createIndexes(t)...)
}

// SupportsReturning is false; go-sqlite3 reports LastInsertId.
func (SQLiteDialect) SupportsReturning() bool { return false }

// IsUniqueViolation matches SQLITE_CONSTRAINT_UNIQUE and SQLITE_CONSTRAINT_PRIMARYKEY.
func (SQLiteDialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
