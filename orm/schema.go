package orm

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// PK identifies a primary key column and, when a model is given, its value.
type PK = Eq

// Schema defines how to map a model to a table and back.
// Implementations are normally generated next to the model (see models/generated).
type Schema[T any] interface {
	// Table Metadata
	TableName() string
	Table() TableDef

	// Read Operations
	SelectColumns() []string

	// Write Operations
	InsertRow(*T) ([]string, []any)
	UpdateMap(*T) map[string]any

	// Primary Key
	PK(*T) PK
	SetPK(m *T, val int64)
	AutoIncrement() bool
}

// ColumnType is the portable column type. Dialects render it to SQL.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeBigInt
	TypeString
	TypeTimestamp
)

// ColumnDef describes one persisted column.
type ColumnDef struct {
	Name          string
	Type          ColumnType
	Size          int // length for TypeString; 0 means unbounded text
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Index         bool
	Default       string // raw SQL default, e.g. CURRENT_TIMESTAMP
}

// TableDef describes the persisted shape of a model.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// IndexName returns the conventional index name for a column: ix_<table>_<column>.
func (t TableDef) IndexName(column string) string {
	return "ix_" + t.Name + "_" + column
}

type registry struct {
	mu      sync.RWMutex
	schemas map[reflect.Type]any
	order   []reflect.Type
}

var schemas = &registry{schemas: make(map[reflect.Type]any)}

// RegisterSchema records the schema for model T.
// Registering the same model twice replaces the earlier schema but keeps its position.
func RegisterSchema[T any](schema Schema[T]) {
	typ := reflect.TypeFor[T]()

	schemas.mu.Lock()
	defer schemas.mu.Unlock()
	if _, ok := schemas.schemas[typ]; !ok {
		schemas.order = append(schemas.order, typ)
	}
	schemas.schemas[typ] = schema
}

// LoadSchema returns the schema registered for T.
// It panics if T was never registered, which is a programming error.
func LoadSchema[T any]() Schema[T] {
	typ := reflect.TypeFor[T]()

	schemas.mu.RLock()
	s, ok := schemas.schemas[typ]
	schemas.mu.RUnlock()
	if ok {
		return s.(Schema[T])
	}
	panic(fmt.Sprintf("orm: schema not registered for type %v", typ))
}

type tableDefiner interface {
	Table() TableDef
}

// RegisteredTables lists every registered table definition in registration order.
func RegisteredTables() []TableDef {
	schemas.mu.RLock()
	defer schemas.mu.RUnlock()

	defs := make([]TableDef, 0, len(schemas.order))
	for _, typ := range schemas.order {
		defs = append(defs, schemas.schemas[typ].(tableDefiner).Table())
	}
	return defs
}

// EnsureSchema creates every registered table that does not exist yet.
// Existing tables are never altered, so calling it again is a no-op.
func EnsureSchema(ctx context.Context, engine *Engine) error {
	return EnsureTables(ctx, engine, RegisteredTables()...)
}

// EnsureTables is EnsureSchema for an explicit list of tables.
func EnsureTables(ctx context.Context, engine *Engine, tables ...TableDef) error {
	return engine.WithSession(ctx, func(s *Session) error {
		for _, t := range tables {
			for _, stmt := range engine.dialect.CreateTable(t) {
				if _, err := s.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("orm: ensure table %s: %w", t.Name, err)
				}
			}
			if engine.obs.Logger != nil {
				engine.obs.Logger.LogAttrs(ctx, slog.LevelInfo, "table ensured",
					slog.String("table", t.Name),
					slog.String("db.system", engine.dialect.Name()),
				)
			}
		}
		return nil
	})
}
