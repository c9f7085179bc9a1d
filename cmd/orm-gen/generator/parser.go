package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type ModelMeta struct {
	PackageName       string // package of the generated file
	ParentPackage     string // For generated code to reference parent package
	ImportPath        string // import path of the parent package
	ModelName         string
	TableName         string
	Fields            []FieldMeta
	InsertFields      []FieldMeta // every column except an auto-increment key
	UpdateFields      []FieldMeta // columns written by Update
	PKFieldName       string      // Cached PK Field Name
	PKColumnName      string      // Cached PK Column Name
	PKFieldType       string      // Cached PK Field Type
	IsAutoIncrementPK bool        // Cached PK AutoIncrement status
	SchemaStructName  string      // e.g. userSchema
	FileName          string      // e.g. user.go
}

type FieldMeta struct {
	FieldName  string
	Column     string
	Type       string // Go type as written in the model
	FieldType  string // typed reference, e.g. orm.Number[int64]
	FieldInit  string // constructor expression for FieldType
	ColumnType string // orm.ColumnType constant name
	Size       int
	IsPK       bool
	AutoIncr   bool
	NotNull    bool
	Unique     bool
	Index      bool
	Default    string
}

// ParseModels reads every struct with db tags in dir.
// Test files and files under the generated output are skipped.
func ParseModels(dir string) ([]ModelMeta, error) {
	fset := token.NewFileSet()
	notTest := func(fi fs.FileInfo) bool { return !strings.HasSuffix(fi.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(fset, dir, notTest, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var models []ModelMeta
	for pkgName, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, decl := range file.Decls {
				gd, ok := decl.(*ast.GenDecl)
				if !ok || gd.Tok != token.TYPE {
					continue
				}
				for _, spec := range gd.Specs {
					ts := spec.(*ast.TypeSpec)
					st, ok := ts.Type.(*ast.StructType)
					if !ok || !hasDBTags(st) {
						continue
					}
					model, err := parseModel(pkgName, ts.Name.Name, st)
					if err != nil {
						return nil, err
					}
					models = append(models, model)
				}
			}
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ModelName < models[j].ModelName })
	return models, nil
}

func hasDBTags(st *ast.StructType) bool {
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		tag, _ := strconv.Unquote(field.Tag.Value)
		if reflect.StructTag(tag).Get("db") != "" {
			return true
		}
	}
	return false
}

func parseModel(pkgName, modelName string, st *ast.StructType) (ModelMeta, error) {
	model := ModelMeta{
		PackageName:      "generated",
		ParentPackage:    pkgName,
		ModelName:        modelName,
		TableName:        toSnakeCase(modelName) + "s", // Default plural
		SchemaStructName: strings.ToLower(modelName[:1]) + modelName[1:] + "Schema",
		FileName:         toSnakeCase(modelName) + ".go",
	}

	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue // Embedded fields are not supported
		}

		meta := FieldMeta{
			FieldName: field.Names[0].Name,
			Column:    toSnakeCase(field.Names[0].Name),
			Type:      typeString(field.Type),
		}

		if field.Tag != nil {
			tag, _ := strconv.Unquote(field.Tag.Value)
			dbTag := reflect.StructTag(tag).Get("db")
			if dbTag == "-" {
				continue
			}
			if table := applyTag(&meta, dbTag); table != "" {
				model.TableName = table
			}
		}
		model.Fields = append(model.Fields, meta)

		// Cache PK info if this is the PK
		if meta.IsPK {
			model.PKFieldName = meta.FieldName
			model.PKColumnName = meta.Column
			model.PKFieldType = meta.Type
			model.IsAutoIncrementPK = meta.AutoIncr
		}
	}

	if model.PKFieldName == "" {
		return model, fmt.Errorf("%s: no primaryKey field", modelName)
	}

	for i := range model.Fields {
		f := &model.Fields[i]
		if err := resolveType(f, model.TableName); err != nil {
			return model, fmt.Errorf("%s.%s: %w", modelName, f.FieldName, err)
		}
		if !(f.IsPK && f.AutoIncr) {
			model.InsertFields = append(model.InsertFields, *f)
		}
		// Columns with a database default are set at insert time only.
		if !f.IsPK && f.Default == "" {
			model.UpdateFields = append(model.UpdateFields, *f)
		}
	}
	return model, nil
}

// applyTag reads "column,opt,opt:value" and returns a table name if one is given.
func applyTag(meta *FieldMeta, tag string) (table string) {
	// Normalize separators: replace ; with ,
	parts := strings.Split(strings.ReplaceAll(tag, ";", ","), ",")

	if parts[0] != "" && !strings.Contains(parts[0], ":") {
		meta.Column = parts[0]
	}

	for _, part := range parts {
		key, value, _ := strings.Cut(part, ":")
		switch key {
		case "primaryKey":
			meta.IsPK = true
		case "autoIncrement":
			meta.AutoIncr = true
		case "notNull":
			meta.NotNull = true
		case "unique":
			meta.Unique = true
		case "index":
			meta.Index = true
		case "size":
			meta.Size, _ = strconv.Atoi(value)
		case "default":
			meta.Default = value
		case "table":
			table = value
		case "column":
			meta.Column = value
		}
	}
	return table
}

func resolveType(f *FieldMeta, table string) error {
	ref := fmt.Sprintf("(%q, %q)", table, f.Column)
	switch f.Type {
	case "string", "*string":
		f.ColumnType = "TypeString"
		f.FieldType = "orm.String"
		f.FieldInit = "orm.NewString" + ref
	case "int64", "*int64", "uint64":
		f.ColumnType = "TypeBigInt"
		f.FieldType = "orm.Number[int64]"
		f.FieldInit = "orm.NewNumber[int64]" + ref
	case "int", "int32", "*int", "uint", "uint32":
		f.ColumnType = "TypeInteger"
		f.FieldType = "orm.Number[int]"
		f.FieldInit = "orm.NewNumber[int]" + ref
	case "time.Time", "*time.Time":
		f.ColumnType = "TypeTimestamp"
		f.FieldType = "orm.Column"
		f.FieldInit = fmt.Sprintf("orm.Column{Table: %q, Name: %q}", table, f.Column)
	default:
		return fmt.Errorf("unsupported field type %s", f.Type)
	}
	return nil
}

func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + typeString(t.Elt)
	}
	return fmt.Sprintf("%T", expr)
}

func toSnakeCase(s string) string {
	var res strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			// ID stays "id", UserID becomes "user_id"
			if i > 0 && (runes[i-1] < 'A' || runes[i-1] > 'Z') {
				res.WriteRune('_')
			}
			res.WriteRune(r + ('a' - 'A'))
		} else {
			res.WriteRune(r)
		}
	}
	return res.String()
}
