package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"text/template"
)

const ormImport = "github.com/arllen133/usersvc/orm"

var schemaTemplate = template.Must(template.New("schema").Parse(`// Code generated by orm-gen. DO NOT EDIT.

package {{.PackageName}}

import (
	"{{.ImportPath}}"
	"` + ormImport + `"
)

// {{.ModelName}} holds typed column references for {{.ParentPackage}}.{{.ModelName}}.
var {{.ModelName}} = struct {
{{- range .Fields}}
	{{.FieldName}} {{.FieldType}}
{{- end}}
}{
{{- range .Fields}}
	{{.FieldName}}: {{.FieldInit}},
{{- end}}
}

type {{.SchemaStructName}} struct{}

func ({{.SchemaStructName}}) TableName() string { return {{printf "%q" .TableName}} }

func ({{.SchemaStructName}}) Table() orm.TableDef {
	return orm.TableDef{
		Name: {{printf "%q" .TableName}},
		Columns: []orm.ColumnDef{
{{- range .Fields}}
			{Name: {{printf "%q" .Column}}, Type: orm.{{.ColumnType}}
				{{- if .Size}}, Size: {{.Size}}{{end}}
				{{- if .IsPK}}, PrimaryKey: true{{end}}
				{{- if .AutoIncr}}, AutoIncrement: true{{end}}
				{{- if .NotNull}}, NotNull: true{{end}}
				{{- if .Unique}}, Unique: true{{end}}
				{{- if .Index}}, Index: true{{end}}
				{{- if .Default}}, Default: {{printf "%q" .Default}}{{end -}}
			},
{{- end}}
		},
	}
}

func ({{.SchemaStructName}}) SelectColumns() []string {
	return []string{ {{- range $i, $f := .Fields}}{{if $i}}, {{end}}{{printf "%q" $f.Column}}{{end -}} }
}

func ({{.SchemaStructName}}) InsertRow(m *{{.ParentPackage}}.{{.ModelName}}) ([]string, []any) {
	cols := []string{ {{- range $i, $f := .InsertFields}}{{if $i}}, {{end}}{{printf "%q" $f.Column}}{{end -}} }
	vals := []any{ {{- range $i, $f := .InsertFields}}{{if $i}}, {{end}}m.{{$f.FieldName}}{{end -}} }
{{- if .IsAutoIncrementPK}}
	if m.{{.PKFieldName}} != 0 {
		cols = append([]string{ {{- printf "%q" .PKColumnName -}} }, cols...)
		vals = append([]any{m.{{.PKFieldName}}}, vals...)
	}
{{- end}}
	return cols, vals
}

func ({{.SchemaStructName}}) UpdateMap(m *{{.ParentPackage}}.{{.ModelName}}) map[string]any {
	return map[string]any{
{{- range .UpdateFields}}
		{{printf "%q" .Column}}: m.{{.FieldName}},
{{- end}}
	}
}

func ({{.SchemaStructName}}) PK(m *{{.ParentPackage}}.{{.ModelName}}) orm.PK {
	var val any
	if m != nil {
		val = m.{{.PKFieldName}}
	}
	return orm.PK{Column: orm.Column{Name: {{printf "%q" .PKColumnName}}}, Value: val}
}

func ({{.SchemaStructName}}) SetPK(m *{{.ParentPackage}}.{{.ModelName}}, val int64) {
	{{- if eq .PKFieldType "int64"}} m.{{.PKFieldName}} = val {{else}} m.{{.PKFieldName}} = {{.PKFieldType}}(val) {{end -}}
}

func ({{.SchemaStructName}}) AutoIncrement() bool { return {{.IsAutoIncrementPK}} }

// {{.ModelName}}Schema is the registered schema for {{.ParentPackage}}.{{.ModelName}}.
var {{.ModelName}}Schema orm.Schema[{{.ParentPackage}}.{{.ModelName}}] = {{.SchemaStructName}}{}

func init() {
	orm.RegisterSchema({{.ModelName}}Schema)
}
`))

// Render returns the gofmt-ed schema source for m.
func Render(m ModelMeta) ([]byte, error) {
	if m.ImportPath == "" {
		return nil, fmt.Errorf("%s: import path of package %s is unknown", m.ModelName, m.ParentPackage)
	}
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, m); err != nil {
		return nil, fmt.Errorf("render %s: %w", m.ModelName, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", m.ModelName, err)
	}
	return src, nil
}

// GenerateFile writes the schema for m into outDir.
func GenerateFile(m ModelMeta, outDir string) error {
	src, err := Render(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, m.FileName), src, 0o644)
}
