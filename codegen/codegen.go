/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/tomoncle/authbridge/schema"
)

const (
	bunPkg  = "github.com/uptrace/bun"
	timePkg = "time"

	// DefaultPackage is the package name of emitted files.
	DefaultPackage = "models"
)

// Options controls naming of the emitted file.
type Options struct {
	// Package is the package clause of the emitted file.
	Package string `json:"package" yaml:"package"`
	// PluralTables pluralises table names that have no explicit DBName.
	PluralTables bool `json:"pluralTables" yaml:"pluralTables"`
}

// File is the structured form of an emitted source file.
type File struct {
	Package  string
	Entities []Entity
}

// Entity is one bun model struct.
type Entity struct {
	Name      string
	Table     string
	Alias     string
	Fields    []FieldSpec
	Relations []Relation
}

// FieldSpec is one column field of an entity.
type FieldSpec struct {
	Name     string
	Column   string
	Type     schema.FieldType
	Optional bool
	BunTag   string
	// Validate is a validator tag, set for email columns. Uniqueness stays
	// with the unique option of BunTag.
	Validate string
}

// Relation is a belongs-to field generated for a reference.
type Relation struct {
	Name   string
	Target string
	Join   string
}

// Emit renders the tables as Go source.
func Emit(tables []schema.Table, opts Options) (string, error) {
	file, err := Build(tables, opts)
	if err != nil {
		return "", err
	}
	return file.Render()
}

// Build converts tables into the structured file model.
func Build(tables []schema.Table, opts Options) (*File, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	structNames := make(map[string]string, len(tables))
	for _, t := range tables {
		structNames[t.Name()] = StructName(t.Name())
	}

	file := &File{Package: pkg}
	aliases := map[string]bool{}
	for _, t := range schema.Sorted(tables) {
		entity := Entity{
			Name:  structNames[t.Name()],
			Table: tableName(t, opts.PluralTables),
		}
		entity.Alias = uniqueAlias(t.Name(), aliases)
		entity.Fields = append(entity.Fields, FieldSpec{
			Name:   "ID",
			Column: schema.IDField,
			Type:   schema.TypeString,
			BunTag: schema.IDField + ",pk",
		})
		taken := map[string]bool{"ID": true}
		for _, f := range t.Fields {
			if f.Name == schema.IDField {
				continue
			}
			if !f.Type.IsValid() {
				return nil, fmt.Errorf("codegen: %s.%s: unsupported field type %q", t.Name(), f.Name, f.Type)
			}
			spec := FieldSpec{
				Name:     FieldName(f.Name),
				Column:   f.Name,
				Type:     f.Type,
				Optional: !f.Required,
				BunTag:   bunTag(f),
				Validate: validateTag(f),
			}
			taken[spec.Name] = true
			entity.Fields = append(entity.Fields, spec)
		}
		for _, f := range t.References() {
			target, ok := structNames[f.References.Model]
			if !ok {
				return nil, fmt.Errorf("codegen: %s.%s: references unknown model %q", t.Name(), f.Name, f.References.Model)
			}
			refField := f.References.Field
			if refField == "" {
				refField = schema.IDField
			}
			name := strings.TrimSuffix(FieldName(f.Name), "ID")
			if name == "" || taken[name] {
				name = FieldName(f.Name) + "Rel"
			}
			taken[name] = true
			entity.Relations = append(entity.Relations, Relation{
				Name:   name,
				Target: target,
				Join:   f.Name + "=" + refField,
			})
		}
		file.Entities = append(file.Entities, entity)
	}
	return file, nil
}

// StructName returns the Go type name of a model.
func StructName(model string) string {
	return goAcronyms(inflect.Camelize(model))
}

// FieldName returns the Go field name of a column.
func FieldName(column string) string {
	return goAcronyms(inflect.Camelize(column))
}

func goAcronyms(name string) string {
	if name == "Id" {
		return "ID"
	}
	if strings.HasSuffix(name, "Id") {
		return strings.TrimSuffix(name, "Id") + "ID"
	}
	return name
}

func tableName(t schema.Table, plural bool) string {
	if t.DBName != "" || !plural {
		return t.TableName()
	}
	return inflect.Pluralize(t.TableName())
}

func uniqueAlias(model string, used map[string]bool) string {
	base := "t"
	if model != "" {
		base = strings.ToLower(model[:1])
	}
	alias := base
	for i := 2; used[alias]; i++ {
		alias = fmt.Sprintf("%s%d", base, i)
	}
	used[alias] = true
	return alias
}

func bunTag(f schema.Field) string {
	parts := []string{f.Name}
	if f.Type == schema.TypeDate && (f.Name == "createdAt" || f.Name == "updatedAt") {
		parts = append(parts, "nullzero")
	}
	if f.Required {
		parts = append(parts, "notnull")
	}
	if f.Unique {
		parts = append(parts, "unique")
	}
	switch v := f.DefaultValue.(type) {
	case nil:
		if f.Type == schema.TypeDate && (f.Name == "createdAt" || f.Name == "updatedAt") {
			parts = append(parts, "default:current_timestamp")
		}
	case string:
		parts = append(parts, "default:'"+strings.ReplaceAll(v, "'", "''")+"'")
	default:
		parts = append(parts, fmt.Sprintf("default:%v", v))
	}
	return strings.Join(parts, ",")
}

func validateTag(f schema.Field) string {
	if f.Type != schema.TypeString || !strings.HasSuffix(strings.ToLower(f.Name), "email") {
		return ""
	}
	if f.Required {
		return "required,email"
	}
	return "omitempty,email"
}

// Render prints the file as formatted Go source.
func (f *File) Render() (string, error) {
	out := jen.NewFile(f.Package)
	out.HeaderComment("Code generated by authbridge. DO NOT EDIT.")
	for _, e := range f.Entities {
		out.Commentf("%s is the bun model of the %q table.", e.Name, e.Table)
		out.Type().Id(e.Name).Struct(e.fields()...)
		out.Line()
	}
	var buf bytes.Buffer
	if err := out.Render(&buf); err != nil {
		return "", fmt.Errorf("codegen: render: %w", err)
	}
	return buf.String(), nil
}

func (e Entity) fields() []jen.Code {
	codes := []jen.Code{
		jen.Qual(bunPkg, "BaseModel").Tag(map[string]string{"bun": fmt.Sprintf("table:%s,alias:%s", e.Table, e.Alias)}),
		jen.Line(),
	}
	for _, f := range e.Fields {
		json := f.Column
		if f.Optional {
			json += ",omitempty"
		}
		tags := map[string]string{"bun": f.BunTag, "json": json}
		if f.Validate != "" {
			tags["validate"] = f.Validate
		}
		codes = append(codes, f.goType(jen.Id(f.Name)).Tag(tags))
	}
	for _, r := range e.Relations {
		codes = append(codes, jen.Id(r.Name).Op("*").Id(r.Target).Tag(map[string]string{
			"bun":  "rel:belongs-to,join:" + r.Join,
			"json": "-",
		}))
	}
	return codes
}

func (f FieldSpec) goType(s *jen.Statement) *jen.Statement {
	if f.Optional && !f.Type.IsArray() {
		s = s.Op("*")
	}
	switch f.Type {
	case schema.TypeNumber:
		return s.Int64()
	case schema.TypeBoolean:
		return s.Bool()
	case schema.TypeDate:
		return s.Qual(timePkg, "Time")
	case schema.TypeStringArray:
		return s.Index().String()
	case schema.TypeNumberArray:
		return s.Index().Float64()
	default:
		return s.String()
	}
}
