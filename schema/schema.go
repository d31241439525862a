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

package schema

import (
	"fmt"
	"sort"
	"strings"
)

// IDField is the identifier field every model carries. The framework's schema
// description never lists it explicitly.
const IDField = "id"

// FieldType is the framework-level type of a field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeBoolean     FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeStringArray FieldType = "string[]"
	TypeNumberArray FieldType = "number[]"
)

// IsValid reports whether the type is one of the supported field types.
func (t FieldType) IsValid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeStringArray, TypeNumberArray:
		return true
	}
	return false
}

// IsArray reports whether values of this type are lists.
func (t FieldType) IsArray() bool { return t == TypeStringArray || t == TypeNumberArray }

// Reference points a field at another model's field.
type Reference struct {
	Model    string `json:"model" yaml:"model"`
	Field    string `json:"field" yaml:"field"`
	OnDelete string `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
}

// Field describes one column of a model.
type Field struct {
	Name         string     `json:"fieldName" yaml:"name"`
	Type         FieldType  `json:"type" yaml:"type"`
	Required     bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Unique       bool       `json:"unique,omitempty" yaml:"unique,omitempty"`
	References   *Reference `json:"references,omitempty" yaml:"references,omitempty"`
	DefaultValue any        `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// Table describes one model of the authentication schema.
type Table struct {
	// Key is the name the framework uses for the table in its schema map.
	Key string `json:"key" yaml:"key"`
	// ModelName is the logical model name operations are addressed with.
	ModelName string `json:"modelName,omitempty" yaml:"modelName,omitempty"`
	// DBName overrides the physical table name.
	DBName string  `json:"dbName,omitempty" yaml:"dbName,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
	// Order controls creation order; referenced tables should sort first.
	Order int `json:"order,omitempty" yaml:"order,omitempty"`
}

// Name returns the logical model name.
func (t Table) Name() string {
	if t.ModelName != "" {
		return t.ModelName
	}
	return t.Key
}

// TableName returns the physical table name.
func (t Table) TableName() string {
	if t.DBName != "" {
		return t.DBName
	}
	return t.Name()
}

// Field looks a field up by name.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// References returns the fields that point at another model.
func (t Table) References() []Field {
	var refs []Field
	for _, f := range t.Fields {
		if f.References != nil {
			refs = append(refs, f)
		}
	}
	return refs
}

// Sorted returns the tables ordered by Order, keeping declaration order for ties.
func Sorted(tables []Table) []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Validate checks field types, duplicate names and reference targets.
func Validate(tables []Table) error {
	models := make(map[string]Table, len(tables))
	for _, t := range tables {
		if t.Name() == "" {
			return fmt.Errorf("table without key or model name")
		}
		if _, dup := models[t.Name()]; dup {
			return fmt.Errorf("duplicate model %q", t.Name())
		}
		models[t.Name()] = t
	}
	var problems []string
	for _, t := range tables {
		seen := map[string]bool{IDField: true}
		for _, f := range t.Fields {
			if f.Name == "" {
				problems = append(problems, fmt.Sprintf("%s: field without name", t.Name()))
				continue
			}
			if seen[f.Name] {
				problems = append(problems, fmt.Sprintf("%s.%s: duplicate field", t.Name(), f.Name))
			}
			seen[f.Name] = true
			if !f.Type.IsValid() {
				problems = append(problems, fmt.Sprintf("%s.%s: unsupported field type %q", t.Name(), f.Name, f.Type))
			}
			if ref := f.References; ref != nil {
				if _, ok := models[ref.Model]; !ok {
					problems = append(problems, fmt.Sprintf("%s.%s: references unknown model %q", t.Name(), f.Name, ref.Model))
				}
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid schema: %s", strings.Join(problems, "; "))
	}
	return nil
}
