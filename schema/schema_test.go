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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthTablesAreValid(t *testing.T) {
	tables := AuthTables()
	require.NoError(t, Validate(tables))

	names := make([]string, 0, len(tables))
	for _, tbl := range Sorted(tables) {
		names = append(names, tbl.Name())
	}
	assert.Equal(t, []string{"user", "session", "account", "verification"}, names)

	session := tables[1]
	refs := session.References()
	require.Len(t, refs, 1)
	assert.Equal(t, "userId", refs[0].Name)
	assert.Equal(t, "user", refs[0].References.Model)
}

func TestValidateRejectsBadSchemas(t *testing.T) {
	err := Validate([]Table{{Key: "a", Fields: []Field{{Name: "x", Type: "json"}}}})
	assert.ErrorContains(t, err, `unsupported field type "json"`)

	err = Validate([]Table{{Key: "a"}, {Key: "a"}})
	assert.ErrorContains(t, err, "duplicate model")

	err = Validate([]Table{{Key: "a", Fields: []Field{{Name: "bId", Type: TypeString, References: &Reference{Model: "b", Field: "id"}}}}})
	assert.ErrorContains(t, err, `unknown model "b"`)
}

func TestTableNames(t *testing.T) {
	tbl := Table{Key: "user"}
	assert.Equal(t, "user", tbl.Name())
	assert.Equal(t, "user", tbl.TableName())

	tbl.DBName = "users"
	assert.Equal(t, "users", tbl.TableName())
}

func TestParseAndLoad(t *testing.T) {
	doc := []byte(`
tables:
  - key: user
    fields:
      - name: email
        type: string
        required: true
        unique: true
  - key: apiKey
    modelName: apikey
    fields:
      - name: userId
        type: string
        references: {model: user, field: id, onDelete: cascade}
      - name: scopes
        type: string[]
`)
	tables, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Order)
	assert.Equal(t, 2, tables[1].Order)
	assert.Equal(t, "apikey", tables[1].Name())

	out, err := Marshal(tables)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tables, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	tbl := Table{Key: "t", Fields: []Field{
		{Name: "at", Type: TypeDate},
		{Name: "ok", Type: TypeBoolean},
		{Name: "n", Type: TypeNumber},
		{Name: "tags", Type: TypeStringArray},
		{Name: "scores", Type: TypeNumberArray},
		{Name: "s", Type: TypeString},
	}}
	row := tbl.Coerce(map[string]any{
		"id":     []byte("abc"),
		"at":     "2025-01-02 03:04:05.123456+00:00",
		"ok":     int64(1),
		"n":      float64(42),
		"tags":   `["a","b"]`,
		"scores": []any{float64(1), float64(2.5)},
		"s":      []byte("hello"),
		"extra":  nil,
	})

	assert.Equal(t, "abc", row["id"])
	at, ok := row["at"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2025, at.Year())
	assert.Equal(t, 123456000, at.Nanosecond())
	assert.Equal(t, true, row["ok"])
	assert.Equal(t, int64(42), row["n"])
	assert.Equal(t, []string{"a", "b"}, row["tags"])
	assert.Equal(t, []float64{1, 2.5}, row["scores"])
	assert.Equal(t, "hello", row["s"])
	assert.Nil(t, row["extra"])
	assert.Contains(t, row, "extra")
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2025-06-01T10:00:00Z",
		"2025-06-01T10:00:00.5+02:00",
		"2025-06-01 10:00:00",
	} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
