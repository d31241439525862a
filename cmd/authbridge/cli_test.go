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

package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sqliteTables(t *testing.T, path string) []string {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	sort.Strings(names)
	return names
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerateWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "models.go")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))

	stdout, err := execute(t, "generate", "--package", "authmodels", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 4 tables to "+out)

	code, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(code), "stale")
	assert.Contains(t, string(code), "package authmodels")
	assert.Contains(t, string(code), "type User struct")
	assert.Contains(t, string(code), "type Verification struct")
}

func TestGenerateToStdoutFromSchemaFile(t *testing.T) {
	dir := t.TempDir()
	schemaFile := writeFile(t, dir, "schema.yaml", `
tables:
  - key: apikey
    fields:
      - name: key
        type: string
        required: true
        unique: true
`)

	stdout, err := execute(t, "generate", "--schema", schemaFile, "--plural", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "package models")
	assert.Contains(t, stdout, "type Apikey struct")
	assert.Contains(t, stdout, "table:apikeys")
	_, err = os.Stat(filepath.Join(dir, "auth_schema.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRejectsMissingSchema(t *testing.T) {
	_, err := execute(t, "generate", "--schema", filepath.Join(t.TempDir(), "missing.yaml"), "-o", "-")
	assert.Error(t, err)
}

func TestMigrateCreatesTables(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "auth.db")
	cfg := writeFile(t, dir, "db.yaml", fmt.Sprintf(`
connection:
  type: sqlite
  dbname: %s
migrate:
  enable_foreign_key: true
`, dbPath))

	stdout, err := execute(t, "migrate", "--config", cfg, "--env-file", filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "schema ready on sqlite database "+dbPath)

	assert.Equal(t, []string{"account", "authbridge_migrations", "session", "user", "verification"}, sqliteTables(t, dbPath))

	_, err = execute(t, "migrate", "--config", cfg, "--env-file", "")
	require.NoError(t, err)
}

func TestMigrateReadsEnvFile(t *testing.T) {
	t.Setenv("DB_NAME", "")
	require.NoError(t, os.Unsetenv("DB_NAME"))

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from_env.db")
	envFile := writeFile(t, dir, "test.env", "DB_NAME="+dbPath+"\n")
	schemaFile := writeFile(t, dir, "schema.yaml", `
tables:
  - key: jwks
    fields:
      - name: publicKey
        type: string
        required: true
`)
	cfg := writeFile(t, dir, "db.yaml", `
connection:
  type: sqlite
  dbname: ignored.db
`)

	_, err := execute(t, "migrate", "--config", cfg, "--schema", schemaFile, "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"authbridge_migrations", "jwks"}, sqliteTables(t, dbPath))
}

func TestMigrateVerboseReportsHealth(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "auth.db")
	cfg := writeFile(t, dir, "db.yaml", fmt.Sprintf(`
connection:
  type: sqlite
  dbname: %s
  max_open_conns: 4
`, dbPath))

	stdout, err := execute(t, "--verbose", "migrate", "--config", cfg, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "schema ready on sqlite database "+dbPath)
	assert.Contains(t, stdout, "healthy: true")
	assert.Contains(t, stdout, "type: sqlite")
	assert.Contains(t, stdout, "max_open_conns: 4")
	assert.Contains(t, stdout, "open_conns:")

	stdout, err = execute(t, "migrate", "--config", cfg, "--env-file", "")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "healthy:")
}

func TestStatusReportsSchema(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "auth.db")
	cfg := writeFile(t, dir, "db.yaml", fmt.Sprintf(`
connection:
  type: sqlite
  dbname: %s
`, dbPath))

	stdout, err := execute(t, "status", "--config", cfg, "--env-file", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not ready")
	assert.Contains(t, stdout, "healthy: true")
	assert.Contains(t, stdout, "applied: false")
	assert.Contains(t, stdout, "exists: false")
	assert.Empty(t, sqliteTables(t, dbPath))

	_, err = execute(t, "migrate", "--config", cfg, "--env-file", "")
	require.NoError(t, err)

	stdout, err = execute(t, "status", "--config", cfg, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied: true")
	assert.Contains(t, stdout, "name: user")
	assert.NotContains(t, stdout, "exists: false")
	assert.NotContains(t, stdout, "missing_columns")
}

func TestStatusRequiresConfig(t *testing.T) {
	_, err := execute(t, "status")
	assert.Error(t, err)
}

func TestMigrateRequiresConfig(t *testing.T) {
	_, err := execute(t, "migrate")
	assert.Error(t, err)
}
