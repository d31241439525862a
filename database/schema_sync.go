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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/schema"
)

// columnSpec is a column as it exists in, or should be added to, a table.
type columnSpec struct {
	Name    string
	Type    string
	NotNull bool
	Unique  bool
	Default string
}

// ColumnType returns the SQL type a field is stored as. Strings that are
// unique or reference another table use VARCHAR on mysql, where TEXT
// cannot be indexed.
func ColumnType(d dialect.Name, f schema.Field) string {
	switch f.Type {
	case schema.TypeNumber:
		if d == dialect.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeDate:
		switch d {
		case dialect.PG:
			return "TIMESTAMPTZ"
		case dialect.MySQL:
			return "DATETIME(6)"
		default:
			return "TIMESTAMP"
		}
	case schema.TypeString:
		if d == dialect.MySQL && (f.Unique || f.References != nil) {
			return "VARCHAR(255)"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

func idColumnType(d dialect.Name) string {
	if d == dialect.MySQL {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func desiredColumns(fmter bunschema.Formatter, t schema.Table) []columnSpec {
	d := fmter.Dialect().Name()
	cols := make([]columnSpec, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == schema.IDField {
			continue
		}
		c := columnSpec{Name: f.Name, Type: ColumnType(d, f), NotNull: f.Required, Unique: f.Unique}
		if def, ok := defaultLiteral(fmter, f.DefaultValue); ok {
			c.Default = def
		}
		cols = append(cols, c)
	}
	return cols
}

// defaultLiteral formats scalar defaults; other values are applied by the caller.
func defaultLiteral(fmter bunschema.Formatter, v any) (string, bool) {
	switch v.(type) {
	case string, bool, int, int64, float64:
		return fmter.FormatQuery("?", v), true
	}
	return "", false
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement for the table.
func CreateTableSQL(d bunschema.Dialect, t schema.Table, fks []ForeignKeyConstraint) string {
	fmter := bunschema.NewFormatter(d)
	defs := []string{fmter.FormatQuery("? "+idColumnType(d.Name())+" NOT NULL PRIMARY KEY", bun.Ident(schema.IDField))}
	for _, c := range desiredColumns(fmter, t) {
		def := fmter.FormatQuery("? "+c.Type, bun.Ident(c.Name))
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		defs = append(defs, def)
	}
	for i := range fks {
		defs = append(defs, fks[i].InlineSQL(fmter))
	}
	return fmter.FormatQuery("CREATE TABLE IF NOT EXISTS ? (", bun.Ident(t.TableName())) +
		strings.Join(defs, ", ") + ")"
}

// EnsureSchema creates every table that does not exist yet, in Order.
func EnsureSchema(ctx context.Context, db bun.IDB, tables []schema.Table, foreignKeys bool) error {
	if err := schema.Validate(tables); err != nil {
		return err
	}
	fkm := NewForeignKeyManager(tables, nil)
	if foreignKeys {
		if errs := fkm.ValidateConstraints(); len(errs) > 0 {
			return fmt.Errorf("foreign key constraint validation failed: %w", errs[0])
		}
	}
	for _, t := range schema.Sorted(tables) {
		var fks []ForeignKeyConstraint
		if foreignKeys {
			fks = fkm.GetConstraintsByTable(t.TableName())
		}
		if _, err := db.ExecContext(ctx, CreateTableSQL(db.Dialect(), t, fks)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.TableName(), err)
		}
	}
	return nil
}

// SyncColumns adds declared columns missing from existing tables and returns
// their qualified names. Added columns are NOT NULL only when they have a default.
func SyncColumns(ctx context.Context, db bun.IDB, tables []schema.Table) ([]string, error) {
	fmter := bunschema.NewFormatter(db.Dialect())
	var added []string
	for _, t := range schema.Sorted(tables) {
		existing, err := listExistingColumns(ctx, db, t.TableName())
		if err != nil {
			return added, fmt.Errorf("failed to list columns of %s: %w", t.TableName(), err)
		}
		if len(existing) == 0 {
			continue
		}
		for _, c := range desiredColumns(fmter, t) {
			if _, ok := existing[strings.ToLower(c.Name)]; ok {
				continue
			}
			if _, err := db.ExecContext(ctx, buildAddColumnSQL(fmter, t.TableName(), c)); err != nil {
				return added, fmt.Errorf("failed to add column %s.%s: %w", t.TableName(), c.Name, err)
			}
			added = append(added, t.TableName()+"."+c.Name)
		}
	}
	return added, nil
}

func buildAddColumnSQL(fmter bunschema.Formatter, table string, c columnSpec) string {
	sql := fmter.FormatQuery("ALTER TABLE ? ADD COLUMN ? "+c.Type, bun.Ident(table), bun.Ident(c.Name))
	if c.Default != "" {
		if c.NotNull {
			sql += " NOT NULL"
		}
		sql += " DEFAULT " + c.Default
	}
	return sql
}

// listExistingColumns returns the columns of a table keyed by lower-case name.
// A missing table yields an empty map.
func listExistingColumns(ctx context.Context, db bun.IDB, table string) (map[string]columnSpec, error) {
	cols := map[string]columnSpec{}
	d := db.Dialect().Name()
	var rows *sql.Rows
	var err error
	switch d {
	case dialect.PG:
		rows, err = db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`, table)
	case dialect.MySQL:
		rows, err = db.QueryContext(ctx, `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, table)
	default:
		rows, err = db.QueryContext(ctx, `PRAGMA table_info(?)`, table)
	}
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var name, typStr, nullable string
		var defaultNS sql.NullString
		switch d {
		case dialect.PG, dialect.MySQL:
			if err := rows.Scan(&name, &typStr, &nullable, &defaultNS); err != nil {
				return nil, err
			}
		default:
			var cid, notnull, pk int
			if err := rows.Scan(&cid, &name, &typStr, &notnull, &defaultNS, &pk); err != nil {
				return nil, err
			}
			nullable = map[bool]string{true: "NO", false: "YES"}[notnull == 1]
		}
		cols[strings.ToLower(name)] = columnSpec{
			Name:    name,
			Type:    typStr,
			NotNull: strings.EqualFold(nullable, "NO"),
			Default: defaultNS.String,
		}
	}
	return cols, rows.Err()
}
