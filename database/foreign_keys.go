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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/schema"
)

var validActions = []string{"CASCADE", "RESTRICT", "SET NULL", "SET DEFAULT", "NO ACTION"}

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, SET DEFAULT, NO ACTION
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// InlineSQL returns the constraint clause used inside CREATE TABLE.
func (fk *ForeignKeyConstraint) InlineSQL(fmter bunschema.Formatter) string {
	sql := fmter.FormatQuery("CONSTRAINT ? FOREIGN KEY (?) REFERENCES ? (?)",
		bun.Ident(fk.GenerateConstraintName()), bun.Ident(fk.Column),
		bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn))
	if fk.OnDelete != "" {
		sql += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	return sql
}

// ForeignKeyManager derives and validates foreign keys from schema references.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager with the constraints the tables declare.
func NewForeignKeyManager(tables []schema.Table, logger Logger) *ForeignKeyManager {
	return &ForeignKeyManager{
		constraints: foreignKeysOf(tables),
		logger:      logger,
	}
}

func foreignKeysOf(tables []schema.Table) []ForeignKeyConstraint {
	physical := make(map[string]string, len(tables))
	for _, t := range tables {
		physical[t.Name()] = t.TableName()
	}
	var result []ForeignKeyConstraint
	for _, t := range tables {
		for _, f := range t.References() {
			ref := f.References
			target, ok := physical[ref.Model]
			if !ok {
				target = ref.Model
			}
			column := ref.Field
			if column == "" {
				column = schema.IDField
			}
			result = append(result, ForeignKeyConstraint{
				Table:           t.TableName(),
				Column:          f.Name,
				ReferenceTable:  target,
				ReferenceColumn: column,
				OnDelete:        strings.ToUpper(ref.OnDelete),
			})
		}
	}
	return result
}

// GetConstraintsByTable returns the constraints defined for a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

// ListAllConstraints returns all derived constraints.
func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints checks the derived constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errors []error

	for _, constraint := range fkm.constraints {
		if constraint.Table == "" {
			errors = append(errors, fmt.Errorf("table name cannot be empty"))
		}
		if constraint.Column == "" {
			errors = append(errors, fmt.Errorf("column name cannot be empty: %s", constraint.Table))
		}
		if constraint.ReferenceTable == "" {
			errors = append(errors, fmt.Errorf("reference table name cannot be empty: %s.%s", constraint.Table, constraint.Column))
		}
		if constraint.OnDelete != "" && !validAction(constraint.OnDelete) {
			errors = append(errors, fmt.Errorf("invalid delete policy: %s, constraint: %s", constraint.OnDelete, constraint.GenerateConstraintName()))
		}
	}
	if len(errors) > 0 && fkm.logger != nil {
		fkm.logger.Warn("Invalid foreign key constraints", "count", len(errors))
	}
	return errors
}

func validAction(action string) bool {
	for _, a := range validActions {
		if strings.EqualFold(action, a) {
			return true
		}
	}
	return false
}
