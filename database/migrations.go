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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/authbridge/schema"
)

// MigrationManager creates the authentication tables and records which
// schema versions have been applied.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	tables []schema.Table
	config MigrateConfig
}

const migrationTable = "authbridge_migrations"

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:authbridge_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager constructs a MigrationManager for the given tables.
func NewMigrationManager(db *bun.DB, logger Logger, tables []schema.Table, cfg MigrateConfig) *MigrationManager {
	return &MigrationManager{
		db:     db,
		logger: logger,
		tables: tables,
		config: cfg,
	}
}

// RunMigrations creates the migration tracking table if needed, executes all
// pending migrations in ascending version order and then, when enabled, adds
// missing columns.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// silent migration
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := mm.getAllMigrations()
	if err != nil {
		return err
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	if mm.config.AllowColumnAdd {
		added, err := SyncColumns(ctx, mm.db, mm.tables)
		if err != nil {
			return fmt.Errorf("sync columns failed: %w", err)
		}
		if len(added) > 0 && mm.logger != nil {
			mm.logger.Info("Added missing columns", "columns", added)
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!")
	}
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// SchemaVersion identifies a set of tables; it changes whenever the schema does.
func SchemaVersion(tables []schema.Table) (string, error) {
	data, err := schema.Marshal(schema.Sorted(tables))
	if err != nil {
		return "", fmt.Errorf("failed to hash schema: %w", err)
	}
	sum := sha256.Sum256(data)
	return "001-" + hex.EncodeToString(sum[:])[:12], nil
}

func (mm *MigrationManager) getAllMigrations() ([]MigrationItem, error) {
	version, err := SchemaVersion(mm.tables)
	if err != nil {
		return nil, err
	}
	return []MigrationItem{
		{
			Version:     version,
			Name:        "create_auth_tables",
			Description: fmt.Sprintf("Create %d authentication tables", len(mm.tables)),
			Up:          mm.createTables,
		},
	}, nil
}

// IsApplied reports whether version has been recorded. A database that was
// never migrated has no migration table and reports false.
func (mm *MigrationManager) IsApplied(ctx context.Context, version string) (bool, error) {
	cols, err := listExistingColumns(ctx, mm.db, migrationTable)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, nil
	}
	return mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", version).
		Exists(ctx)
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.IsApplied(ctx, migration.Version)
	if err != nil {
		return err
	}
	if exists {
		if mm.logger != nil {
			mm.logger.Debug("Migration already applied", "version", migration.Version)
		}
		return nil
	}

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && mm.logger != nil {
				mm.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}(tx)

	if err := migration.Up(ctx, tx); err != nil {
		return err
	}

	migrationRecord := &Migration{
		Version:     migration.Version,
		Name:        migration.Name,
		AppliedAt:   time.Now(),
		Description: migration.Description,
	}

	_, err = tx.NewInsert().
		Model(migrationRecord).
		Exec(ctx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	if mm.logger != nil {
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

func (mm *MigrationManager) createTables(ctx context.Context, db bun.IDB) error {
	return EnsureSchema(ctx, db, mm.tables, mm.config.EnableForeignKey)
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
