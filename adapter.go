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

package authbridge

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomoncle/authbridge/codegen"
	"github.com/tomoncle/authbridge/database"
	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/pagination"
	"github.com/tomoncle/authbridge/repository"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
	"github.com/tomoncle/authbridge/utils"
)

const (
	AdapterID          = "bun"
	DefaultAdapterName = "Bun Auth Adapter"
	// DefaultSchemaPath is where CreateSchema places the entity source by default.
	DefaultSchemaPath = "./auth_schema.go"

	opCreate     = "create"
	opFindOne    = "findOne"
	opFindMany   = "findMany"
	opCount      = "count"
	opUpdate     = "update"
	opUpdateMany = "updateMany"
	opDelete     = "delete"
	opDeleteMany = "deleteMany"
)

// Options configures an Adapter.
type Options struct {
	// Entities declares the models the adapter serves. Nil means the
	// built-in user, session, account and verification tables.
	Entities []schema.Table
	// DebugLogs logs every operation at debug level.
	DebugLogs bool
	// Logger receives debug logs; database.GetLogger() when nil.
	Logger database.Logger
	// GenerateID fills the id of created records that have none; uuid.NewString when nil.
	GenerateID func() string
	// AdapterName is reported by Config.
	AdapterName string
	// Codegen configures CreateSchema.
	Codegen codegen.Options
}

// AdapterConfig is the capability declaration handed to the authentication framework.
type AdapterConfig struct {
	AdapterID          string `json:"adapterId"`
	AdapterName        string `json:"adapterName"`
	SupportsNumericIDs bool   `json:"supportsNumericIds"`
	SupportsJSON       bool   `json:"supportsJSON"`
	DebugLogs          bool   `json:"debugLogs"`
}

// FindManyParams are the arguments of FindMany. Limit and Offset <= 0 are unset.
type FindManyParams struct {
	Model  string
	Where  []types.Where
	SortBy *types.SortBy
	Limit  int
	Offset int
}

// SchemaResult is the generated entity source and where to write it.
type SchemaResult struct {
	Code      string `json:"code"`
	Path      string `json:"path"`
	Overwrite bool   `json:"overwrite"`
}

// Adapter serves the authentication framework's storage operations on top of
// a DataProvider.
type Adapter struct {
	resolver *Resolver
	opts     Options
	logger   database.Logger
}

// New returns an adapter over provider. Repositories are opened on first use.
func New(provider repository.DataProvider, opts Options) *Adapter {
	if opts.Entities == nil {
		opts.Entities = schema.AuthTables()
	}
	if opts.GenerateID == nil {
		opts.GenerateID = uuid.NewString
	}
	if opts.AdapterName == "" {
		opts.AdapterName = DefaultAdapterName
	}
	logger := opts.Logger
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Adapter{
		resolver: NewResolver(provider, opts.Entities),
		opts:     opts,
		logger:   logger,
	}
}

// Config returns the adapter's declared capabilities.
func (a *Adapter) Config() AdapterConfig {
	return AdapterConfig{
		AdapterID:          AdapterID,
		AdapterName:        a.opts.AdapterName,
		SupportsNumericIDs: true,
		SupportsJSON:       true,
		DebugLogs:          a.opts.DebugLogs,
	}
}

// Resolver returns the adapter's model resolver.
func (a *Adapter) Resolver() *Resolver { return a.resolver }

func (a *Adapter) debug(op, model string, start time.Time, fields ...interface{}) {
	if !a.opts.DebugLogs {
		return
	}
	kv := append([]interface{}{"op", op, "model", model, "elapsed", utils.Elapsed(start)}, fields...)
	a.logger.Debug("adapter "+op, kv...)
}

// Create inserts data and returns the stored record.
func (a *Adapter) Create(ctx context.Context, model string, data types.Record) (types.Record, error) {
	start := time.Now()
	repo, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	record := make(types.Record, len(data)+1)
	for k, v := range data {
		record[k] = v
	}
	if id, ok := record[schema.IDField]; !ok || id == nil || id == "" {
		record[schema.IDField] = a.opts.GenerateID()
	}
	stored, err := repo.Insert(ctx, record)
	if err != nil {
		return nil, err
	}
	a.debug(opCreate, model, start, "id", stored[schema.IDField])
	return stored, nil
}

// FindOne returns the first record matching where, or nil when none does.
func (a *Adapter) FindOne(ctx context.Context, model string, where []types.Where) (types.Record, error) {
	start := time.Now()
	repo, native, err := a.prepare(model, where)
	if err != nil {
		return nil, err
	}
	row, err := repo.FindOne(ctx, native)
	if err != nil {
		return nil, err
	}
	a.debug(opFindOne, model, start, "where", native, "found", row != nil)
	return row, nil
}

// FindMany returns the window of matching records described by p.
func (a *Adapter) FindMany(ctx context.Context, p FindManyParams) ([]types.Record, error) {
	start := time.Now()
	repo, native, err := a.prepare(p.Model, p.Where)
	if err != nil {
		return nil, err
	}
	rows, err := pagination.Paginate(ctx, repo, native, p.SortBy, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	a.debug(opFindMany, p.Model, start, "where", native, "limit", p.Limit, "offset", p.Offset, "rows", len(rows))
	return rows, nil
}

// Count returns the number of records matching where.
func (a *Adapter) Count(ctx context.Context, model string, where []types.Where) (int, error) {
	start := time.Now()
	repo, native, err := a.prepare(model, where)
	if err != nil {
		return 0, err
	}
	n, err := repo.Count(ctx, native)
	if err != nil {
		return 0, err
	}
	a.debug(opCount, model, start, "where", native, "count", n)
	return n, nil
}

// Update applies values to the single record where identifies and returns it.
// where must hold exactly one clause; a clause on another field than the id
// is first resolved to an id.
func (a *Adapter) Update(ctx context.Context, model string, where []types.Where, values types.Record) (types.Record, error) {
	start := time.Now()
	if len(where) != 1 {
		return nil, &AmbiguousTargetError{Op: opUpdate, Model: model, Where: where}
	}
	repo, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	id, found, err := a.targetID(ctx, repo, where[0])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &TargetNotFoundError{Op: opUpdate, Model: model, Where: where[0]}
	}
	row, err := repo.Update(ctx, id, values)
	if err != nil {
		if IsNotFound(err) {
			return nil, &TargetNotFoundError{Op: opUpdate, Model: model, Where: where[0], Err: err}
		}
		return nil, err
	}
	a.debug(opUpdate, model, start, "id", id, "fields", len(values))
	return row, nil
}

// UpdateMany applies values to every record matching where and returns how many changed.
func (a *Adapter) UpdateMany(ctx context.Context, model string, where []types.Where, values types.Record) (int, error) {
	start := time.Now()
	repo, native, err := a.prepare(model, where)
	if err != nil {
		return 0, err
	}
	n, err := repo.UpdateMany(ctx, native, values)
	if err != nil {
		return 0, err
	}
	a.debug(opUpdateMany, model, start, "where", native, "updated", n)
	return n, nil
}

// Delete removes the single record where identifies. A non-id clause that
// matches no row fails with TargetNotFoundError; a store miss on the id
// itself is treated as already deleted.
func (a *Adapter) Delete(ctx context.Context, model string, where []types.Where) error {
	start := time.Now()
	if len(where) != 1 {
		return &AmbiguousTargetError{Op: opDelete, Model: model, Where: where}
	}
	repo, err := a.resolver.Resolve(model)
	if err != nil {
		return err
	}
	id, found, err := a.targetID(ctx, repo, where[0])
	if err != nil {
		return err
	}
	if !found {
		return &TargetNotFoundError{Op: opDelete, Model: model, Where: where[0]}
	}
	if err := repo.Delete(ctx, id); err != nil {
		if !IsNotFound(err) {
			return err
		}
		a.debug(opDelete, model, start, "id", id, "deleted", false)
		return nil
	}
	a.debug(opDelete, model, start, "id", id, "deleted", true)
	return nil
}

// DeleteMany removes every record matching where and returns how many were removed.
func (a *Adapter) DeleteMany(ctx context.Context, model string, where []types.Where) (int, error) {
	start := time.Now()
	repo, native, err := a.prepare(model, where)
	if err != nil {
		return 0, err
	}
	n, err := repo.DeleteMany(ctx, native)
	if err != nil {
		return 0, err
	}
	a.debug(opDeleteMany, model, start, "where", native, "deleted", n)
	return n, nil
}

// CreateSchema generates bun entity source for tables. The result always
// replaces the whole file.
func (a *Adapter) CreateSchema(tables []schema.Table, file string) (*SchemaResult, error) {
	if tables == nil {
		tables = a.opts.Entities
	}
	code, err := codegen.Emit(tables, a.opts.Codegen)
	if err != nil {
		return nil, err
	}
	if file == "" {
		file = DefaultSchemaPath
	}
	return &SchemaResult{Code: code, Path: file, Overwrite: true}, nil
}

func (a *Adapter) prepare(model string, where []types.Where) (repository.Repository, filter.Native, error) {
	repo, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, nil, err
	}
	native, err := filter.Translate(where)
	if err != nil {
		return nil, nil, err
	}
	return repo, native, nil
}

// targetID returns the id the clause designates, looking the row up unless
// the clause is an equality on the id field.
func (a *Adapter) targetID(ctx context.Context, repo repository.Repository, clause types.Where) (any, bool, error) {
	if clause.Field == schema.IDField && clause.Op() == types.OpEq {
		return clause.Value, true, nil
	}
	native, err := filter.Translate([]types.Where{clause})
	if err != nil {
		return nil, false, err
	}
	row, err := repo.FindOne(ctx, native)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	return row[schema.IDField], true, nil
}

// IsNotFound reports whether a store error means the record does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var status interface{ StatusCode() int }
	if errors.As(err, &status) && status.StatusCode() == http.StatusNotFound {
		return true
	}
	if is, kind := database.IsSqlError(err); is {
		return kind == database.NoRowsErr
	}
	return strings.Contains(err.Error(), "not found")
}
