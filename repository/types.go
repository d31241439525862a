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

package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// Feature is a capability bit a store may advertise.
type Feature uint

const (
	// FeatureRawSQL marks stores that implement RawQuerier.
	FeatureRawSQL Feature = 1 << iota
	// FeaturePagedRead marks stores that honour FindOptions.Page.
	FeaturePagedRead
)

// Has reports whether every bit of other is set in f.
func (f Feature) Has(other Feature) bool { return f&other == other }

var (
	// ErrNotFound is matched by every store's not-found error.
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict is returned when inserting a record whose id already exists.
	ErrConflict = errors.New("repository: record already exists")
)

// NotFoundError names the table and id that could not be found.
type NotFoundError struct {
	Table string
	ID    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository: %s %v not found", e.Table, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StatusCode mirrors the HTTP status a remote store would report.
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// FindOptions describes a read. Limit <= 0 means no limit. When Page is set the
// store returns that page (its size and 1-based number) and ignores Limit;
// stores without FeaturePagedRead reject it.
type FindOptions struct {
	Where   filter.Native
	OrderBy *types.SortBy
	Limit   int
	Page    *types.PageRequest
}

// Repository is a handle to one model's rows.
type Repository interface {
	// Name returns the model key the handle serves.
	Name() string
	Table() schema.Table
	HasFeature(feature Feature) bool

	// Insert stores record and returns it as stored.
	Insert(ctx context.Context, record types.Record) (types.Record, error)
	// FindOne returns the first matching row, or nil when nothing matches.
	FindOne(ctx context.Context, where filter.Native) (types.Record, error)
	Find(ctx context.Context, opts FindOptions) ([]types.Record, error)
	Count(ctx context.Context, where filter.Native) (int, error)
	// Update applies values to the row with the given id and returns the row
	// after the update, or a *NotFoundError.
	Update(ctx context.Context, id any, values types.Record) (types.Record, error)
	UpdateMany(ctx context.Context, where filter.Native, values types.Record) (int, error)
	// Delete removes the row with the given id, or returns a *NotFoundError.
	Delete(ctx context.Context, id any) error
	DeleteMany(ctx context.Context, where filter.Native) (int, error)
}

// RawQuerier is implemented by SQL-backed repositories that can run a
// hand-built SELECT against their table.
type RawQuerier interface {
	TableName() string
	Dialect() bunschema.Dialect
	FilterToSQL(where filter.Native) (*types.QueryFilter, error)
	QueryRaw(ctx context.Context, query string, args ...interface{}) ([]types.Record, error)
}

// DataProvider hands out repository handles for declared tables.
type DataProvider interface {
	Repository(table schema.Table) (Repository, error)
}
