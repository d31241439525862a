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
	"fmt"
	"sync"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// MemoryProvider keeps every table in process memory. Handles for the same
// table share their rows.
type MemoryProvider struct {
	mu     sync.Mutex
	tables map[string]*memoryRepository
}

// NewMemoryProvider returns an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{tables: make(map[string]*memoryRepository)}
}

func (p *MemoryProvider) Repository(table schema.Table) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := table.TableName()
	if repo, ok := p.tables[name]; ok {
		return repo, nil
	}
	repo := &memoryRepository{table: table}
	p.tables[name] = repo
	return repo, nil
}

type memoryRepository struct {
	mu    sync.RWMutex
	table schema.Table
	rows  []types.Record
}

func (r *memoryRepository) Name() string        { return r.table.Name() }
func (r *memoryRepository) Table() schema.Table { return r.table }

func (r *memoryRepository) HasFeature(f Feature) bool { return FeaturePagedRead.Has(f) }

func (r *memoryRepository) Insert(_ context.Context, record types.Record) (types.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := record[schema.IDField]
	if !ok || id == nil {
		return nil, fmt.Errorf("insert into %s: missing %q", r.table.TableName(), schema.IDField)
	}
	if indexOfID(r.rows, id) >= 0 {
		return nil, fmt.Errorf("insert into %s: %w: %v", r.table.TableName(), ErrConflict, id)
	}
	row := cloneRecord(record)
	r.rows = append(r.rows, row)
	return cloneRecord(row), nil
}

func (r *memoryRepository) FindOne(_ context.Context, where filter.Native) (types.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, err := selectRows(r.rows, FindOptions{Where: where, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memoryRepository) Find(_ context.Context, opts FindOptions) ([]types.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return selectRows(r.rows, opts)
}

func (r *memoryRepository) Count(_ context.Context, where filter.Native) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, err := matchRows(r.rows, where)
	return len(rows), err
}

func (r *memoryRepository) Update(_ context.Context, id any, values types.Record) (types.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOfID(r.rows, id)
	if i < 0 {
		return nil, &NotFoundError{Table: r.table.TableName(), ID: id}
	}
	r.rows[i] = applyValues(r.rows[i], values)
	return cloneRecord(r.rows[i]), nil
}

func (r *memoryRepository) UpdateMany(_ context.Context, where filter.Native, values types.Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i, row := range r.rows {
		ok, err := filter.Match(where, row)
		if err != nil {
			return n, err
		}
		if ok {
			r.rows[i] = applyValues(row, values)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) Delete(_ context.Context, id any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOfID(r.rows, id)
	if i < 0 {
		return &NotFoundError{Table: r.table.TableName(), ID: id}
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return nil
}

func (r *memoryRepository) DeleteMany(_ context.Context, where filter.Native) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]types.Record, 0, len(r.rows))
	n := 0
	for _, row := range r.rows {
		ok, err := filter.Match(where, row)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}
