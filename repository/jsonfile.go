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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// JSONFileProvider stores each table as a JSON array in <dir>/<table>.json.
// Every call reads the file and every mutation rewrites it atomically, so the
// files can be inspected or edited between calls.
type JSONFileProvider struct {
	dir string

	mu    sync.Mutex
	repos map[string]*jsonFileRepository
}

// NewJSONFileProvider creates dir if needed and returns a provider rooted there.
func NewJSONFileProvider(dir string) (*JSONFileProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}
	return &JSONFileProvider{dir: dir, repos: make(map[string]*jsonFileRepository)}, nil
}

func (p *JSONFileProvider) Repository(table schema.Table) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := table.TableName()
	if repo, ok := p.repos[name]; ok {
		return repo, nil
	}
	repo := &jsonFileRepository{
		table: table,
		path:  filepath.Join(p.dir, name+".json"),
	}
	p.repos[name] = repo
	return repo, nil
}

type jsonFileRepository struct {
	mu    sync.Mutex
	table schema.Table
	path  string
}

func (r *jsonFileRepository) Name() string        { return r.table.Name() }
func (r *jsonFileRepository) Table() schema.Table { return r.table }

func (r *jsonFileRepository) HasFeature(f Feature) bool { return FeaturePagedRead.Has(f) }

func (r *jsonFileRepository) load() ([]types.Record, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	rows := make([]types.Record, len(raw))
	for i, row := range raw {
		rows[i] = r.table.Coerce(row)
	}
	return rows, nil
}

func (r *jsonFileRepository) save(rows []types.Record) error {
	if rows == nil {
		rows = []types.Record{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.table.TableName(), err)
	}
	return writeFileAtomic(r.path, data, 0o644)
}

func (r *jsonFileRepository) Insert(_ context.Context, record types.Record) (types.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := record[schema.IDField]
	if !ok || id == nil {
		return nil, fmt.Errorf("insert into %s: missing %q", r.table.TableName(), schema.IDField)
	}
	rows, err := r.load()
	if err != nil {
		return nil, err
	}
	if indexOfID(rows, id) >= 0 {
		return nil, fmt.Errorf("insert into %s: %w: %v", r.table.TableName(), ErrConflict, id)
	}
	row := cloneRecord(record)
	if err := r.save(append(rows, row)); err != nil {
		return nil, err
	}
	return cloneRecord(row), nil
}

func (r *jsonFileRepository) FindOne(_ context.Context, where filter.Native) (types.Record, error) {
	found, err := r.find(FindOptions{Where: where, Limit: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (r *jsonFileRepository) Find(_ context.Context, opts FindOptions) ([]types.Record, error) {
	return r.find(opts)
}

func (r *jsonFileRepository) find(opts FindOptions) ([]types.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return nil, err
	}
	return selectRows(rows, opts)
}

func (r *jsonFileRepository) Count(_ context.Context, where filter.Native) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return 0, err
	}
	matched, err := matchRows(rows, where)
	return len(matched), err
}

func (r *jsonFileRepository) Update(_ context.Context, id any, values types.Record) (types.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return nil, err
	}
	i := indexOfID(rows, id)
	if i < 0 {
		return nil, &NotFoundError{Table: r.table.TableName(), ID: id}
	}
	rows[i] = applyValues(rows[i], values)
	if err := r.save(rows); err != nil {
		return nil, err
	}
	return cloneRecord(rows[i]), nil
}

func (r *jsonFileRepository) UpdateMany(_ context.Context, where filter.Native, values types.Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for i, row := range rows {
		ok, err := filter.Match(where, row)
		if err != nil {
			return 0, err
		}
		if ok {
			rows[i] = applyValues(row, values)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, r.save(rows)
}

func (r *jsonFileRepository) Delete(_ context.Context, id any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return err
	}
	i := indexOfID(rows, id)
	if i < 0 {
		return &NotFoundError{Table: r.table.TableName(), ID: id}
	}
	return r.save(append(rows[:i], rows[i+1:]...))
}

func (r *jsonFileRepository) DeleteMany(_ context.Context, where filter.Native) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, err := r.load()
	if err != nil {
		return 0, err
	}
	kept := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		ok, err := filter.Match(where, row)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, row)
		}
	}
	n := len(rows) - len(kept)
	if n == 0 {
		return 0, nil
	}
	return n, r.save(kept)
}
