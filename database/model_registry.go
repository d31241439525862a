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
	"sort"
	"sync"

	"github.com/tomoncle/authbridge/schema"
)

var defaultRegistry = newTableRegistry()

// TableModel is a schema table registered for automatic creation.
// Priority controls ordering when creating tables (lower values first).
type TableModel interface {
	Table() schema.Table
	Priority() int
}

// TableRegistry stores table models and exposes them in a deterministic order.
type TableRegistry interface {
	Register(model TableModel)
	Models() []TableModel
	Reset()
}

type tableRegistry struct {
	models []TableModel
	mutex  sync.RWMutex
}

func newTableRegistry() TableRegistry {
	return &tableRegistry{
		models: make([]TableModel, 0),
	}
}

// Register adds a model, replacing an earlier registration of the same model name.
func (r *tableRegistry) Register(model TableModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, m := range r.models {
		if m.Table().Name() == model.Table().Name() {
			r.models[i] = model
			return
		}
	}
	r.models = append(r.models, model)
}

func (r *tableRegistry) Models() []TableModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]TableModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

func (r *tableRegistry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = r.models[:0]
}

type tableAdapter struct {
	table    schema.Table
	priority int
}

// NewTableModel wraps a schema table and priority into a TableModel.
func NewTableModel(table schema.Table, priority int) TableModel {
	return &tableAdapter{table: table, priority: priority}
}

func (a *tableAdapter) Table() schema.Table { return a.table }

func (a *tableAdapter) Priority() int { return a.priority }

// RegisterTables adds tables to the default registry, using each table's Order as priority.
func RegisterTables(tables ...schema.Table) {
	for _, t := range tables {
		defaultRegistry.Register(NewTableModel(t, t.Order))
	}
}

// GetRegisteredModels returns all models registered in the default registry
// sorted by ascending priority.
func GetRegisteredModels() []TableModel {
	return defaultRegistry.Models()
}

// RegisteredTables returns the tables of the default registry in creation order.
func RegisteredTables() []schema.Table {
	models := GetRegisteredModels()
	tables := make([]schema.Table, len(models))
	for i, model := range models {
		tables[i] = model.Table()
	}
	return tables
}

// ResetRegistry clears the default registry.
func ResetRegistry() {
	defaultRegistry.Reset()
}
