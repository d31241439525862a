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
	"sort"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// The helpers below implement FindOptions over an in-process slice of rows.
// They back the memory, JSON-file and DynamoDB stores.

func cloneRecord(r types.Record) types.Record {
	if r == nil {
		return nil
	}
	out := make(types.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneRecords(rows []types.Record) []types.Record {
	out := make([]types.Record, len(rows))
	for i, r := range rows {
		out[i] = cloneRecord(r)
	}
	return out
}

func matchRows(rows []types.Record, where filter.Native) ([]types.Record, error) {
	if where.IsEmpty() {
		return rows, nil
	}
	out := make([]types.Record, 0, len(rows))
	for _, r := range rows {
		ok, err := filter.Match(where, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func sortRows(rows []types.Record, by *types.SortBy) []types.Record {
	if by == nil || by.Field == "" {
		return rows
	}
	sorted := make([]types.Record, len(rows))
	copy(sorted, rows)
	desc := by.Direction.IsDesc()
	sort.SliceStable(sorted, func(i, j int) bool {
		c := filter.SortCompare(sorted[i][by.Field], sorted[j][by.Field])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

func windowRows(rows []types.Record, opts FindOptions) []types.Record {
	if opts.Page != nil {
		start, end := opts.Page.Window(len(rows))
		return rows[start:end]
	}
	if opts.Limit > 0 && opts.Limit < len(rows) {
		return rows[:opts.Limit]
	}
	return rows
}

// selectRows applies filter, order and window, returning copies.
func selectRows(rows []types.Record, opts FindOptions) ([]types.Record, error) {
	matched, err := matchRows(rows, opts.Where)
	if err != nil {
		return nil, err
	}
	return cloneRecords(windowRows(sortRows(matched, opts.OrderBy), opts)), nil
}

func indexOfID(rows []types.Record, id any) int {
	for i, r := range rows {
		if filter.Equal(r[schema.IDField], id) {
			return i
		}
	}
	return -1
}

// applyValues returns row with values merged in. The id is never rewritten.
func applyValues(row, values types.Record) types.Record {
	out := cloneRecord(row)
	for k, v := range values {
		if k == schema.IDField {
			continue
		}
		out[k] = v
	}
	return out
}
