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

package pagination

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/repository"
	"github.com/tomoncle/authbridge/types"
)

// ErrUnsupportedPagination is returned when an offset is requested from a
// store that supports neither raw SQL nor page reads.
var ErrUnsupportedPagination = errors.New("pagination: store supports neither raw SQL nor page reads")

// Paginate returns up to limit rows matching where, ordered by sort, after
// skipping offset rows. limit <= 0 means no limit and offset <= 0 means no
// offset.
func Paginate(ctx context.Context, repo repository.Repository, where filter.Native, sort *types.SortBy, limit, offset int) ([]types.Record, error) {
	if limit < 0 {
		limit = 0
	}
	if offset <= 0 {
		return repo.Find(ctx, repository.FindOptions{Where: where, OrderBy: sort, Limit: limit})
	}

	if raw, ok := repo.(repository.RawQuerier); ok && repo.HasFeature(repository.FeatureRawSQL) {
		return rawWindow(ctx, raw, where, sort, limit, offset)
	}
	if !repo.HasFeature(repository.FeaturePagedRead) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPagination, repo.Name())
	}
	if limit == 0 {
		return skipPages(ctx, repo, where, sort, offset)
	}
	if limit > offset {
		rows, err := repo.Find(ctx, repository.FindOptions{Where: where, OrderBy: sort, Limit: limit + offset})
		if err != nil {
			return nil, err
		}
		if len(rows) <= offset {
			return []types.Record{}, nil
		}
		return rows[offset:], nil
	}
	// limit <= offset: page 1 (0-based) of size offset starts exactly at offset.
	rows, err := repo.Find(ctx, repository.FindOptions{
		Where:   where,
		OrderBy: sort,
		Page:    types.PageIndexRequest(1, offset),
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// skipPages reads pages of size offset, starting at page index 1, until a
// short page, returning every row after the first offset rows.
func skipPages(ctx context.Context, repo repository.Repository, where filter.Native, sort *types.SortBy, offset int) ([]types.Record, error) {
	var out []types.Record
	for index := 1; ; index++ {
		rows, err := repo.Find(ctx, repository.FindOptions{
			Where:   where,
			OrderBy: sort,
			Page:    types.PageIndexRequest(index, offset),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) < offset {
			break
		}
	}
	if out == nil {
		out = []types.Record{}
	}
	return out, nil
}

func rawWindow(ctx context.Context, raw repository.RawQuerier, where filter.Native, sort *types.SortBy, limit, offset int) ([]types.Record, error) {
	q, err := raw.FilterToSQL(where)
	if err != nil {
		return nil, err
	}
	query, args := BuildSelect(raw.Dialect().Name(), raw.TableName(), q, sort, limit, offset)
	return raw.QueryRaw(ctx, query, args...)
}

// BuildSelect assembles SELECT * FROM table WHERE filter [ORDER BY] [LIMIT]
// [OFFSET] with bun placeholders. Dialects that need a LIMIT before OFFSET get
// their unbounded limit when limit <= 0.
func BuildSelect(d dialect.Name, table string, where *types.QueryFilter, sort *types.SortBy, limit, offset int) (string, []interface{}) {
	if where == nil {
		where = types.MatchAll()
	}
	var b strings.Builder
	args := make([]interface{}, 0, len(where.Args)+2)

	b.WriteString("SELECT * FROM ? WHERE ")
	args = append(args, bun.Ident(table))
	b.WriteString(where.Schema)
	args = append(args, where.Args...)

	if sort != nil && sort.Field != "" {
		b.WriteString(" ORDER BY ? ")
		b.WriteString(sort.Direction.SQL())
		args = append(args, bun.Ident(sort.Field))
	}
	switch {
	case limit > 0:
		b.WriteString(" LIMIT " + strconv.Itoa(limit))
	case offset > 0:
		if unbounded := unboundedLimit(d); unbounded != "" {
			b.WriteString(" LIMIT " + unbounded)
		}
	}
	if offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(offset))
	}
	return b.String(), args
}

func unboundedLimit(d dialect.Name) string {
	switch d {
	case dialect.SQLite:
		return "-1"
	case dialect.MySQL:
		return "18446744073709551615"
	}
	return ""
}
