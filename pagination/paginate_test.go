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
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/repository"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

var rowTable = schema.Table{
	Key: "row",
	Fields: []schema.Field{
		{Name: "rank", Type: schema.TypeNumber, Required: true},
	},
}

const rowCount = 10

// seed inserts ranks 1..rowCount in a scrambled order.
func seed(t *testing.T, repo repository.Repository) {
	t.Helper()
	for i := 0; i < rowCount; i++ {
		rank := (i*7)%rowCount + 1
		_, err := repo.Insert(context.Background(), types.Record{"id": fmt.Sprintf("r%02d", rank), "rank": rank})
		require.NoError(t, err)
	}
}

func memoryRepo(t *testing.T) repository.Repository {
	repo, err := repository.NewMemoryProvider().Repository(rowTable)
	require.NoError(t, err)
	seed(t, repo)
	return repo
}

func sqliteRepo(t *testing.T) repository.Repository {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.ExecContext(context.Background(), `CREATE TABLE "row" ("id" TEXT PRIMARY KEY, "rank" INTEGER NOT NULL)`)
	require.NoError(t, err)
	repo, err := repository.NewBunProvider(db).Repository(rowTable)
	require.NoError(t, err)
	seed(t, repo)
	return repo
}

func ranks(rows []types.Record) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		switch v := r["rank"].(type) {
		case int:
			out[i] = int64(v)
		case int64:
			out[i] = v
		}
	}
	return out
}

// expected is the window of ranks 1..rowCount.
func expected(limit, offset int) []int64 {
	out := []int64{}
	for r := offset + 1; r <= rowCount; r++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, int64(r))
	}
	return out
}

func TestPaginateMatchesWindow(t *testing.T) {
	sort := &types.SortBy{Field: "rank", Direction: types.Asc}
	stores := map[string]func(*testing.T) repository.Repository{
		"paged": memoryRepo,
		"raw":   sqliteRepo,
	}
	windows := []struct{ limit, offset int }{
		{2, 5}, {3, 4}, {3, 0}, {0, 3}, {0, 0}, {5, 3}, {4, 4}, {1, 9}, {3, 10}, {2, 20}, {0, 7}, {12, 0},
	}
	for name, open := range stores {
		repo := open(t)
		for _, w := range windows {
			t.Run(fmt.Sprintf("%s limit=%d offset=%d", name, w.limit, w.offset), func(t *testing.T) {
				rows, err := Paginate(context.Background(), repo, filter.Native{}, sort, w.limit, w.offset)
				require.NoError(t, err)
				assert.Equal(t, expected(w.limit, w.offset), ranks(rows))
			})
		}
	}
}

func TestPaginateWithFilter(t *testing.T) {
	sort := &types.SortBy{Field: "rank", Direction: types.Desc}
	where := filter.Native{"rank": filter.Ops{filter.KeyGt: 3}}
	for name, repo := range map[string]repository.Repository{"paged": memoryRepo(t), "raw": sqliteRepo(t)} {
		t.Run(name, func(t *testing.T) {
			rows, err := Paginate(context.Background(), repo, where, sort, 2, 1)
			require.NoError(t, err)
			assert.Equal(t, []int64{9, 8}, ranks(rows))
		})
	}
}

// countingRepo records the reads a pagination makes.
type countingRepo struct {
	repository.Repository
	features repository.Feature
	finds    []repository.FindOptions
}

func (c *countingRepo) HasFeature(f repository.Feature) bool { return c.features.Has(f) }

func (c *countingRepo) Find(ctx context.Context, opts repository.FindOptions) ([]types.Record, error) {
	c.finds = append(c.finds, opts)
	return c.Repository.Find(ctx, opts)
}

func TestPaginateNoOffsetSingleRead(t *testing.T) {
	repo := &countingRepo{Repository: memoryRepo(t)}
	rows, err := Paginate(context.Background(), repo, nil, nil, 3, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	require.Len(t, repo.finds, 1)
	assert.Equal(t, 3, repo.finds[0].Limit)
	assert.Nil(t, repo.finds[0].Page)
}

func TestPaginateFallbackReads(t *testing.T) {
	repo := &countingRepo{Repository: memoryRepo(t), features: repository.FeaturePagedRead}

	_, err := Paginate(context.Background(), repo, nil, nil, 5, 3)
	require.NoError(t, err)
	require.Len(t, repo.finds, 1)
	assert.Equal(t, 8, repo.finds[0].Limit)

	repo.finds = nil
	_, err = Paginate(context.Background(), repo, nil, nil, 2, 5)
	require.NoError(t, err)
	require.Len(t, repo.finds, 1)
	require.NotNil(t, repo.finds[0].Page)
	assert.Equal(t, 2, repo.finds[0].Page.GetPage())
	assert.Equal(t, 5, repo.finds[0].Page.GetPageSize())

	repo.finds = nil
	_, err = Paginate(context.Background(), repo, nil, nil, 0, 4)
	require.NoError(t, err)
	assert.Len(t, repo.finds, 2)
}

func TestPaginateUnsupported(t *testing.T) {
	repo := &countingRepo{Repository: memoryRepo(t)}
	_, err := Paginate(context.Background(), repo, nil, nil, 2, 5)
	assert.ErrorIs(t, err, ErrUnsupportedPagination)
	assert.Empty(t, repo.finds)
}

func TestBuildSelect(t *testing.T) {
	sort := &types.SortBy{Field: "createdAt", Direction: types.Desc}
	where := types.NewQueryFilter("? = ?", bun.Ident("userId"), "u1")

	cases := []struct {
		name          string
		d             bunschema.Dialect
		limit, offset int
		want          string
	}{
		{"sqlite", sqlitedialect.New(), 10, 20, `SELECT * FROM "session" WHERE "userId" = 'u1' ORDER BY "createdAt" DESC LIMIT 10 OFFSET 20`},
		{"sqlite unbounded", sqlitedialect.New(), 0, 20, `SELECT * FROM "session" WHERE "userId" = 'u1' ORDER BY "createdAt" DESC LIMIT -1 OFFSET 20`},
		{"mysql unbounded", mysqldialect.New(), 0, 5, "SELECT * FROM `session` WHERE `userId` = 'u1' ORDER BY `createdAt` DESC LIMIT 18446744073709551615 OFFSET 5"},
		{"pg unbounded", pgdialect.New(), 0, 5, `SELECT * FROM "session" WHERE "userId" = 'u1' ORDER BY "createdAt" DESC OFFSET 5`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query, args := BuildSelect(tc.d.Name(), "session", where, sort, tc.limit, tc.offset)
			got := bunschema.NewFormatter(tc.d).FormatQuery(query, args...)
			assert.Equal(t, tc.want, got)
		})
	}

	query, _ := BuildSelect(dialect.SQLite, "user", nil, nil, 0, 0)
	assert.Equal(t, "SELECT * FROM ? WHERE 1 = 1", query)
}
