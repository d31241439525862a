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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

var itemTable = schema.Table{
	Key: "item",
	Fields: []schema.Field{
		{Name: "name", Type: schema.TypeString, Required: true},
		{Name: "rank", Type: schema.TypeNumber, Required: true},
		{Name: "active", Type: schema.TypeBoolean, Required: true},
		{Name: "tags", Type: schema.TypeStringArray},
		{Name: "createdAt", Type: schema.TypeDate, Required: true},
	},
}

const itemDDL = `CREATE TABLE "item" (
	"id" TEXT PRIMARY KEY,
	"name" TEXT NOT NULL,
	"rank" INTEGER NOT NULL,
	"active" BOOLEAN NOT NULL,
	"tags" TEXT,
	"createdAt" TIMESTAMP NOT NULL
)`

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedItems(t *testing.T, repo Repository) {
	t.Helper()
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	ranks := []int{5, 3, 4, 1, 2}
	for i, name := range names {
		_, err := repo.Insert(context.Background(), types.Record{
			"id":        fmt.Sprintf("i%d", i+1),
			"name":      name,
			"rank":      ranks[i],
			"active":    i%2 == 0,
			"tags":      []string{name[:1], "all"},
			"createdAt": baseTime.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func ids(rows []types.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprint(r["id"])
	}
	return out
}

func mustTranslate(t *testing.T, clauses ...types.Where) filter.Native {
	t.Helper()
	native, err := filter.Translate(clauses)
	require.NoError(t, err)
	return native
}

func byRank(dir types.Direction) *types.SortBy {
	return &types.SortBy{Field: "rank", Direction: dir}
}

// testRepositoryContract exercises a store through the Repository interface.
func testRepositoryContract(t *testing.T, provider DataProvider) {
	ctx := context.Background()
	repo, err := provider.Repository(itemTable)
	require.NoError(t, err)
	assert.Equal(t, "item", repo.Name())
	assert.True(t, repo.HasFeature(FeaturePagedRead))

	seedItems(t, repo)

	t.Run("insert duplicate", func(t *testing.T) {
		_, err := repo.Insert(ctx, types.Record{"id": "i1", "name": "x", "rank": 0, "active": true, "createdAt": baseTime})
		assert.Error(t, err)
	})

	t.Run("insert requires id", func(t *testing.T) {
		_, err := repo.Insert(ctx, types.Record{"name": "x"})
		assert.Error(t, err)
	})

	t.Run("find one", func(t *testing.T) {
		row, err := repo.FindOne(ctx, mustTranslate(t, types.Eq("name", "beta")))
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "i2", row["id"])
		assert.EqualValues(t, 3, row["rank"])
		assert.Equal(t, false, row["active"])
		assert.Equal(t, []string{"b", "all"}, row["tags"])
		created, ok := row["createdAt"].(time.Time)
		require.True(t, ok, "createdAt is %T", row["createdAt"])
		assert.True(t, created.Equal(baseTime.Add(time.Hour)))

		row, err = repo.FindOne(ctx, mustTranslate(t, types.Eq("name", "nobody")))
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.Count(ctx, filter.Native{})
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		n, err = repo.Count(ctx, mustTranslate(t, types.Eq("active", true)))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("order and limit", func(t *testing.T) {
		rows, err := repo.Find(ctx, FindOptions{OrderBy: byRank(types.Asc)})
		require.NoError(t, err)
		assert.Equal(t, []string{"i4", "i5", "i2", "i3", "i1"}, ids(rows))

		rows, err = repo.Find(ctx, FindOptions{OrderBy: byRank(types.Desc), Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"i1", "i3"}, ids(rows))
	})

	t.Run("page", func(t *testing.T) {
		rows, err := repo.Find(ctx, FindOptions{OrderBy: byRank(types.Asc), Page: types.PageIndexRequest(1, 2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"i2", "i3"}, ids(rows))

		rows, err = repo.Find(ctx, FindOptions{OrderBy: byRank(types.Asc), Page: types.PageIndexRequest(2, 2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"i1"}, ids(rows))
	})

	t.Run("range and or", func(t *testing.T) {
		rows, err := repo.Find(ctx, FindOptions{
			Where: mustTranslate(t,
				types.Where{Field: "rank", Operator: types.OpGt, Value: 2},
				types.Where{Field: "rank", Operator: types.OpLt, Value: 5},
			),
			OrderBy: byRank(types.Asc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"i2", "i3"}, ids(rows))

		rows, err = repo.Find(ctx, FindOptions{
			Where: mustTranslate(t,
				types.Where{Field: "name", Operator: types.OpStartsWith, Value: "g", Connector: types.ConnectorOr},
				types.Where{Field: "rank", Value: 1, Connector: types.ConnectorOr},
			),
			OrderBy: byRank(types.Asc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"i4", "i3"}, ids(rows))

		rows, err = repo.Find(ctx, FindOptions{
			Where:   mustTranslate(t, types.Where{Field: "id", Operator: types.OpIn, Value: []string{"i1", "i5"}}),
			OrderBy: byRank(types.Asc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"i5", "i1"}, ids(rows))

		rows, err = repo.Find(ctx, FindOptions{
			Where: mustTranslate(t, types.Where{Field: "createdAt", Operator: types.OpGte, Value: baseTime.Add(3 * time.Hour)}),
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"i4", "i5"}, ids(rows))
	})

	t.Run("string operators ignore case", func(t *testing.T) {
		for _, tc := range []struct {
			clause types.Where
			want   []string
		}{
			{types.Where{Field: "name", Operator: types.OpContains, Value: "LT"}, []string{"i4"}},
			{types.Where{Field: "name", Operator: types.OpStartsWith, Value: "Ga"}, []string{"i3"}},
			{types.Where{Field: "name", Operator: types.OpEndsWith, Value: "MMA"}, []string{"i3"}},
			{types.Where{Field: "name", Operator: types.OpContains, Value: "A"}, []string{"i1", "i2", "i3", "i4"}},
		} {
			rows, err := repo.Find(ctx, FindOptions{Where: mustTranslate(t, tc.clause)})
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, ids(rows), "%s %s %v", tc.clause.Field, tc.clause.Operator, tc.clause.Value)

			n, err := repo.Count(ctx, mustTranslate(t, tc.clause))
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), n)
		}
	})

	t.Run("update", func(t *testing.T) {
		row, err := repo.Update(ctx, "i2", types.Record{"name": "bravo", "id": "ignored"})
		require.NoError(t, err)
		assert.Equal(t, "i2", row["id"])
		assert.Equal(t, "bravo", row["name"])
		assert.EqualValues(t, 3, row["rank"])

		_, err = repo.Update(ctx, "missing", types.Record{"name": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update many", func(t *testing.T) {
		n, err := repo.UpdateMany(ctx, mustTranslate(t, types.Eq("active", false)), types.Record{"rank": 10})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = repo.Count(ctx, mustTranslate(t, types.Eq("rank", 10)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "i1"))
		err := repo.Delete(ctx, "i1")
		assert.ErrorIs(t, err, ErrNotFound)
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "i1", nf.ID)
	})

	t.Run("delete many", func(t *testing.T) {
		n, err := repo.DeleteMany(ctx, mustTranslate(t, types.Eq("rank", 10)))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = repo.Count(ctx, filter.Native{})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepositoryContract(t, NewMemoryProvider())
}

func TestMemoryProviderSharesRows(t *testing.T) {
	p := NewMemoryProvider()
	a, err := p.Repository(itemTable)
	require.NoError(t, err)
	b, err := p.Repository(itemTable)
	require.NoError(t, err)
	_, err = a.Insert(context.Background(), types.Record{"id": "x"})
	require.NoError(t, err)
	n, err := b.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo, err := NewMemoryProvider().Repository(itemTable)
	require.NoError(t, err)
	row, err := repo.Insert(context.Background(), types.Record{"id": "x", "name": "a"})
	require.NoError(t, err)
	row["name"] = "changed"
	got, err := repo.FindOne(context.Background(), filter.Native{"id": "x"})
	require.NoError(t, err)
	assert.Equal(t, "a", got["name"])
}

func TestJSONFileRepository(t *testing.T) {
	dir := t.TempDir()
	p, err := NewJSONFileProvider(dir)
	require.NoError(t, err)
	testRepositoryContract(t, p)

	data, err := os.ReadFile(filepath.Join(dir, "item.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "i2"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), tempFilePrefix), "leftover temp file %s", e.Name())
	}
}

func TestJSONFileRepositoryReload(t *testing.T) {
	dir := t.TempDir()
	p, err := NewJSONFileProvider(dir)
	require.NoError(t, err)
	repo, err := p.Repository(itemTable)
	require.NoError(t, err)
	seedItems(t, repo)

	fresh, err := NewJSONFileProvider(dir)
	require.NoError(t, err)
	repo, err = fresh.Repository(itemTable)
	require.NoError(t, err)
	rows, err := repo.Find(context.Background(), FindOptions{OrderBy: byRank(types.Asc), Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "i4", rows[0]["id"])
	assert.Equal(t, int64(1), rows[0]["rank"])
	assert.Equal(t, false, rows[0]["active"])
}

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBunRepository(t *testing.T) {
	db := openSQLite(t)
	_, err := db.ExecContext(context.Background(), itemDDL)
	require.NoError(t, err)
	p := NewBunProvider(db)
	testRepositoryContract(t, p)

	repo, err := p.Repository(itemTable)
	require.NoError(t, err)
	assert.True(t, repo.HasFeature(FeatureRawSQL))
	raw, ok := repo.(RawQuerier)
	require.True(t, ok)
	assert.Equal(t, "item", raw.TableName())
	assert.Equal(t, "sqlite", raw.Dialect().Name().String())

	q, err := raw.FilterToSQL(filter.Native{})
	require.NoError(t, err)
	rows, err := raw.QueryRaw(context.Background(), "SELECT * FROM ? WHERE "+q.Schema+" ORDER BY ?", bun.Ident("item"), bun.Ident("id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"i3", "i5"}, ids(rows))
}

func TestBunDeleteMissingRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(mockDB, sqlitedialect.New())
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "item" WHERE ("id" = 'gone')`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo, err := NewBunProvider(db).Repository(itemTable)
	require.NoError(t, err)
	err = repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBunProviderNilDB(t *testing.T) {
	_, err := NewBunProvider(nil).Repository(itemTable)
	assert.Error(t, err)
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &NotFoundError{Table: "user", ID: "u1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "wrapped: repository: user u1 not found", err.Error())
	assert.Equal(t, 404, (&NotFoundError{}).StatusCode())
}

func TestFeatureHas(t *testing.T) {
	all := FeatureRawSQL | FeaturePagedRead
	assert.True(t, all.Has(FeatureRawSQL))
	assert.True(t, all.Has(FeaturePagedRead))
	assert.False(t, FeaturePagedRead.Has(FeatureRawSQL))
	assert.False(t, FeaturePagedRead.Has(all))
}
