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

package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/types"
)

func TestTranslateOperators(t *testing.T) {
	cases := []struct {
		name   string
		clause types.Where
		want   Native
	}{
		{"eq", types.Where{Field: "email", Operator: types.OpEq, Value: "a@b.c"}, Native{"email": "a@b.c"}},
		{"default eq", types.Where{Field: "email", Value: "a@b.c"}, Native{"email": "a@b.c"}},
		{"ne", types.Where{Field: "age", Operator: types.OpNe, Value: 3}, Native{"age": Ops{"$ne": 3}}},
		{"lt", types.Where{Field: "age", Operator: types.OpLt, Value: 3}, Native{"age": Ops{"$lt": 3}}},
		{"lte", types.Where{Field: "age", Operator: types.OpLte, Value: 3}, Native{"age": Ops{"$lte": 3}}},
		{"gt", types.Where{Field: "age", Operator: types.OpGt, Value: 3}, Native{"age": Ops{"$gt": 3}}},
		{"gte", types.Where{Field: "age", Operator: types.OpGte, Value: 3}, Native{"age": Ops{"$gte": 3}}},
		{"in", types.Where{Field: "id", Operator: types.OpIn, Value: []string{"a", "b"}}, Native{"id": Ops{"$in": []string{"a", "b"}}}},
		{"contains", types.Where{Field: "name", Operator: types.OpContains, Value: "li"}, Native{"name": Ops{"$contains": "li"}}},
		{"starts_with", types.Where{Field: "name", Operator: types.OpStartsWith, Value: "A"}, Native{"name": Ops{"$startsWith": "A"}}},
		{"ends_with", types.Where{Field: "name", Operator: types.OpEndsWith, Value: "e"}, Native{"name": Ops{"$endsWith": "e"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate([]types.Where{tc.clause})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTranslateEmpty(t *testing.T) {
	got, err := Translate(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, got.IsEmpty())
}

func TestTranslateOrGroup(t *testing.T) {
	got, err := Translate([]types.Where{
		{Field: "email", Value: "a@b.c", Connector: types.ConnectorOr},
		{Field: "name", Operator: types.OpStartsWith, Value: "A", Connector: types.ConnectorOr},
		{Field: "active", Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, Native{
		"$or": Native{
			"email": "a@b.c",
			"name":  Ops{"$startsWith": "A"},
		},
		"active": true,
	}, got)
}

func TestTranslateMergesRange(t *testing.T) {
	got, err := Translate([]types.Where{
		{Field: "age", Operator: types.OpGt, Value: 1},
		{Field: "age", Operator: types.OpLt, Value: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, Native{"age": Ops{"$gt": 1, "$lt": 9}}, got)
}

func TestTranslateErrors(t *testing.T) {
	cases := []struct {
		name    string
		clauses []types.Where
		want    error
	}{
		{"unknown operator", []types.Where{{Field: "a", Operator: "like", Value: "x"}}, ErrUnsupportedOperator},
		{"in without list", []types.Where{{Field: "a", Operator: types.OpIn, Value: "x"}}, ErrInvalidValue},
		{"contains non string", []types.Where{{Field: "a", Operator: types.OpContains, Value: 3}}, ErrInvalidValue},
		{"gt nil", []types.Where{{Field: "a", Operator: types.OpGt, Value: nil}}, ErrInvalidValue},
		{"eq list", []types.Where{{Field: "a", Value: []int{1}}}, ErrInvalidValue},
		{"eq twice", []types.Where{{Field: "a", Value: 1}, {Field: "a", Value: 2}}, ErrUnsupportedGrouping},
		{"eq and operator", []types.Where{{Field: "a", Value: 1}, {Field: "a", Operator: types.OpGt, Value: 0}}, ErrUnsupportedGrouping},
		{"same operator twice", []types.Where{
			{Field: "a", Operator: types.OpGt, Value: 1},
			{Field: "a", Operator: types.OpGt, Value: 2},
		}, ErrUnsupportedGrouping},
		{"or twice on field", []types.Where{
			{Field: "a", Value: 1, Connector: types.ConnectorOr},
			{Field: "a", Value: 2, Connector: types.ConnectorOr},
		}, ErrUnsupportedGrouping},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Translate(tc.clauses)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnsupportedOperatorCarriesClause(t *testing.T) {
	clause := types.Where{Field: "a", Operator: "regex", Value: ".*"}
	_, err := Translate([]types.Where{clause})
	var opErr *UnsupportedOperatorError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, clause, opErr.Clause)
	assert.Contains(t, err.Error(), "regex")
}

func TestMatch(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := map[string]any{
		"id":        "u1",
		"name":      "Alice",
		"age":       int64(30),
		"active":    true,
		"image":     nil,
		"createdAt": created,
	}
	cases := []struct {
		name   string
		native Native
		want   bool
	}{
		{"empty", Native{}, true},
		{"eq", Native{"name": "Alice"}, true},
		{"eq number kinds", Native{"age": 30}, true},
		{"eq nil", Native{"image": nil}, true},
		{"eq mismatch", Native{"name": "Bob"}, false},
		{"ne", Native{"name": Ops{KeyNe: "Bob"}}, true},
		{"ne nil column", Native{"image": Ops{KeyNe: "x"}}, true},
		{"range", Native{"age": Ops{KeyGt: 18, KeyLte: 30}}, true},
		{"range miss", Native{"age": Ops{KeyLt: 30}}, false},
		{"gt on nil", Native{"image": Ops{KeyGt: "a"}}, false},
		{"in", Native{"id": Ops{KeyIn: []string{"u0", "u1"}}}, true},
		{"in miss", Native{"id": Ops{KeyIn: []any{"u2"}}}, false},
		{"contains", Native{"name": Ops{KeyContains: "lic"}}, true},
		{"startsWith", Native{"name": Ops{KeyStartsWith: "Al"}}, true},
		{"endsWith", Native{"name": Ops{KeyEndsWith: "ce"}}, true},
		{"contains ignores case", Native{"name": Ops{KeyContains: "LIC"}}, true},
		{"startsWith ignores case", Native{"name": Ops{KeyStartsWith: "aL"}}, true},
		{"endsWith ignores case", Native{"name": Ops{KeyEndsWith: "CE"}}, true},
		{"date vs time", Native{"createdAt": Ops{KeyLt: created.Add(time.Hour)}}, true},
		{"date vs string", Native{"createdAt": Ops{KeyGte: "2025-03-01T12:00:00Z"}}, true},
		{"or hit", Native{OrKey: Native{"name": "Bob", "age": 30}}, true},
		{"or miss", Native{OrKey: Native{"name": "Bob", "age": 31}}, false},
		{"and with or", Native{"active": false, OrKey: Native{"name": "Alice"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Match(tc.native, row)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Match(Native{"name": Ops{"$regex": "x"}}, row)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestSortCompare(t *testing.T) {
	assert.Equal(t, -1, SortCompare(nil, "a"))
	assert.Equal(t, 1, SortCompare(2, nil))
	assert.Equal(t, 0, SortCompare(int64(2), 2.0))
	assert.Equal(t, -1, SortCompare("a", "b"))
	assert.Equal(t, -1, SortCompare(false, true))
	assert.Equal(t, 0, SortCompare("a", 1))
}

func TestToSQL(t *testing.T) {
	q, err := ToSQL(Native{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", q.Schema)
	assert.Empty(t, q.Args)

	q, err = ToSQL(Native{"email": "a", "age": Ops{KeyGt: 18}})
	require.NoError(t, err)
	assert.Equal(t, "? > ? AND ? = ?", q.Schema)
	assert.Equal(t, []interface{}{bun.Ident("age"), 18, bun.Ident("email"), "a"}, q.Args)

	q, err = ToSQL(Native{"image": nil, "id": Ops{KeyIn: []string{}}})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0 AND ? IS NULL", q.Schema)

	q, err = ToSQL(Native{"name": Ops{KeyContains: "50%_OFF!"}})
	require.NoError(t, err)
	assert.Equal(t, "lower(?) LIKE ? ESCAPE '!'", q.Schema)
	assert.Equal(t, "%50!%!_off!!%", q.Args[1])

	q, err = ToSQL(Native{"active": true, OrKey: Native{"a": 1, "b": Ops{KeyGt: 1, KeyLt: 5}}})
	require.NoError(t, err)
	assert.Equal(t, "? = ? AND (? = ? OR (? > ? AND ? < ?))", q.Schema)
	assert.Len(t, q.Args, 8)
}

func TestToSQLFormatsForDialect(t *testing.T) {
	native, err := Translate([]types.Where{
		{Field: "email", Value: "a@b.c"},
		{Field: "role", Operator: types.OpIn, Value: []string{"admin", "user"}},
	})
	require.NoError(t, err)
	q, err := ToSQL(native)
	require.NoError(t, err)

	f := bunschema.NewFormatter(sqlitedialect.New())
	assert.Equal(t, `"email" = 'a@b.c' AND "role" IN ('admin', 'user')`, f.FormatQuery(q.Schema, q.Args...))
}
