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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())
}

func TestPageIndexRequest(t *testing.T) {
	p := PageIndexRequest(1, 5)
	assert.Equal(t, 2, p.GetPage())
	assert.Equal(t, 5, p.GetOffset())

	start, end := p.Window(7)
	assert.Equal(t, 5, start)
	assert.Equal(t, 7, end)

	start, end = PageIndexRequest(3, 5).Window(7)
	assert.Equal(t, 7, start)
	assert.Equal(t, 7, end)
}

func TestOperatorEnum(t *testing.T) {
	for i, op := range Operators() {
		assert.True(t, op.IsValid(), op)
		assert.Equal(t, i, op.Number())
		assert.NotEqual(t, IllegalDesc, op.Desc())
	}
	assert.Equal(t, "STARTS_WITH", OpStartsWith.Name())

	bogus := Operator("regex")
	assert.False(t, bogus.IsValid())
	assert.Equal(t, IllegalValue, bogus.Number())
	assert.Equal(t, IllegalName, bogus.Name())
}

func TestConnectorAndDirection(t *testing.T) {
	assert.True(t, ConnectorOr.IsValid())
	assert.False(t, Connector("").IsValid())
	assert.Equal(t, "DESC", Direction("DESC").SQL())
	assert.Equal(t, "ASC", Direction("").SQL())
}

func TestWhereDefaults(t *testing.T) {
	w := Where{Field: "email", Value: "a@b.c"}
	assert.Equal(t, OpEq, w.Op())
	assert.False(t, w.IsOr())
	assert.Contains(t, w.String(), `"field":"email"`)
}

func TestJSONList(t *testing.T) {
	v, err := StringList{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	var got NumberList
	require.NoError(t, got.Scan([]byte(`[1,2.5]`)))
	assert.Equal(t, NumberList{1, 2.5}, got)

	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got)

	assert.Error(t, got.Scan(42))
}
