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
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tomoncle/authbridge/types"
)

// likeEscaper escapes LIKE wildcards with '!' so patterns are matched literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ToSQL compiles a native filter into a bun WHERE fragment. Column names are
// passed as bun.Ident so the query formatter quotes them for the dialect in use.
// Fields are emitted in name order so the output is deterministic.
func ToSQL(native Native) (*types.QueryFilter, error) {
	var (
		and  []string
		args []interface{}
	)
	for _, field := range sortedKeys(native) {
		if field == OrKey {
			continue
		}
		parts, partArgs, err := fieldSQL(field, native[field])
		if err != nil {
			return nil, err
		}
		and = append(and, parts...)
		args = append(args, partArgs...)
	}

	if or := native.Or(); len(or) > 0 {
		var alts []string
		for _, field := range sortedKeys(or) {
			parts, partArgs, err := fieldSQL(field, or[field])
			if err != nil {
				return nil, err
			}
			alt := strings.Join(parts, " AND ")
			if len(parts) > 1 {
				alt = "(" + alt + ")"
			}
			alts = append(alts, alt)
			args = append(args, partArgs...)
		}
		and = append(and, "("+strings.Join(alts, " OR ")+")")
	}

	if len(and) == 0 {
		return types.MatchAll(), nil
	}
	return types.NewQueryFilter(strings.Join(and, " AND "), args...), nil
}

func fieldSQL(field string, cond any) ([]string, []interface{}, error) {
	col := bun.Ident(field)
	var ops Ops
	switch c := cond.(type) {
	case Ops:
		ops = c
	case map[string]any:
		ops = c
	default:
		if cond == nil {
			return []string{"? IS NULL"}, []interface{}{col}, nil
		}
		return []string{"? = ?"}, []interface{}{col, cond}, nil
	}

	var (
		parts []string
		args  []interface{}
	)
	for _, key := range sortedKeys(ops) {
		v := ops[key]
		switch key {
		case KeyNe:
			if v == nil {
				parts = append(parts, "? IS NOT NULL")
				args = append(args, col)
			} else {
				parts = append(parts, "(? <> ? OR ? IS NULL)")
				args = append(args, col, v, col)
			}
		case KeyLt, KeyLte, KeyGt, KeyGte:
			parts = append(parts, "? "+comparison[key]+" ?")
			args = append(args, col, v)
		case KeyIn:
			values := listValues(v)
			if len(values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, "? IN (?)")
			args = append(args, col, bun.In(values))
		case KeyContains, KeyStartsWith, KeyEndsWith:
			s, ok := v.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s on %q expects a string", ErrInvalidValue, key, field)
			}
			pattern := likeEscaper.Replace(strings.ToLower(s))
			switch key {
			case KeyContains:
				pattern = "%" + pattern + "%"
			case KeyStartsWith:
				pattern = pattern + "%"
			default:
				pattern = "%" + pattern
			}
			parts = append(parts, "lower(?) LIKE ? ESCAPE '!'")
			args = append(args, col, pattern)
		default:
			return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, key)
		}
	}
	return parts, args, nil
}

var comparison = map[string]string{
	KeyLt:  "<",
	KeyLte: "<=",
	KeyGt:  ">",
	KeyGte: ">=",
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
