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
	"reflect"

	"github.com/tomoncle/authbridge/types"
)

// OrKey is the meta key holding the OR group of a native filter.
const OrKey = "$or"

// Native operator keys.
const (
	KeyNe         = "$ne"
	KeyLt         = "$lt"
	KeyLte        = "$lte"
	KeyGt         = "$gt"
	KeyGte        = "$gte"
	KeyIn         = "$in"
	KeyContains   = "$contains"
	KeyStartsWith = "$startsWith"
	KeyEndsWith   = "$endsWith"
)

// Native is the translated filter: field name (or OrKey) to either a value
// (equality) or an Ops map. The value under OrKey is itself a Native.
type Native map[string]any

// Ops is an operator-keyed condition on a single field, e.g. {"$gt": 5}.
type Ops map[string]any

// IsEmpty reports whether the filter matches every row.
func (n Native) IsEmpty() bool {
	if len(n) == 0 {
		return true
	}
	if len(n) == 1 {
		if or, ok := n[OrKey].(Native); ok && len(or) == 0 {
			return true
		}
	}
	return false
}

// Or returns the OR group, or nil.
func (n Native) Or() Native {
	or, _ := n[OrKey].(Native)
	return or
}

// OperatorKey maps a framework operator to its native key. Equality has no key
// and is reported with ok=true and an empty key.
func OperatorKey(op types.Operator) (key string, ok bool) {
	switch op {
	case types.OpEq:
		return "", true
	case types.OpNe, types.OpLt, types.OpLte, types.OpGt, types.OpGte, types.OpIn, types.OpContains:
		return "$" + string(op), true
	case types.OpStartsWith:
		return KeyStartsWith, true
	case types.OpEndsWith:
		return KeyEndsWith, true
	}
	return "", false
}

// Translate converts where clauses into a native filter. No clauses yield an
// empty filter that matches everything.
//
// OR clauses are translated one at a time and collected under OrKey; no
// grouping across clauses is attempted. Collisions that would change meaning
// fail with ErrUnsupportedGrouping instead of overwriting.
func Translate(clauses []types.Where) (Native, error) {
	native := Native{}
	for _, clause := range clauses {
		cond, err := translateClause(clause)
		if err != nil {
			return nil, err
		}
		if clause.IsOr() {
			or, _ := native[OrKey].(Native)
			if or == nil {
				or = Native{}
				native[OrKey] = or
			}
			if _, exists := or[clause.Field]; exists {
				return nil, &ClauseError{Clause: clause, Reason: "more than one OR clause on the same field", Err: ErrUnsupportedGrouping}
			}
			or[clause.Field] = cond
			continue
		}
		if err := mergeAnd(native, clause, cond); err != nil {
			return nil, err
		}
	}
	return native, nil
}

func translateClause(clause types.Where) (any, error) {
	op := clause.Op()
	key, ok := OperatorKey(op)
	if !ok {
		return nil, &UnsupportedOperatorError{Clause: clause}
	}
	if err := checkValue(clause, op); err != nil {
		return nil, err
	}
	if key == "" {
		return clause.Value, nil
	}
	return Ops{key: clause.Value}, nil
}

func mergeAnd(native Native, clause types.Where, cond any) error {
	existing, exists := native[clause.Field]
	if !exists {
		native[clause.Field] = cond
		return nil
	}
	prev, prevOps := existing.(Ops)
	next, nextOps := cond.(Ops)
	if !prevOps || !nextOps {
		return &ClauseError{Clause: clause, Reason: "equality combined with another condition on the same field", Err: ErrUnsupportedGrouping}
	}
	for k := range next {
		if _, dup := prev[k]; dup {
			return &ClauseError{Clause: clause, Reason: "operator repeated on the same field", Err: ErrUnsupportedGrouping}
		}
	}
	merged := make(Ops, len(prev)+len(next))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range next {
		merged[k] = v
	}
	native[clause.Field] = merged
	return nil
}

func checkValue(clause types.Where, op types.Operator) error {
	v := clause.Value
	switch op {
	case types.OpIn:
		if !isList(v) {
			return &ClauseError{Clause: clause, Reason: "in expects an array", Err: ErrInvalidValue}
		}
	case types.OpContains, types.OpStartsWith, types.OpEndsWith:
		if _, ok := v.(string); !ok {
			return &ClauseError{Clause: clause, Reason: string(op) + " expects a string", Err: ErrInvalidValue}
		}
	case types.OpEq, types.OpNe:
		if isList(v) {
			return &ClauseError{Clause: clause, Reason: string(op) + " expects a scalar", Err: ErrInvalidValue}
		}
	default:
		if v == nil || isList(v) {
			return &ClauseError{Clause: clause, Reason: string(op) + " expects a non-null scalar", Err: ErrInvalidValue}
		}
	}
	return nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// listValues flattens a slice or array value into []any.
func listValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
