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
	"strings"
)

// Match evaluates a native filter against a row.
func Match(native Native, row map[string]any) (bool, error) {
	for field, cond := range native {
		if field == OrKey {
			continue
		}
		ok, err := matchField(row[field], cond)
		if err != nil || !ok {
			return false, err
		}
	}
	or := native.Or()
	if len(or) == 0 {
		return true, nil
	}
	for field, cond := range or {
		ok, err := matchField(row[field], cond)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchField(actual, cond any) (bool, error) {
	var ops Ops
	switch c := cond.(type) {
	case Ops:
		ops = c
	case map[string]any:
		ops = c
	default:
		return Equal(actual, cond), nil
	}
	for key, want := range ops {
		ok, err := matchOp(key, actual, want)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOp(key string, actual, want any) (bool, error) {
	switch key {
	case KeyNe:
		return !Equal(actual, want), nil
	case KeyLt, KeyLte, KeyGt, KeyGte:
		c, ok := Compare(actual, want)
		if !ok {
			return false, nil
		}
		switch key {
		case KeyLt:
			return c < 0, nil
		case KeyLte:
			return c <= 0, nil
		case KeyGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case KeyIn:
		for _, candidate := range listValues(want) {
			if Equal(actual, candidate) {
				return true, nil
			}
		}
		return false, nil
	case KeyContains, KeyStartsWith, KeyEndsWith:
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		needle, _ := want.(string)
		s, needle = strings.ToLower(s), strings.ToLower(needle)
		switch key {
		case KeyContains:
			return strings.Contains(s, needle), nil
		case KeyStartsWith:
			return strings.HasPrefix(s, needle), nil
		default:
			return strings.HasSuffix(s, needle), nil
		}
	}
	return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, key)
}
