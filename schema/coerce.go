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

package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// timeLayouts are tried before strfmt's own list; the second one is how bun
// writes timestamps into text columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses the textual timestamp forms found in stores.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return time.Time(dt), nil
}

// Coerce returns a copy of row with store-native values converted back to the
// declared field types. Unknown fields and unconvertible values pass through.
func (t Table) Coerce(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		f, ok := t.Field(k)
		if !ok || v == nil {
			out[k] = normalizeBytes(v)
			continue
		}
		out[k] = coerceValue(f.Type, v)
	}
	return out
}

func normalizeBytes(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func coerceValue(typ FieldType, v any) any {
	v = normalizeBytes(v)
	switch typ {
	case TypeDate:
		switch tv := v.(type) {
		case time.Time:
			return tv
		case strfmt.DateTime:
			return time.Time(tv)
		case string:
			if parsed, err := ParseTime(tv); err == nil {
				return parsed
			}
		}
	case TypeBoolean:
		switch tv := v.(type) {
		case bool:
			return tv
		case int64:
			return tv != 0
		case int:
			return tv != 0
		case float64:
			return tv != 0
		case string:
			if b, err := strconv.ParseBool(tv); err == nil {
				return b
			}
		}
	case TypeNumber:
		switch tv := v.(type) {
		case json.Number:
			if i, err := tv.Int64(); err == nil {
				return i
			}
			if f, err := tv.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(tv, 64); err == nil {
				return integral(f)
			}
		case float64:
			return integral(tv)
		}
	case TypeString:
		return v
	case TypeStringArray:
		if list, ok := decodeList(v); ok {
			out := make([]string, 0, len(list))
			for _, item := range list {
				out = append(out, fmt.Sprint(item))
			}
			return out
		}
	case TypeNumberArray:
		if list, ok := decodeList(v); ok {
			out := make([]float64, 0, len(list))
			for _, item := range list {
				f, ok := toFloat(item)
				if !ok {
					return v
				}
				out = append(out, f)
			}
			return out
		}
	}
	return v
}

func integral(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func decodeList(v any) ([]any, bool) {
	switch tv := v.(type) {
	case string:
		var list []any
		if err := json.Unmarshal([]byte(tv), &list); err != nil {
			return nil, false
		}
		return list, true
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(tv))
		for i, f := range tv {
			out[i] = f
		}
		return out, true
	case []int64:
		out := make([]any, len(tv))
		for i, n := range tv {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
