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
	"encoding/json"
	"fmt"
)

// Record is a single row as the authentication framework sees it: field name to value.
type Record = map[string]any

// Where is one filter clause sent by the authentication framework. Connector
// applies between the clause and its predecessor; the empty connector means AND.
type Where struct {
	Field     string    `json:"field" yaml:"field"`
	Operator  Operator  `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     any       `json:"value" yaml:"value"`
	Connector Connector `json:"connector,omitempty" yaml:"connector,omitempty"`
}

// Op returns the clause operator, defaulting to eq.
func (w Where) Op() Operator {
	if w.Operator == "" {
		return OpEq
	}
	return w.Operator
}

// IsOr reports whether the clause is joined with OR.
func (w Where) IsOr() bool { return w.Connector == ConnectorOr }

func (w Where) String() string {
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Sprintf("{field:%s operator:%s value:%v connector:%s}", w.Field, w.Operator, w.Value, w.Connector)
	}
	return string(b)
}

// Eq builds an equality clause joined with AND.
func Eq(field string, value any) Where {
	return Where{Field: field, Operator: OpEq, Value: value, Connector: ConnectorAnd}
}

// SortBy orders a read by a single field.
type SortBy struct {
	Field     string    `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
}
