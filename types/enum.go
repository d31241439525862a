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

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Operator is the comparison operator of a where clause, spelled the way the
// authentication framework sends it ("eq", "starts_with", ...).
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpIn         Operator = "in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

var operators = []struct {
	op   Operator
	desc string
}{
	{OpEq, "equal to"},
	{OpNe, "not equal to"},
	{OpLt, "less than"},
	{OpLte, "less than or equal to"},
	{OpGt, "greater than"},
	{OpGte, "greater than or equal to"},
	{OpIn, "one of"},
	{OpContains, "contains substring"},
	{OpStartsWith, "starts with"},
	{OpEndsWith, "ends with"},
}

var _ BaseEnum = Operator("")

// Operators returns every operator the framework may send, in declaration order.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	for i, o := range operators {
		out[i] = o.op
	}
	return out
}

// IsValid reports whether the operator is one of the known operators.
func (o Operator) IsValid() bool { return o.Number() != IllegalValue }

// Number returns the declaration index of the operator, or IllegalValue.
func (o Operator) Number() int {
	for i, known := range operators {
		if known.op == o {
			return i
		}
	}
	return IllegalValue
}

func (o Operator) String() string { return string(o) }

// Name returns the upper-case operator name ("STARTS_WITH").
func (o Operator) Name() string {
	if !o.IsValid() {
		return IllegalName
	}
	return strings.ToUpper(string(o))
}

// Desc returns a human readable description of the operator.
func (o Operator) Desc() string {
	if n := o.Number(); n != IllegalValue {
		return operators[n].desc
	}
	return IllegalDesc
}

// Connector joins a where clause to its predecessor.
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

var _ BaseEnum = Connector("")

// IsValid reports whether the connector is AND or OR. The empty connector is
// treated as AND by the translator but is not itself a valid value.
func (c Connector) IsValid() bool { return c == ConnectorAnd || c == ConnectorOr }

func (c Connector) Number() int {
	switch c {
	case ConnectorAnd:
		return 0
	case ConnectorOr:
		return 1
	default:
		return IllegalValue
	}
}

func (c Connector) String() string { return string(c) }

func (c Connector) Name() string {
	if !c.IsValid() {
		return IllegalName
	}
	return string(c)
}

func (c Connector) Desc() string {
	switch c {
	case ConnectorAnd:
		return "all conditions must hold"
	case ConnectorOr:
		return "any condition may hold"
	default:
		return IllegalDesc
	}
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// IsDesc reports whether the direction sorts descending; anything else sorts ascending.
func (d Direction) IsDesc() bool { return strings.EqualFold(string(d), string(Desc)) }

// SQL returns the ORDER BY keyword for the direction.
func (d Direction) SQL() string {
	if d.IsDesc() {
		return "DESC"
	}
	return "ASC"
}
