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
	"fmt"

	"github.com/tomoncle/authbridge/types"
)

var (
	// ErrUnsupportedOperator is returned for clauses whose operator has no native mapping.
	ErrUnsupportedOperator = errors.New("filter: unsupported operator")

	// ErrInvalidValue is returned when a clause value does not fit its operator.
	ErrInvalidValue = errors.New("filter: invalid value for operator")

	// ErrUnsupportedGrouping is returned when clauses would need a boolean tree
	// the native filter cannot express, e.g. two OR clauses on the same field.
	ErrUnsupportedGrouping = errors.New("filter: unsupported clause grouping")
)

// UnsupportedOperatorError carries the offending clause.
type UnsupportedOperatorError struct {
	Clause types.Where
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("filter: unknown operator in where clause: %s", e.Clause)
}

func (e *UnsupportedOperatorError) Is(target error) bool {
	return target == ErrUnsupportedOperator
}

// ClauseError reports a clause that cannot be translated for a reason other
// than its operator. It unwraps to ErrInvalidValue or ErrUnsupportedGrouping.
type ClauseError struct {
	Clause types.Where
	Reason string
	Err    error
}

func (e *ClauseError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Reason, e.Clause)
}

func (e *ClauseError) Unwrap() error { return e.Err }
