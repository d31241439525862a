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

package authbridge

import (
	"errors"
	"fmt"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/pagination"
	"github.com/tomoncle/authbridge/types"
)

var (
	// ErrModelNotFound is matched by *ModelNotFoundError.
	ErrModelNotFound = errors.New("authbridge: model not found")
	// ErrAmbiguousUpdateTarget is matched when update gets other than one where clause.
	ErrAmbiguousUpdateTarget = errors.New("authbridge: update requires exactly one where clause")
	// ErrAmbiguousDeleteTarget is matched when delete gets other than one where clause.
	ErrAmbiguousDeleteTarget = errors.New("authbridge: delete requires exactly one where clause")
	// ErrTargetNotFound is matched by *TargetNotFoundError.
	ErrTargetNotFound = errors.New("authbridge: target not found")

	ErrUnsupportedOperator   = filter.ErrUnsupportedOperator
	ErrUnsupportedPagination = pagination.ErrUnsupportedPagination
)

// ModelNotFoundError reports a model missing from the declared entities.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("authbridge: model %q not found, check Options.Entities in the adapter configuration", e.Model)
}

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// AmbiguousTargetError reports an update or delete called with zero or
// several where clauses.
type AmbiguousTargetError struct {
	Op    string
	Model string
	Where []types.Where
}

func (e *AmbiguousTargetError) Error() string {
	return fmt.Sprintf("authbridge: %s on %q requires exactly one where clause, got %d: %v", e.Op, e.Model, len(e.Where), e.Where)
}

func (e *AmbiguousTargetError) Is(target error) bool {
	switch e.Op {
	case opUpdate:
		return target == ErrAmbiguousUpdateTarget
	case opDelete:
		return target == ErrAmbiguousDeleteTarget
	}
	return false
}

// TargetNotFoundError reports an update or delete whose where clause matched no row.
type TargetNotFoundError struct {
	Op    string
	Model string
	Where types.Where
	Err   error
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("authbridge: %s target not found: no %s matches %s", e.Op, e.Model, e.Where)
}

func (e *TargetNotFoundError) Is(target error) bool { return target == ErrTargetNotFound }

// Unwrap returns the store error, if the store reported the miss.
func (e *TargetNotFoundError) Unwrap() error { return e.Err }
