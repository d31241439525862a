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
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/tomoncle/authbridge/repository"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// Service is a typed view of one model. T is a struct whose json tags name
// the model's fields.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// List returns entities that match the provided clauses.
	List(ctx context.Context, where ...types.Where) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Update applies values to an existing entity and returns it.
	Update(ctx context.Context, id any, values types.Record) (*T, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// Save inserts new entities and fills their generated identifiers.
	Save(ctx context.Context, model ...*T) error
}

type baseServiceImpl[T any] struct {
	adapter *Adapter
	model   string
}

// NewService returns a Service for model backed by the adapter.
func NewService[T any](adapter *Adapter, model string) Service[T] {
	return &baseServiceImpl[T]{adapter: adapter, model: model}
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	for _, m := range model {
		record, err := toRecord(m)
		if err != nil {
			return err
		}
		stored, err := s.adapter.Create(ctx, s.model, record)
		if err != nil {
			return err
		}
		if err := decodeRecord(stored, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	row, err := s.adapter.FindOne(ctx, s.model, []types.Where{types.Eq(schema.IDField, id)})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &repository.NotFoundError{Table: s.model, ID: id}
	}
	out := new(T)
	if err := decodeRecord(row, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *baseServiceImpl[T]) List(ctx context.Context, where ...types.Where) ([]*T, error) {
	rows, err := s.adapter.FindMany(ctx, FindManyParams{Model: s.model, Where: where})
	if err != nil {
		return nil, err
	}
	return decodeRecords[T](rows)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	result := types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
	total, err := s.adapter.Count(ctx, s.model, page.GetWhere())
	if err != nil {
		return nil, err
	}
	result.Total = total
	if page.GetOffset() >= total {
		return result, nil
	}
	rows, err := s.adapter.FindMany(ctx, FindManyParams{
		Model:  s.model,
		Where:  page.GetWhere(),
		SortBy: page.GetSortBy(),
		Limit:  page.GetPageSize(),
		Offset: page.GetOffset(),
	})
	if err != nil {
		return nil, err
	}
	if result.Items, err = decodeRecords[T](rows); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, values types.Record) (*T, error) {
	row, err := s.adapter.Update(ctx, s.model, []types.Where{types.Eq(schema.IDField, id)}, values)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := decodeRecord(row, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.adapter.Delete(ctx, s.model, []types.Where{types.Eq(schema.IDField, id)})
}

func decodeRecords[T any](rows []types.Record) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		item := new(T)
		if err := decodeRecord(row, item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeRecord(row types.Record, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(row); err != nil {
		return fmt.Errorf("authbridge: decode %T: %w", out, err)
	}
	return nil
}

// toRecord flattens a struct into a record keyed by json tag names. Nil
// pointers and zero values tagged omitempty are left out. mapstructure would
// expand nested structs such as time.Time into maps, so this walks the
// fields itself.
func toRecord(v any) (types.Record, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("authbridge: cannot save nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("authbridge: cannot save %T, want a struct", v)
	}
	record := types.Record{}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fv := rv.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		record[name] = fv.Interface()
	}
	return record, nil
}
