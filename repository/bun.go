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

package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/tomoncle/authbridge/filter"
	"github.com/tomoncle/authbridge/schema"
	"github.com/tomoncle/authbridge/types"
)

// BunProvider serves tables of a bun database as map-backed repositories.
type BunProvider struct {
	db *bun.DB
}

// NewBunProvider returns a provider over db. Tables must already exist; see
// database.EnsureSchema.
func NewBunProvider(db *bun.DB) *BunProvider {
	return &BunProvider{db: db}
}

func (p *BunProvider) Repository(table schema.Table) (Repository, error) {
	if p.db == nil {
		return nil, fmt.Errorf("bun provider for %s: nil database", table.Name())
	}
	return &bunRepository{db: p.db, table: table}, nil
}

type bunRepository struct {
	db    *bun.DB
	table schema.Table
}

var (
	_ Repository = (*bunRepository)(nil)
	_ RawQuerier = (*bunRepository)(nil)
)

func (r *bunRepository) Name() string        { return r.table.Name() }
func (r *bunRepository) Table() schema.Table { return r.table }

func (r *bunRepository) HasFeature(f Feature) bool {
	return (FeatureRawSQL | FeaturePagedRead).Has(f)
}

func (r *bunRepository) TableName() string          { return r.table.TableName() }
func (r *bunRepository) Dialect() bunschema.Dialect { return r.db.Dialect() }

func (r *bunRepository) FilterToSQL(where filter.Native) (*types.QueryFilter, error) {
	return filter.ToSQL(where)
}

func (r *bunRepository) QueryRaw(ctx context.Context, query string, args ...interface{}) ([]types.Record, error) {
	var rows []map[string]interface{}
	if err := r.db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return r.coerceAll(rows), nil
}

func (r *bunRepository) Insert(ctx context.Context, record types.Record) (types.Record, error) {
	id, ok := record[schema.IDField]
	if !ok || id == nil {
		return nil, fmt.Errorf("insert into %s: missing %q", r.TableName(), schema.IDField)
	}
	values := r.columnValues(record)
	if _, err := r.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(r.TableName())).Exec(ctx); err != nil {
		return nil, err
	}
	return r.byID(ctx, id)
}

func (r *bunRepository) FindOne(ctx context.Context, where filter.Native) (types.Record, error) {
	rows, err := r.Find(ctx, FindOptions{Where: where, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *bunRepository) Find(ctx context.Context, opts FindOptions) ([]types.Record, error) {
	query, err := r.selectQuery(opts.Where)
	if err != nil {
		return nil, err
	}
	if opts.OrderBy != nil && opts.OrderBy.Field != "" {
		query = query.OrderExpr("? "+opts.OrderBy.Direction.SQL(), bun.Ident(opts.OrderBy.Field))
	}
	switch {
	case opts.Page != nil:
		query = query.Limit(opts.Page.GetPageSize()).Offset(opts.Page.GetOffset())
	case opts.Limit > 0:
		query = query.Limit(opts.Limit)
	}
	var rows []map[string]interface{}
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return r.coerceAll(rows), nil
}

func (r *bunRepository) Count(ctx context.Context, where filter.Native) (int, error) {
	query, err := r.selectQuery(where)
	if err != nil {
		return 0, err
	}
	return query.Count(ctx)
}

func (r *bunRepository) Update(ctx context.Context, id any, values types.Record) (types.Record, error) {
	set := r.columnValues(withoutID(values))
	if len(set) > 0 {
		_, err := r.db.NewUpdate().
			Model(&set).
			TableExpr("?", bun.Ident(r.TableName())).
			Where("? = ?", bun.Ident(schema.IDField), id).
			Exec(ctx)
		if err != nil {
			return nil, err
		}
	}
	row, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{Table: r.TableName(), ID: id}
	}
	return row, nil
}

func (r *bunRepository) UpdateMany(ctx context.Context, where filter.Native, values types.Record) (int, error) {
	set := r.columnValues(withoutID(values))
	if len(set) == 0 {
		return r.Count(ctx, where)
	}
	q, err := filter.ToSQL(where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.NewUpdate().
		Model(&set).
		TableExpr("?", bun.Ident(r.TableName())).
		Where(q.Schema, q.Args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *bunRepository) Delete(ctx context.Context, id any) error {
	res, err := r.db.NewDelete().
		TableExpr("?", bun.Ident(r.TableName())).
		Where("? = ?", bun.Ident(schema.IDField), id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Table: r.TableName(), ID: id}
	}
	return nil
}

func (r *bunRepository) DeleteMany(ctx context.Context, where filter.Native) (int, error) {
	q, err := filter.ToSQL(where)
	if err != nil {
		return 0, err
	}
	res, err := r.db.NewDelete().
		TableExpr("?", bun.Ident(r.TableName())).
		Where(q.Schema, q.Args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *bunRepository) selectQuery(where filter.Native) (*bun.SelectQuery, error) {
	q, err := filter.ToSQL(where)
	if err != nil {
		return nil, err
	}
	return r.db.NewSelect().
		TableExpr("?", bun.Ident(r.TableName())).
		Where(q.Schema, q.Args...), nil
}

func (r *bunRepository) byID(ctx context.Context, id any) (types.Record, error) {
	return r.FindOne(ctx, filter.Native{schema.IDField: id})
}

func (r *bunRepository) coerceAll(rows []map[string]interface{}) []types.Record {
	out := make([]types.Record, len(rows))
	for i, row := range rows {
		out[i] = r.table.Coerce(row)
	}
	return out
}

// columnValues converts record values into column values: array fields are
// stored as JSON text.
func (r *bunRepository) columnValues(record types.Record) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		f, ok := r.table.Field(k)
		if ok && f.Type.IsArray() && v != nil {
			out[k] = jsonList(v)
			continue
		}
		out[k] = v
	}
	return out
}

func jsonList(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	list := make(types.JSONList[any], rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list
}

func withoutID(values types.Record) types.Record {
	out := make(types.Record, len(values))
	for k, v := range values {
		if k != schema.IDField {
			out[k] = v
		}
	}
	return out
}
