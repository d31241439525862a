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

// QueryFilter describes a compiled WHERE fragment and its argument values.
// Schema uses bun placeholders ("?"), identifiers travel in Args as bun.Ident.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// MatchAll returns the filter that selects every row.
func MatchAll() *QueryFilter {
	return &QueryFilter{Schema: "1 = 1"}
}

// PageRequest describes a page-based read: 1-based page number, page size,
// optional where clauses and ordering.
type PageRequest struct {
	page     int
	pageSize int
	where    []Where
	sortBy   *SortBy
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}
func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetWhere() []Where {
	return p.where
}

func (p *PageRequest) GetSortBy() *SortBy {
	return p.sortBy
}

// NewPageRequest constructs a PageRequest with where clauses and ordering.
func NewPageRequest(page int, pageSize int, where []Where, sortBy *SortBy) *PageRequest {
	return &PageRequest{page, pageSize, where, sortBy}
}

// NewPageRequestWithWhere constructs a PageRequest with where clauses only.
func NewPageRequestWithWhere(page int, pageSize int, where []Where) *PageRequest {
	return NewPageRequest(page, pageSize, where, nil)
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
}

// PageIndexRequest converts a 0-based page index into a PageRequest.
func PageIndexRequest(index int, pageSize int) *PageRequest {
	return NewDefaultPageRequest(index+1, pageSize)
}

// Pagination holds paged result items along with pagination metadata.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}

// Window returns the half-open bounds [start, end) of a page over n rows.
func (p *PageRequest) Window(n int) (start, end int) {
	start = p.GetOffset()
	if start > n {
		start = n
	}
	end = start + p.GetPageSize()
	if end > n {
		end = n
	}
	return start, end
}
