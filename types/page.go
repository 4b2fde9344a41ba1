/*
 * Copyright 2025 finch-orm.
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

import "github.com/finch-orm/finch/query"

// PageRequest describes pagination, an optional predicate, and ordering.
// A nil predicate means "no restriction".
type PageRequest struct {
	page      int
	pageSize  int
	predicate *query.Predicate
	sorts     []query.Sort
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

func (p *PageRequest) GetPredicate() *query.Predicate {
	return p.predicate
}

func (p *PageRequest) GetSorts() []query.Sort {
	return p.sorts
}

// NewPageRequest constructs a PageRequest with predicate and sort settings.
func NewPageRequest(page int, pageSize int, predicate *query.Predicate, sorts []query.Sort) *PageRequest {
	return &PageRequest{page, pageSize, predicate, sorts}
}

// NewPageRequestWithPredicate constructs a PageRequest with a predicate only.
func NewPageRequestWithPredicate(page int, pageSize int, predicate *query.Predicate) *PageRequest {
	return NewPageRequest(page, pageSize, predicate, nil)
}

// NewPageRequestWithSorts constructs a PageRequest with ordering only.
func NewPageRequestWithSorts(page int, pageSize int, sorts ...query.Sort) *PageRequest {
	return NewPageRequest(page, pageSize, nil, sorts)
}

// NewDefaultPageRequest constructs a PageRequest with no predicate or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
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
