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

package query

import (
	"context"
	"reflect"

	"github.com/uptrace/bun"
)

// Build compiles a descriptor into a Bun select query without executing
// it. It is the escape hatch for callers that need to count, wrap, or
// otherwise post-process the query themselves.
func Build(db *bun.DB, d *Descriptor) (*bun.SelectQuery, error) {
	return buildSelect(db, d)
}

func checkModel[T any](d *Descriptor) error {
	if d == nil {
		return compositionf("nil descriptor")
	}
	mt, err := modelType(d.model)
	if err != nil {
		return err
	}
	if want := reflect.TypeOf((*T)(nil)).Elem(); mt != want {
		return compositionf("descriptor is bound to %s, executed as %s", mt, want)
	}
	return nil
}

// All returns the full ordered, paginated result list. Zero matches yield
// an empty list, never nil. One blocking round trip per call; cancellation
// is driven by ctx.
func All[T any](ctx context.Context, db *bun.DB, d *Descriptor) ([]*T, error) {
	if err := checkModel[T](d); err != nil {
		return nil, err
	}
	if d.limit == 0 {
		return []*T{}, nil
	}
	q, err := buildSelect(db, d)
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	if err := q.Scan(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// One returns the single matching entity, nil when nothing matches, and
// ErrNonUnique when the predicate matches two or more rows. Uniqueness is
// judged within the descriptor's own pagination window.
func One[T any](ctx context.Context, db *bun.DB, d *Descriptor) (*T, error) {
	if err := checkModel[T](d); err != nil {
		return nil, err
	}
	if d.limit == 0 {
		return nil, nil
	}
	// Two rows are enough to prove non-uniqueness.
	capped := *d
	if capped.limit < 0 || capped.limit > 2 {
		capped.limit = 2
	}
	q, err := buildSelect(db, &capped)
	if err != nil {
		return nil, err
	}
	var entities []*T
	if err := q.Scan(ctx, &entities); err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return entities[0], nil
	default:
		return nil, ErrNonUnique
	}
}

// First returns the first matching entity under the descriptor's ordering,
// or nil when nothing matches. Unlike One it never reports ErrNonUnique.
func First[T any](ctx context.Context, db *bun.DB, d *Descriptor) (*T, error) {
	if err := checkModel[T](d); err != nil {
		return nil, err
	}
	if d.limit == 0 {
		return nil, nil
	}
	capped := *d
	capped.limit = 1
	q, err := buildSelect(db, &capped)
	if err != nil {
		return nil, err
	}
	var entities []*T
	if err := q.Scan(ctx, &entities); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// Scalars executes a single-expression projection and returns one value
// per row.
func Scalars[V any](ctx context.Context, db *bun.DB, d *Descriptor) ([]V, error) {
	if d == nil {
		return nil, compositionf("nil descriptor")
	}
	if len(d.columns) != 1 {
		return nil, compositionf("scalar projection requires exactly one expression, got %d", len(d.columns))
	}
	if d.limit == 0 {
		return []V{}, nil
	}
	q, err := buildSelect(db, d)
	if err != nil {
		return nil, err
	}
	values := make([]V, 0)
	if err := q.Scan(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// ScalarOne executes a single-expression projection with One's
// cardinality contract: nil when absent, ErrNonUnique beyond one row.
func ScalarOne[V any](ctx context.Context, db *bun.DB, d *Descriptor) (*V, error) {
	if d == nil {
		return nil, compositionf("nil descriptor")
	}
	if d.limit == 0 {
		return nil, nil
	}
	capped := *d
	if capped.limit < 0 || capped.limit > 2 {
		capped.limit = 2
	}
	values, err := Scalars[V](ctx, db, &capped)
	if err != nil {
		return nil, err
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return &values[0], nil
	default:
		return nil, ErrNonUnique
	}
}

// Tuples executes a multi-expression projection and returns one positional
// tuple per row.
func Tuples(ctx context.Context, db *bun.DB, d *Descriptor) ([]Tuple, error) {
	if d == nil {
		return nil, compositionf("nil descriptor")
	}
	if len(d.columns) < 2 {
		return nil, compositionf("tuple projection requires at least two expressions, got %d", len(d.columns))
	}
	if d.limit == 0 {
		return []Tuple{}, nil
	}
	q, err := buildSelect(db, d)
	if err != nil {
		return nil, err
	}
	names, values, err := scanRows(ctx, q)
	if err != nil {
		return nil, err
	}
	tuples := make([]Tuple, 0, len(values))
	for _, row := range values {
		tuples = append(tuples, Tuple{names: names, values: row})
	}
	return tuples, nil
}

// Structs executes a projection and maps every row into R through the
// given binder. Binding problems are detected before the query is issued.
func Structs[R any](ctx context.Context, db *bun.DB, d *Descriptor, binder Binder[R]) ([]R, error) {
	if d == nil {
		return nil, compositionf("nil descriptor")
	}
	if binder == nil {
		return nil, compositionf("nil binder")
	}
	if len(d.columns) == 0 {
		return nil, compositionf("structured binding requires at least one projected expression")
	}
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.bindName()
	}
	if err := binder.validate(names); err != nil {
		return nil, err
	}
	if d.limit == 0 {
		return []R{}, nil
	}
	q, err := buildSelect(db, d)
	if err != nil {
		return nil, err
	}
	_, rows, err := scanRows(ctx, q)
	if err != nil {
		return nil, err
	}
	records := make([]R, 0, len(rows))
	for _, row := range rows {
		rec, err := binder.bind(names, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func scanRows(ctx context.Context, q *bun.SelectQuery) ([]string, [][]interface{}, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]interface{}
	for rows.Next() {
		row := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return names, out, nil
}
