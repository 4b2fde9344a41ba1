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

// JoinKind selects the join flavor.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

func (k JoinKind) sql() string {
	switch k {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	default:
		return "JOIN"
	}
}

// NullOrder controls where NULL sort keys are placed, independent of the
// ascending/descending direction.
type NullOrder int

const (
	// NullsUnspecified defers to the default placement, which is NullsLast.
	NullsUnspecified NullOrder = iota
	NullsFirst
	NullsLast
)

// Sort is one (key, direction, null placement) ordering triple. Keys are
// column names or arbitrary expressions (e.g. a CaseExpr).
type Sort struct {
	key   Expr
	desc  bool
	nulls NullOrder
}

func sortKey(key interface{}) Expr {
	switch k := key.(type) {
	case string:
		return Col(k)
	case Expr:
		return k
	default:
		return Raw("?", key)
	}
}

// Asc sorts ascending by a column name or expression.
func Asc(key interface{}) Sort { return Sort{key: sortKey(key)} }

// Desc sorts descending by a column name or expression.
func Desc(key interface{}) Sort { return Sort{key: sortKey(key), desc: true} }

// NullsFirst places NULL keys before all non-NULL keys.
func (s Sort) NullsFirst() Sort {
	s.nulls = NullsFirst
	return s
}

// NullsLast places NULL keys after all non-NULL keys.
func (s Sort) NullsLast() Sort {
	s.nulls = NullsLast
	return s
}

type joinSpec struct {
	kind     JoinKind
	relation string      // relation field on the source model, or
	model    interface{} // target model for relation-less joins
	on       *Predicate
	fetch    bool
}

// Descriptor is a structured representation of one query: source entity,
// joins, projection, predicate, grouping, ordering, and pagination. It is
// a per-composition value builder with no shared state; compose one per
// request and hand it to the executor. A Descriptor whose projection is a
// single expression can itself be embedded as a scalar subquery value in
// predicates and projections.
type Descriptor struct {
	model   interface{}
	where   *Predicate
	joins   []joinSpec
	columns []Expr
	groupBy []string
	having  *Predicate
	sorts   []Sort
	offset  int
	limit   int
	err     error // first composition error, surfaced before execution
}

// From starts a descriptor over the given Bun model, e.g.
// From((*Member)(nil)). Absence of any other clause means "select all".
func From(model interface{}) *Descriptor {
	return &Descriptor{model: model, offset: -1, limit: -1}
}

func (d *Descriptor) fail(err error) *Descriptor {
	if d.err == nil {
		d.err = err
	}
	return d
}

// Where restricts the result set. Repeated calls conjoin their predicates.
// A nil or True predicate leaves the descriptor unrestricted.
func (d *Descriptor) Where(p *Predicate) *Descriptor {
	if p.IsTrue() {
		return d
	}
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Join inner-joins a declared relationship field of the source model.
func (d *Descriptor) Join(relation string) *Descriptor {
	return d.joinRelation(InnerJoin, relation)
}

// LeftJoin left-outer-joins a declared relationship field.
func (d *Descriptor) LeftJoin(relation string) *Descriptor {
	return d.joinRelation(LeftJoin, relation)
}

// RightJoin right-outer-joins a declared relationship field.
func (d *Descriptor) RightJoin(relation string) *Descriptor {
	return d.joinRelation(RightJoin, relation)
}

func (d *Descriptor) joinRelation(kind JoinKind, relation string) *Descriptor {
	if relation == "" {
		return d.fail(compositionf("relation join requires a relation field name"))
	}
	d.joins = append(d.joins, joinSpec{kind: kind, relation: relation})
	return d
}

// JoinModel joins an unrelated model purely by a join condition (a theta
// join); the condition must be supplied with On before execution.
func (d *Descriptor) JoinModel(kind JoinKind, model interface{}) *Descriptor {
	if model == nil {
		return d.fail(compositionf("theta join requires a target model"))
	}
	d.joins = append(d.joins, joinSpec{kind: kind, model: model})
	return d
}

// On attaches a join condition to the join declared last. For relation
// joins the condition extends the foreign-key ON clause and filters only
// the joined side; moving the same condition into Where changes outer-join
// results. For theta joins On supplies the entire join condition.
func (d *Descriptor) On(p *Predicate) *Descriptor {
	if len(d.joins) == 0 {
		return d.fail(compositionf("On without a preceding join"))
	}
	j := &d.joins[len(d.joins)-1]
	if j.on == nil {
		j.on = p
	} else {
		j.on = And(j.on, p)
	}
	return d
}

// Fetch marks the join declared last to eagerly materialize the joined
// entity in the same round trip. Without it, the related entity is not
// guaranteed to be loaded after the query completes; see Loaded.
//
// Materialization always joins with left outer semantics, so a fetch
// join must be declared with LeftJoin; an inner or right fetch join is
// rejected rather than silently widened.
func (d *Descriptor) Fetch() *Descriptor {
	if len(d.joins) == 0 {
		return d.fail(compositionf("Fetch without a preceding join"))
	}
	j := &d.joins[len(d.joins)-1]
	if j.relation == "" {
		return d.fail(compositionf("Fetch requires a relation join"))
	}
	if j.kind != LeftJoin {
		return d.fail(compositionf("fetch joins materialize with left outer semantics; declare them with LeftJoin"))
	}
	j.fetch = true
	return d
}

// Select sets the projection expressions. Without Select the query
// projects the source entity itself.
func (d *Descriptor) Select(exprs ...Expr) *Descriptor {
	d.columns = append(d.columns, exprs...)
	return d
}

// GroupBy adds grouping keys; aggregates may then appear in the projection.
func (d *Descriptor) GroupBy(columns ...string) *Descriptor {
	d.groupBy = append(d.groupBy, columns...)
	return d
}

// Having restricts grouped rows after aggregation. Repeated calls conjoin.
func (d *Descriptor) Having(p *Predicate) *Descriptor {
	if p.IsTrue() {
		return d
	}
	if d.having == nil {
		d.having = p
	} else {
		d.having = And(d.having, p)
	}
	return d
}

// OrderBy appends sort keys, applied left to right as a stable multi-key
// sort.
func (d *Descriptor) OrderBy(sorts ...Sort) *Descriptor {
	d.sorts = append(d.sorts, sorts...)
	return d
}

// Offset skips n matching rows after ordering is applied.
func (d *Descriptor) Offset(n int) *Descriptor {
	if n < 0 {
		return d.fail(compositionf("offset must be non-negative, got %d", n))
	}
	d.offset = n
	return d
}

// Limit caps the number of returned rows, applied after ordering. A limit
// of zero yields an empty result set without a database round trip.
func (d *Descriptor) Limit(n int) *Descriptor {
	if n < 0 {
		return d.fail(compositionf("limit must be non-negative, got %d", n))
	}
	d.limit = n
	return d
}

// Err returns the first composition error recorded while building, if any.
func (d *Descriptor) Err() error { return d.err }
