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
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

func identArg(s string) bun.Ident { return bun.Ident(s) }

// compiler turns a Descriptor into clauses on a bun.SelectQuery. Column
// references are validated against the source table and the join aliases
// before any SQL is issued.
type compiler struct {
	db      *bun.DB
	base    *schema.Table
	tables  map[string]*schema.Table // alias -> joined table
	aliases map[string]struct{}      // projection aliases, groupable/sortable
}

// buildSelect validates the descriptor and assembles the select query.
// Pagination values are applied here; the limit-zero short circuit is the
// executor's concern.
func buildSelect(db *bun.DB, d *Descriptor) (*bun.SelectQuery, error) {
	if d == nil {
		return nil, compositionf("nil descriptor")
	}
	if d.err != nil {
		return nil, d.err
	}
	mt, err := modelType(d.model)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		db:      db,
		base:    db.Table(mt),
		tables:  make(map[string]*schema.Table),
		aliases: make(map[string]struct{}),
	}
	for _, col := range d.columns {
		if name := col.bindName(); name != "" {
			c.aliases[name] = struct{}{}
		}
	}

	q := db.NewSelect().Model(d.model)

	for _, j := range d.joins {
		if q, err = c.applyJoin(q, mt, j); err != nil {
			return nil, err
		}
	}

	for _, col := range d.columns {
		frag, args, err := c.exprSQL(col)
		if err != nil {
			return nil, err
		}
		q = q.ColumnExpr(frag, args...)
	}

	if !d.where.IsTrue() {
		frag, args, err := c.predicateSQL(d.where)
		if err != nil {
			return nil, err
		}
		q = q.Where(frag, args...)
	}

	for _, g := range d.groupBy {
		frag, args, err := c.identSQL(g)
		if err != nil {
			return nil, err
		}
		q = q.GroupExpr(frag, args...)
	}

	if !d.having.IsTrue() {
		if len(d.groupBy) == 0 && !hasAggregate(d.columns) {
			return nil, compositionf("having requires grouping or an aggregated projection")
		}
		frag, args, err := c.predicateSQL(d.having)
		if err != nil {
			return nil, err
		}
		q = q.Having(frag, args...)
	}

	for _, s := range d.sorts {
		if q, err = c.applySort(q, s); err != nil {
			return nil, err
		}
	}

	if d.offset >= 0 {
		q = q.Offset(d.offset)
	}
	if d.limit > 0 {
		q = q.Limit(d.limit)
	}
	return q, nil
}

func hasAggregate(cols []Expr) bool {
	for _, col := range cols {
		e := col
		if a, ok := e.(asExpr); ok {
			e = a.expr
		}
		if _, ok := e.(aggExpr); ok {
			return true
		}
	}
	return false
}

func (c *compiler) applyJoin(q *bun.SelectQuery, mt reflect.Type, j joinSpec) (*bun.SelectQuery, error) {
	if j.relation != "" {
		return c.applyRelationJoin(q, mt, j)
	}
	return c.applyThetaJoin(q, j)
}

func (c *compiler) applyRelationJoin(q *bun.SelectQuery, mt reflect.Type, j joinSpec) (*bun.SelectQuery, error) {
	f, ok := mt.FieldByName(j.relation)
	if !ok {
		return nil, compositionf("unknown relation %q on %s", j.relation, mt.Name())
	}
	pairs, ok := relJoinPairs(f)
	if !ok {
		return nil, compositionf("field %q on %s is not a declared relation", j.relation, mt.Name())
	}
	tt, ok := relTargetType(f)
	if !ok {
		return nil, compositionf("relation %q on %s has no struct target", j.relation, mt.Name())
	}
	target := c.db.Table(tt)

	if j.fetch {
		if j.on != nil {
			return nil, compositionf("fetch joins cannot carry an On filter; use Where or drop Fetch")
		}
		// Bun materializes the relation into the struct field and owns the
		// join it emits for that.
		return q.Relation(j.relation), nil
	}

	alias := target.Alias
	if alias == "" {
		alias = target.Name
	}
	c.tables[alias] = target

	var sb strings.Builder
	var args []interface{}
	sb.WriteString(j.kind.sql())
	sb.WriteString(" ? AS ?")
	args = append(args, identArg(target.Name), identArg(alias))
	sb.WriteString(" ON ")
	for i, pair := range pairs {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString("?.? = ?.?")
		args = append(args,
			identArg(alias), identArg(pair[1]),
			identArg(c.baseAlias()), identArg(pair[0]),
		)
	}
	// An extra On filter belongs inside the same ON clause; restricting
	// the joined side here is what keeps driving rows under outer joins.
	if j.on != nil {
		frag, onArgs, err := c.predicateSQL(j.on)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND (")
		sb.WriteString(frag)
		sb.WriteString(")")
		args = append(args, onArgs...)
	}
	return q.Join(sb.String(), args...), nil
}

func (c *compiler) applyThetaJoin(q *bun.SelectQuery, j joinSpec) (*bun.SelectQuery, error) {
	if j.on == nil {
		return nil, compositionf("theta join requires an On condition")
	}
	tt, err := modelType(j.model)
	if err != nil {
		return nil, err
	}
	target := c.db.Table(tt)
	alias := target.Alias
	if alias == "" {
		alias = target.Name
	}
	c.tables[alias] = target

	frag, onArgs, err := c.predicateSQL(j.on)
	if err != nil {
		return nil, err
	}
	args := append([]interface{}{identArg(target.Name), identArg(alias)}, onArgs...)
	return q.Join(j.kind.sql()+" ? AS ? ON "+frag, args...), nil
}

func (c *compiler) applySort(q *bun.SelectQuery, s Sort) (*bun.SelectQuery, error) {
	frag, args, err := c.exprSQL(s.key)
	if err != nil {
		return nil, err
	}
	dir := " ASC"
	if s.desc {
		dir = " DESC"
	}
	nulls := s.nulls
	if nulls == NullsUnspecified {
		nulls = NullsLast
	}

	// MySQL has no NULLS FIRST/LAST clause; an IS NULL pre-key emulates it.
	if c.db.Dialect().Name() == dialect.MySQL {
		pre := " IS NULL"
		if nulls == NullsFirst {
			pre = " IS NULL DESC"
		}
		preFrag, preArgs, err := c.exprSQL(s.key)
		if err != nil {
			return nil, err
		}
		return q.OrderExpr(preFrag+pre, preArgs...).OrderExpr(frag+dir, args...), nil
	}

	clause := " NULLS LAST"
	if nulls == NullsFirst {
		clause = " NULLS FIRST"
	}
	return q.OrderExpr(frag+dir+clause, args...), nil
}

func (c *compiler) exprSQL(e Expr) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	if err := e.appendExpr(c, &sb, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (c *compiler) predicateSQL(p *Predicate) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	if err := c.appendPredicate(&sb, &args, p); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (c *compiler) identSQL(column string) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	if err := c.appendIdent(&sb, &args, column); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (c *compiler) baseAlias() string {
	if c.base.Alias != "" {
		return c.base.Alias
	}
	return c.base.Name
}

// appendIdent validates and emits one column reference. Qualified names
// are checked against the join aliases; bare names against the source
// table, then against projection aliases. A reference containing '(' is
// treated as a raw expression and passed through unvalidated, which keeps
// aggregate references in HAVING usable.
func (c *compiler) appendIdent(sb *strings.Builder, args *[]interface{}, column string) error {
	if strings.ContainsRune(column, '(') {
		sb.WriteString(column)
		return nil
	}
	if i := strings.LastIndexByte(column, '.'); i >= 0 {
		alias, name := column[:i], column[i+1:]
		t, known := c.tables[alias]
		if !known && alias != c.baseAlias() {
			return compositionf("unknown table alias %q in column %q", alias, column)
		}
		if !known {
			t = c.base
		}
		if t.FieldMap[name] == nil {
			return compositionf("unknown column %q on table %q", name, t.Name)
		}
		sb.WriteString("?.?")
		*args = append(*args, identArg(alias), identArg(name))
		return nil
	}
	if c.base.FieldMap[column] != nil {
		sb.WriteString("?.?")
		*args = append(*args, identArg(c.baseAlias()), identArg(column))
		return nil
	}
	if _, ok := c.aliases[column]; ok {
		sb.WriteString("?")
		*args = append(*args, identArg(column))
		return nil
	}
	return compositionf("unknown column %q on table %q", column, c.base.Name)
}

// appendValue emits a placeholder for one comparison value. A *Descriptor
// value is embedded as a parenthesized scalar subquery.
func (c *compiler) appendValue(sb *strings.Builder, args *[]interface{}, v interface{}) error {
	if sub, ok := v.(*Descriptor); ok {
		sq, err := c.subquery(sub)
		if err != nil {
			return err
		}
		sb.WriteString("(?)")
		*args = append(*args, sq)
		return nil
	}
	sb.WriteString("?")
	*args = append(*args, v)
	return nil
}

func (c *compiler) subquery(d *Descriptor) (*bun.SelectQuery, error) {
	if len(d.columns) != 1 {
		return nil, compositionf("scalar subquery requires exactly one projected expression, got %d", len(d.columns))
	}
	return buildSelect(c.db, d)
}

func (c *compiler) appendPredicate(sb *strings.Builder, args *[]interface{}, p *Predicate) error {
	if p == nil {
		return compositionf("nil predicate")
	}
	switch p.op {
	case opTrue:
		sb.WriteString("1 = 1")
		return nil
	case opEq, opNe, opGt, opGte, opLt, opLte:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(comparator(p.op))
		return c.appendValue(sb, args, p.values[0])
	case opBetween:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(" BETWEEN ")
		if err := c.appendValue(sb, args, p.values[0]); err != nil {
			return err
		}
		sb.WriteString(" AND ")
		return c.appendValue(sb, args, p.values[1])
	case opIn, opNotIn:
		return c.appendIn(sb, args, p)
	case opIsNull:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(" IS NULL")
		return nil
	case opNotNull:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(" IS NOT NULL")
		return nil
	case opLike:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(" LIKE ?")
		*args = append(*args, p.values[0])
		if p.escaped {
			sb.WriteString(" ESCAPE '" + likeEscapeChar + "'")
		}
		return nil
	case opEqCol:
		if err := c.appendIdent(sb, args, p.column); err != nil {
			return err
		}
		sb.WriteString(" = ")
		return c.appendIdent(sb, args, p.other)
	case opAnd, opOr:
		sep := ") AND ("
		if p.op == opOr {
			sep = ") OR ("
		}
		for i, child := range p.children {
			if i == 0 {
				sb.WriteString("(")
			} else {
				sb.WriteString(sep)
			}
			if err := c.appendPredicate(sb, args, child); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil
	case opNot:
		sb.WriteString("NOT (")
		if err := c.appendPredicate(sb, args, p.children[0]); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	default:
		return compositionf("unsupported predicate operator %d", p.op)
	}
}

func (c *compiler) appendIn(sb *strings.Builder, args *[]interface{}, p *Predicate) error {
	// An empty IN list matches nothing; its complement matches everything.
	if len(p.values) == 0 {
		if p.op == opIn {
			sb.WriteString("1 = 0")
		} else {
			sb.WriteString("1 = 1")
		}
		return nil
	}
	if err := c.appendIdent(sb, args, p.column); err != nil {
		return err
	}
	if p.op == opNotIn {
		sb.WriteString(" NOT IN (?)")
	} else {
		sb.WriteString(" IN (?)")
	}
	if len(p.values) == 1 {
		if sub, ok := p.values[0].(*Descriptor); ok {
			sq, err := c.subquery(sub)
			if err != nil {
				return err
			}
			*args = append(*args, sq)
			return nil
		}
	}
	*args = append(*args, bun.In(p.values))
	return nil
}

func comparator(op predicateOp) string {
	switch op {
	case opEq:
		return " = "
	case opNe:
		return " <> "
	case opGt:
		return " > "
	case opGte:
		return " >= "
	case opLt:
		return " < "
	default:
		return " <= "
	}
}

// appendExpr lets a single-column Descriptor appear as a scalar subquery
// inside a projection list.
func (d *Descriptor) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	sq, err := c.subquery(d)
	if err != nil {
		return err
	}
	sb.WriteString("(?)")
	*args = append(*args, sq)
	return nil
}

func (d *Descriptor) bindName() string { return "" }
