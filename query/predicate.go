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

import "strings"

type predicateOp int

const (
	opTrue predicateOp = iota
	opEq
	opNe
	opGt
	opGte
	opLt
	opLte
	opBetween
	opIn
	opNotIn
	opIsNull
	opNotNull
	opLike
	opEqCol
	opAnd
	opOr
	opNot
)

// likeEscapeChar escapes wildcards in Contains/StartsWith literals. A
// printable non-wildcard character is used so the same ESCAPE clause works
// across mysql, postgres, and sqlite string literal rules.
const likeEscapeChar = "!"

var likeEscaper = strings.NewReplacer(
	likeEscapeChar, likeEscapeChar+likeEscapeChar,
	"%", likeEscapeChar+"%",
	"_", likeEscapeChar+"_",
)

// Predicate is an immutable boolean expression tree over entity columns.
// Leaves bind one column to an operator and values; internal nodes combine
// children with AND/OR/NOT. Values may be literals or a *Descriptor, which
// is embedded as a scalar subquery. The zero restriction is True.
type Predicate struct {
	op       predicateOp
	column   string
	other    string // right-hand column for column comparisons
	values   []interface{}
	escaped  bool // LIKE pattern carries the ESCAPE clause
	children []*Predicate
}

// True returns the identity predicate: no restriction. It is what an empty
// Builder produces, so downstream code never special-cases emptiness.
func True() *Predicate { return &Predicate{op: opTrue} }

// IsTrue reports whether the predicate imposes no restriction.
func (p *Predicate) IsTrue() bool { return p == nil || p.op == opTrue }

func leaf(op predicateOp, column string, values ...interface{}) *Predicate {
	return &Predicate{op: op, column: column, values: values}
}

// Eq matches rows whose column equals value.
func Eq(column string, value interface{}) *Predicate { return leaf(opEq, column, value) }

// Ne matches rows whose column differs from value.
func Ne(column string, value interface{}) *Predicate { return leaf(opNe, column, value) }

// Gt matches rows whose column is strictly greater than value.
func Gt(column string, value interface{}) *Predicate { return leaf(opGt, column, value) }

// Gte matches rows whose column is greater than or equal to value.
func Gte(column string, value interface{}) *Predicate { return leaf(opGte, column, value) }

// Lt matches rows whose column is strictly less than value.
func Lt(column string, value interface{}) *Predicate { return leaf(opLt, column, value) }

// Lte matches rows whose column is less than or equal to value.
func Lte(column string, value interface{}) *Predicate { return leaf(opLte, column, value) }

// Between matches rows whose column lies in [lo, hi], inclusive on both ends.
func Between(column string, lo, hi interface{}) *Predicate {
	return leaf(opBetween, column, lo, hi)
}

// In matches rows whose column equals one of the given values. A single
// *Descriptor value is embedded as a subquery instead of a literal list.
func In(column string, values ...interface{}) *Predicate {
	return leaf(opIn, column, values...)
}

// NotIn is the complement of In.
func NotIn(column string, values ...interface{}) *Predicate {
	return leaf(opNotIn, column, values...)
}

// IsNull matches rows whose column is NULL.
func IsNull(column string) *Predicate { return leaf(opIsNull, column) }

// NotNull matches rows whose column is not NULL.
func NotNull(column string) *Predicate { return leaf(opNotNull, column) }

// Contains matches rows whose column contains the literal substring s.
// Wildcard characters in s are escaped; s is matched verbatim.
func Contains(column, s string) *Predicate {
	p := leaf(opLike, column, "%"+likeEscaper.Replace(s)+"%")
	p.escaped = true
	return p
}

// StartsWith matches rows whose column starts with the literal prefix s.
// Wildcard characters in s are escaped; s is matched verbatim.
func StartsWith(column, s string) *Predicate {
	p := leaf(opLike, column, likeEscaper.Replace(s)+"%")
	p.escaped = true
	return p
}

// Like matches rows against a raw LIKE pattern. The pattern is passed
// through verbatim with no escaping; the caller owns wildcard handling.
func Like(column, pattern string) *Predicate { return leaf(opLike, column, pattern) }

// EqCol compares two columns, typically across a join ("m.username",
// "t.name"). Columns may be alias-qualified.
func EqCol(column, other string) *Predicate {
	return &Predicate{op: opEqCol, column: column, other: other}
}

// And returns the conjunction of the given predicates. Nil and True
// operands are dropped; an empty conjunction is True.
func And(ps ...*Predicate) *Predicate { return combine(opAnd, ps) }

// Or returns the disjunction of the given predicates. Nil operands are
// dropped; an empty disjunction is True. A True operand makes the whole
// disjunction True: "no restriction" absorbs every alternative.
func Or(ps ...*Predicate) *Predicate { return combine(opOr, ps) }

// Not negates the given predicate. Not(True()) stays True: negating "no
// restriction" is still no restriction, not an empty set.
func Not(p *Predicate) *Predicate {
	if p.IsTrue() {
		return True()
	}
	return &Predicate{op: opNot, children: []*Predicate{p}}
}

func combine(op predicateOp, ps []*Predicate) *Predicate {
	kept := make([]*Predicate, 0, len(ps))
	for _, p := range ps {
		if p == nil {
			continue
		}
		if p.IsTrue() {
			// True is the identity of AND but the annihilator of OR.
			if op == opOr {
				return True()
			}
			continue
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return True()
	case 1:
		return kept[0]
	}
	return &Predicate{op: op, children: kept}
}

// AndAll folds a sequence of optional predicates with AND. Nil entries
// denote absent criteria; with all entries absent the result is True.
func AndAll(ps ...*Predicate) *Predicate { return And(ps...) }
