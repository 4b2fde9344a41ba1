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

// Expr is a projected or sortable expression: a column reference, an
// aggregate, a conditional (CASE) expression, a raw fragment, or a scalar
// subquery (*Descriptor).
type Expr interface {
	appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error
	// bindName is the name the expression exposes to name-based projection
	// binding: the alias when set, otherwise the bare column name. Empty
	// for anonymous expressions, which then require an alias.
	bindName() string
}

type colExpr struct{ column string }

// Col references a column, optionally alias-qualified ("t.name").
func Col(column string) Expr { return colExpr{column: column} }

func (e colExpr) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	return c.appendIdent(sb, args, e.column)
}

func (e colExpr) bindName() string {
	if i := strings.LastIndexByte(e.column, '.'); i >= 0 {
		return e.column[i+1:]
	}
	return e.column
}

type asExpr struct {
	expr  Expr
	alias string
}

// As attaches an alias to an expression. Aliases resolve name mismatches
// for name-based projection binding and label subquery columns.
func As(expr Expr, alias string) Expr { return asExpr{expr: expr, alias: alias} }

// ColAs is shorthand for As(Col(column), alias).
func ColAs(column, alias string) Expr { return asExpr{expr: Col(column), alias: alias} }

func (e asExpr) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	if err := e.expr.appendExpr(c, sb, args); err != nil {
		return err
	}
	sb.WriteString(" AS ?")
	*args = append(*args, identArg(e.alias))
	return nil
}

func (e asExpr) bindName() string { return e.alias }

type aggExpr struct {
	fn     string
	column string // empty means count(*)
}

// Count counts all rows.
func Count() Expr { return aggExpr{fn: "count"} }

// CountCol counts non-NULL values of a column.
func CountCol(column string) Expr { return aggExpr{fn: "count", column: column} }

// Sum aggregates the sum of a numeric column.
func Sum(column string) Expr { return aggExpr{fn: "sum", column: column} }

// Avg aggregates the average of a numeric column.
func Avg(column string) Expr { return aggExpr{fn: "avg", column: column} }

// Max aggregates the maximum of a column.
func Max(column string) Expr { return aggExpr{fn: "max", column: column} }

// Min aggregates the minimum of a column.
func Min(column string) Expr { return aggExpr{fn: "min", column: column} }

func (e aggExpr) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	sb.WriteString(e.fn)
	sb.WriteByte('(')
	if e.column == "" {
		sb.WriteByte('*')
	} else if err := c.appendIdent(sb, args, e.column); err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}

func (e aggExpr) bindName() string { return "" }

type rawExpr struct {
	sql  string
	args []interface{}
}

// Raw embeds a verbatim SQL fragment with Bun-style placeholders. It is an
// escape hatch; the fragment is not validated against the schema.
func Raw(sql string, args ...interface{}) Expr { return rawExpr{sql: sql, args: args} }

func (e rawExpr) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	sb.WriteString(e.sql)
	*args = append(*args, e.args...)
	return nil
}

func (e rawExpr) bindName() string { return "" }

type caseBranch struct {
	when *Predicate
	then interface{}
}

// CaseExpr is an ordered list of (condition, result) branches with a
// mandatory default, evaluated top to bottom; the first matching condition
// wins. It is a pure value computation and may also serve as a sort key.
type CaseExpr struct {
	branches  []caseBranch
	otherwise interface{}
	hasElse   bool
}

// Case starts a conditional expression.
func Case() *CaseExpr { return &CaseExpr{} }

// When appends a branch. Branch order is evaluation order.
func (e *CaseExpr) When(cond *Predicate, result interface{}) *CaseExpr {
	e.branches = append(e.branches, caseBranch{when: cond, then: result})
	return e
}

// Else sets the mandatory default branch.
func (e *CaseExpr) Else(result interface{}) *CaseExpr {
	e.otherwise = result
	e.hasElse = true
	return e
}

func (e *CaseExpr) appendExpr(c *compiler, sb *strings.Builder, args *[]interface{}) error {
	if len(e.branches) == 0 {
		return compositionf("case expression has no branches")
	}
	if !e.hasElse {
		return compositionf("case expression is missing its default branch")
	}
	sb.WriteString("CASE")
	for _, br := range e.branches {
		if br.when.IsTrue() {
			return compositionf("case branch condition must restrict")
		}
		sb.WriteString(" WHEN ")
		if err := c.appendPredicate(sb, args, br.when); err != nil {
			return err
		}
		sb.WriteString(" THEN ?")
		*args = append(*args, br.then)
	}
	sb.WriteString(" ELSE ? END")
	*args = append(*args, e.otherwise)
	return nil
}

func (e *CaseExpr) bindName() string { return "" }
