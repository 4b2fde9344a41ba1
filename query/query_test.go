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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruePredicateIsIdentity(t *testing.T) {
	assert.True(t, True().IsTrue())
	assert.True(t, (*Predicate)(nil).IsTrue())

	assert.True(t, And().IsTrue())
	assert.True(t, And(nil, True()).IsTrue())
	assert.True(t, Or(True(), nil).IsTrue())
	assert.True(t, Not(True()).IsTrue())
	assert.True(t, Not(nil).IsTrue())
}

func TestCombineDropsNeutralOperands(t *testing.T) {
	p := Eq("name", "x")

	// one real operand collapses to itself
	assert.Equal(t, p, And(nil, True(), p))
	assert.Equal(t, p, Or(p, nil))

	both := And(p, Gt("age", 1))
	assert.False(t, both.IsTrue())
	assert.Len(t, both.children, 2)
}

func TestOrAbsorbsTrue(t *testing.T) {
	p := Eq("name", "x")

	// True is the annihilator of OR: any alternative to "no restriction"
	// is still no restriction.
	assert.True(t, Or(p, True()).IsTrue())
	assert.True(t, Or(True(), p).IsTrue())
	assert.True(t, Or(p, Gt("age", 1), True()).IsTrue())

	// nil operands are merely dropped
	assert.Equal(t, p, Or(p, nil))
	assert.False(t, Or(p, Gt("age", 1)).IsTrue())
}

func TestBuilderSkipsEmptyContributions(t *testing.T) {
	b := NewBuilder()
	assert.True(t, b.Empty())
	assert.True(t, b.Build().IsTrue())

	b.And(nil).And(True()).Or(nil)
	assert.True(t, b.Empty())

	b.And(Eq("name", "x"))
	assert.False(t, b.Empty())
	assert.Equal(t, "name", b.Build().column)

	b.And(Gt("age", 1))
	built := b.Build()
	require.Equal(t, opAnd, built.op)
	assert.Len(t, built.children, 2)
}

func TestBuilderSeededWithPredicate(t *testing.T) {
	seed := Eq("name", "x")
	b := NewBuilderWith(seed)
	assert.False(t, b.Empty())
	assert.Equal(t, seed, b.Build())

	assert.True(t, NewBuilderWith(nil).Empty())
	assert.True(t, NewBuilderWith(True()).Empty())
}

func TestContainsEscapesLikeMetacharacters(t *testing.T) {
	p := Contains("name", "50%_a!b")
	require.Len(t, p.values, 1)
	assert.Equal(t, "%50!%!_a!!b%", p.values[0])
	assert.True(t, p.escaped)

	s := StartsWith("name", "a_b")
	require.Len(t, s.values, 1)
	assert.Equal(t, "a!_b%", s.values[0])

	raw := Like("name", "a%b")
	require.Len(t, raw.values, 1)
	assert.Equal(t, "a%b", raw.values[0])
	assert.False(t, raw.escaped)
}

func TestDescriptorRecordsCompositionErrors(t *testing.T) {
	assert.Error(t, From((*struct{})(nil)).Offset(-1).Err())
	assert.Error(t, From((*struct{})(nil)).Limit(-1).Err())
	assert.Error(t, From((*struct{})(nil)).On(Eq("a", 1)).Err())
	assert.Error(t, From((*struct{})(nil)).Fetch().Err())
	assert.Error(t, From((*struct{})(nil)).Join("").Err())
	assert.Error(t, From((*struct{})(nil)).JoinModel(InnerJoin, nil).Err())

	// the first error wins and later calls keep it
	d := From((*struct{})(nil)).Offset(-1)
	first := d.Err()
	d.Limit(-2)
	assert.Equal(t, first, d.Err())
}

func TestFetchOnlyAppliesToRelationJoins(t *testing.T) {
	d := From((*struct{})(nil)).JoinModel(LeftJoin, (*struct{ ID int })(nil)).Fetch()
	require.Error(t, d.Err())
	assert.ErrorIs(t, d.Err(), ErrComposition)
}

func TestFetchRejectsNonLeftJoinKinds(t *testing.T) {
	inner := From((*struct{})(nil)).Join("Team").Fetch()
	require.Error(t, inner.Err())
	assert.ErrorIs(t, inner.Err(), ErrComposition)

	right := From((*struct{})(nil)).RightJoin("Team").Fetch()
	require.Error(t, right.Err())

	assert.NoError(t, From((*struct{})(nil)).LeftJoin("Team").Fetch().Err())
}

func TestWhereConjoinsAcrossCalls(t *testing.T) {
	d := From((*struct{})(nil)).
		Where(Eq("a", 1)).
		Where(True()).
		Where(Gt("b", 2))
	require.NotNil(t, d.where)
	require.Equal(t, opAnd, d.where.op)
	assert.Len(t, d.where.children, 2)
}

func TestTupleAccessors(t *testing.T) {
	tp := Tuple{
		names:  []string{"name", "total"},
		values: []interface{}{"teamA", int64(30)},
	}
	assert.Equal(t, 2, tp.Len())
	assert.Equal(t, "teamA", tp.Index(0))

	v, ok := tp.Value("total")
	require.True(t, ok)
	assert.EqualValues(t, 30, v)

	_, ok = tp.Value("missing")
	assert.False(t, ok)

	names := tp.Names()
	names[0] = "mutated"
	assert.Equal(t, "name", tp.names[0])
}

type payRow struct {
	Name   string
	Salary int
}

func TestFieldBinderMatchesLooseNames(t *testing.T) {
	b := BindFields[payRow]()
	require.NoError(t, b.validate([]string{"name", "salary"}))
	require.NoError(t, b.validate([]string{"NAME", "sa_lary"}))
	assert.Error(t, b.validate([]string{"name", "bonus"}))
	assert.Error(t, b.validate([]string{""}))

	row, err := b.bind([]string{"name", "salary"}, []interface{}{[]byte("ann"), int64(70)})
	require.NoError(t, err)
	assert.Equal(t, payRow{Name: "ann", Salary: 70}, row)

	// nil database values become zero values
	row, err = b.bind([]string{"name", "salary"}, []interface{}{nil, nil})
	require.NoError(t, err)
	assert.Equal(t, payRow{}, row)
}

type payRecord struct {
	name   string
	salary int
}

func (r *payRecord) SetName(v string)   { r.name = v }
func (r *payRecord) SetSalary(v int)    { r.salary = v }
func (r *payRecord) Ignore(a, b string) {}

func TestSetterBinderUsesSetMethods(t *testing.T) {
	b := BindSetters[payRecord]()
	require.NoError(t, b.validate([]string{"name", "salary"}))
	assert.Error(t, b.validate([]string{"bonus"}))

	rec, err := b.bind([]string{"salary", "name"}, []interface{}{int64(70), "ann"})
	require.NoError(t, err)
	assert.Equal(t, payRecord{name: "ann", salary: 70}, rec)
}

func TestConstructorBinderIsPositional(t *testing.T) {
	b := BindConstructor[payRow](func(name string, salary int) payRow {
		return payRow{Name: name, Salary: salary}
	})
	require.NoError(t, b.validate([]string{"anything", "goes"}))
	assert.Error(t, b.validate([]string{"one"}))

	row, err := b.bind([]string{"", ""}, []interface{}{"ann", int64(70)})
	require.NoError(t, err)
	assert.Equal(t, payRow{Name: "ann", Salary: 70}, row)
}

func TestConstructorBinderRejectsBadConstructors(t *testing.T) {
	assert.Error(t, BindConstructor[payRow](nil).validate(nil))
	assert.Error(t, BindConstructor[payRow]("not a func").validate(nil))
	assert.Error(t, BindConstructor[payRow](func(vs ...string) payRow { return payRow{} }).validate(nil))
	assert.Error(t, BindConstructor[payRow](func() (payRow, error) { return payRow{}, nil }).validate(nil))
}

func TestConvertValueWidenings(t *testing.T) {
	v, err := convertValue(reflect.TypeOf(0), int64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, v.Interface())

	v, err = convertValue(reflect.TypeOf((*int)(nil)), int64(7))
	require.NoError(t, err)
	require.NotNil(t, v.Interface())
	assert.Equal(t, 7, *v.Interface().(*int))

	v, err = convertValue(reflect.TypeOf(""), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Interface())

	_, err = convertValue(reflect.TypeOf(0), "seven")
	assert.Error(t, err)
}
