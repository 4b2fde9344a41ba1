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
)

// Tuple is one row of a multi-column projection. Values are exposed both
// positionally and by the projected expression's name. A Tuple is built
// fresh per row and never mutated afterwards.
type Tuple struct {
	names  []string
	values []interface{}
}

// Len returns the number of columns.
func (t Tuple) Len() int { return len(t.values) }

// Index returns the value at position i.
func (t Tuple) Index(i int) interface{} { return t.values[i] }

// Value returns the value of the named column and whether it exists. The
// name is the column name or alias as projected.
func (t Tuple) Value(name string) (interface{}, bool) {
	for i, n := range t.names {
		if n == name {
			return t.values[i], true
		}
	}
	return nil, false
}

// Names returns the projected column names in order.
func (t Tuple) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Binder populates one structured record per result row. The three
// strategies (setter, field, constructor) are interchangeable: given the
// same projected expressions and values they produce equal records.
type Binder[R any] interface {
	// validate fails fast, before any request reaches the database, when
	// the target type cannot support the strategy for the given columns.
	validate(names []string) error
	bind(names []string, values []interface{}) (R, error)
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "")
}

type fieldBinder[R any] struct {
	fields map[string]int // normalized name -> field index
}

// BindFields binds projected values directly into exported struct fields
// by matching name (case and underscore insensitive). The target must be a
// struct type.
func BindFields[R any]() Binder[R] {
	var zero R
	b := fieldBinder[R]{fields: map[string]int{}}
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return b // validate reports the error
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() {
			b.fields[normalizeName(f.Name)] = i
		}
	}
	return b
}

func (b fieldBinder[R]) validate(names []string) error {
	var zero R
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return compositionf("field binding requires a struct target, got %T", zero)
	}
	for _, name := range names {
		if name == "" {
			return compositionf("name-based binding requires an alias for every anonymous projection expression")
		}
		if _, ok := b.fields[normalizeName(name)]; !ok {
			return compositionf("no field on %s matches projected column %q", t.Name(), name)
		}
	}
	return nil
}

func (b fieldBinder[R]) bind(names []string, values []interface{}) (R, error) {
	var out R
	rv := reflect.ValueOf(&out).Elem()
	for i, name := range names {
		idx, ok := b.fields[normalizeName(name)]
		if !ok {
			return out, compositionf("no field matches projected column %q", name)
		}
		fv := rv.Field(idx)
		val, err := convertValue(fv.Type(), values[i])
		if err != nil {
			return out, compositionf("column %q: %v", name, err)
		}
		fv.Set(val)
	}
	return out, nil
}

type setterBinder[R any] struct {
	setters map[string]int // normalized field name -> method index on *R
}

// BindSetters binds projected values through Set<Field> methods declared
// on *R, matching the method suffix against the projected name. The
// target must have a matching setter for every projected column.
func BindSetters[R any]() Binder[R] {
	b := setterBinder[R]{setters: map[string]int{}}
	pt := reflect.PointerTo(reflect.TypeOf((*R)(nil)).Elem())
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if strings.HasPrefix(m.Name, "Set") && m.Type.NumIn() == 2 {
			b.setters[normalizeName(strings.TrimPrefix(m.Name, "Set"))] = i
		}
	}
	return b
}

func (b setterBinder[R]) validate(names []string) error {
	var zero R
	for _, name := range names {
		if name == "" {
			return compositionf("name-based binding requires an alias for every anonymous projection expression")
		}
		if _, ok := b.setters[normalizeName(name)]; !ok {
			return compositionf("no setter on %T matches projected column %q", &zero, name)
		}
	}
	return nil
}

func (b setterBinder[R]) bind(names []string, values []interface{}) (R, error) {
	out := reflect.New(reflect.TypeOf((*R)(nil)).Elem())
	for i, name := range names {
		idx, ok := b.setters[normalizeName(name)]
		if !ok {
			var zero R
			return zero, compositionf("no setter matches projected column %q", name)
		}
		m := out.Method(idx)
		val, err := convertValue(m.Type().In(0), values[i])
		if err != nil {
			var zero R
			return zero, compositionf("column %q: %v", name, err)
		}
		m.Call([]reflect.Value{val})
	}
	return out.Elem().Interface().(R), nil
}

type constructorBinder[R any] struct {
	fn  reflect.Value
	err error
}

// BindConstructor binds projected values positionally through a single
// constructor call: fn must be a non-variadic func returning exactly R,
// with one parameter per projected expression. No aliasing is required.
func BindConstructor[R any](fn interface{}) Binder[R] {
	b := constructorBinder[R]{}
	if fn == nil {
		b.err = compositionf("constructor binding requires a constructor func")
		return b
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	rt := reflect.TypeOf((*R)(nil)).Elem()
	switch {
	case t.Kind() != reflect.Func:
		b.err = compositionf("constructor must be a func, got %s", t)
	case t.IsVariadic():
		b.err = compositionf("constructor must not be variadic")
	case t.NumOut() != 1 || t.Out(0) != rt:
		b.err = compositionf("constructor must return exactly one %s", rt)
	default:
		b.fn = v
	}
	return b
}

func (b constructorBinder[R]) validate(names []string) error {
	if b.err != nil {
		return b.err
	}
	if got := b.fn.Type().NumIn(); got != len(names) {
		return compositionf("constructor arity %d does not match %d projected expressions", got, len(names))
	}
	return nil
}

func (b constructorBinder[R]) bind(names []string, values []interface{}) (R, error) {
	var zero R
	if b.err != nil {
		return zero, b.err
	}
	t := b.fn.Type()
	in := make([]reflect.Value, len(values))
	for i, v := range values {
		val, err := convertValue(t.In(i), v)
		if err != nil {
			return zero, compositionf("constructor argument %d: %v", i, err)
		}
		in[i] = val
	}
	return b.fn.Call(in)[0].Interface().(R), nil
}

// convertValue coerces a driver-supplied value into the target type.
// Drivers hand back a narrow set of types (int64, float64, string,
// []byte, time.Time, nil), so only safe widenings are performed.
func convertValue(t reflect.Type, v interface{}) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.Ptr {
		elem, err := convertValue(t.Elem(), v)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}
	if b, ok := v.([]byte); ok && t.Kind() == reflect.String {
		return reflect.ValueOf(string(b)).Convert(t), nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, compositionf("cannot bind %T into %s", v, t)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
