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

// modelType resolves a Bun model value like (*Member)(nil) to its struct
// type.
func modelType(model interface{}) (reflect.Type, error) {
	if model == nil {
		return nil, compositionf("query source model is nil")
	}
	t := reflect.TypeOf(model)
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, compositionf("query source must be a pointer to a struct, got %T", model)
	}
	return t.Elem(), nil
}

// relJoinPairs parses the join column pairs from a Bun relation tag, e.g.
// `bun:"rel:belongs-to,join:team_id=id"`. Each pair is (base column,
// joined column).
func relJoinPairs(f reflect.StructField) (pairs [][2]string, ok bool) {
	tag := f.Tag.Get("bun")
	if tag == "" {
		return nil, false
	}
	hasRel := false
	for _, part := range strings.Split(tag, ",") {
		switch {
		case strings.HasPrefix(part, "rel:"):
			hasRel = true
		case strings.HasPrefix(part, "join:"):
			kv := strings.SplitN(strings.TrimPrefix(part, "join:"), "=", 2)
			if len(kv) == 2 {
				pairs = append(pairs, [2]string{kv[0], kv[1]})
			}
		}
	}
	if !hasRel || len(pairs) == 0 {
		return nil, false
	}
	return pairs, true
}

// relTargetType returns the struct type a relation field points at:
// *Team -> Team, []*Member -> Member.
func relTargetType(f reflect.StructField) (reflect.Type, bool) {
	t := f.Type
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return t, true
}

// Loaded reports whether the named relation of an entity was materialized,
// typically by a fetch join. A has-one/belongs-to relation is loaded when
// its pointer field is non-nil; a has-many relation when its slice is
// non-nil. Loaded returns false for unknown fields and fields that are not
// declared relations.
func Loaded(entity interface{}, relation string) bool {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return false
	}
	f, ok := v.Type().FieldByName(relation)
	if !ok {
		return false
	}
	if _, ok := relJoinPairs(f); !ok {
		return false
	}
	fv := v.FieldByIndex(f.Index)
	switch fv.Kind() {
	case reflect.Ptr, reflect.Slice:
		return !fv.IsNil()
	default:
		return false
	}
}
