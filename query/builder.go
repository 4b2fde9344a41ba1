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

// Builder accumulates conditionally contributed predicates and folds them
// into a single predicate. A nil contribution is skipped, which lets
// criteria helpers return nil for absent inputs:
//
//	b := query.NewBuilder()
//	b.And(usernameEq(c.Username))
//	b.And(ageGte(c.AgeMin))
//	pred := b.Build() // True() when nothing was contributed
//
// A Builder is not safe for concurrent use; construct one per query
// composition.
type Builder struct {
	current *Predicate
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// NewBuilderWith returns a Builder seeded with an initial predicate, for
// criteria where one restriction is mandatory.
func NewBuilderWith(p *Predicate) *Builder {
	b := &Builder{}
	return b.And(p)
}

// And conjoins p with the accumulated predicate. A nil or True p leaves
// the accumulated predicate unchanged.
func (b *Builder) And(p *Predicate) *Builder {
	if p.IsTrue() {
		return b
	}
	if b.current == nil {
		b.current = p
	} else {
		b.current = And(b.current, p)
	}
	return b
}

// Or disjoins p with the accumulated predicate. A nil p is skipped; Or on
// an empty Builder behaves like And.
func (b *Builder) Or(p *Predicate) *Builder {
	if p.IsTrue() {
		return b
	}
	if b.current == nil {
		b.current = p
	} else {
		b.current = Or(b.current, p)
	}
	return b
}

// Empty reports whether nothing has been contributed.
func (b *Builder) Empty() bool { return b.current == nil }

// Build returns the folded predicate, or True when the Builder is empty.
// Build never returns nil.
func (b *Builder) Build() *Predicate {
	if b.current == nil {
		return True()
	}
	return b.current
}
