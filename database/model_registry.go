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

package database

import (
	"sort"
	"sync"
)

// SQLModel is a model registered for table creation and relation setup.
// Instance returns a struct pointer compatible with Bun; Priority orders
// creation so referenced tables exist before their referrers (lower runs
// first, ties keep registration order).
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

type modelRegistry struct {
	mu      sync.RWMutex
	entries []SQLModel
}

var defaultRegistry modelRegistry

func (r *modelRegistry) register(m SQLModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, m)
}

func (r *modelRegistry) sorted() []SQLModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SQLModel, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() < out[j].Priority()
	})
	return out
}

// ModelAdapter is the plain SQLModel implementation for struct models
// that carry no registration logic of their own.
type ModelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &ModelAdapter{instance: instance, priority: priority}
}

// Instance returns the underlying struct used for table creation.
func (a *ModelAdapter) Instance() interface{} { return a.instance }

// Priority returns the model's ordering value; lower values run earlier.
func (a *ModelAdapter) Priority() int { return a.priority }

// RegisteredModel adds a model to the default registry. Models must be
// registered before InitDB so migrations and relation resolution see them.
func RegisteredModel(model SQLModel) {
	defaultRegistry.register(model)
}

// GetRegisteredModels returns all registered models sorted by ascending
// priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.sorted()
}

// RegisteredModelInstances returns the struct instances of all registered
// models in priority order, ready to hand to bun.DB.RegisterModel.
func RegisteredModelInstances() []interface{} {
	models := GetRegisteredModels()
	instances := make([]interface{}, len(models))
	for i, m := range models {
		instances[i] = m.Instance()
	}
	return instances
}
