/*
 * Copyright 2025 tomoncle.
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
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = newModelRegistry()

// SQLModel is a Bun model created by migration 001. Models are created in
// ascending Priority so referenced tables exist first.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models keyed by their Go type.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	models map[reflect.Type]SQLModel
	mutex  sync.RWMutex
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{models: make(map[reflect.Type]SQLModel)}
}

// Register adds model, replacing an earlier registration of the same type.
func (r *modelRegistry) Register(model SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models[reflect.TypeOf(model.Instance())] = model
}

func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, 0, len(r.models))
	for _, m := range r.models {
		result = append(result, m)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority() != result[j].Priority() {
			return result[i].Priority() < result[j].Priority()
		}
		return reflect.TypeOf(result[i].Instance()).String() < reflect.TypeOf(result[j].Instance()).String()
	})
	return result
}

type ModelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a nil model pointer and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &ModelAdapter{instance: instance, priority: priority}
}

func (a *ModelAdapter) Instance() interface{} { return a.instance }

func (a *ModelAdapter) Priority() int { return a.priority }

// GetRegisteredModels returns all registered models by ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) {
	defaultRegistry.Register(model)
}

func RegisteredModelInstances() []interface{} {
	models := GetRegisteredModels()
	instances := make([]interface{}, len(models))
	for i, model := range models {
		instances[i] = model.Instance()
	}
	return instances
}
