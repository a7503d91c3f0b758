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

package query

import (
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

// Filter is a case-insensitive substring match on one column.
type Filter struct {
	Field  string
	Column string
	Token  string
}

// Sort is one ordering key.
type Sort struct {
	Field  string
	Column string
	Desc   bool
}

// Plan is the validated form of a list request. It is immutable once
// returned by Parse; accessors hand out copies.
type Plan struct {
	entity  *schema.Entity
	filters []Filter
	sorts   []Sort
	visible []string
	window  types.Window
}

// NewPlan builds a plan directly, bypassing request parsing. id is always
// visible.
func NewPlan(entity *schema.Entity, filters []Filter, sorts []Sort, visible []string, window types.Window) *Plan {
	p := &Plan{entity: entity, window: window}
	p.filters = append(p.filters, filters...)
	p.sorts = append(p.sorts, sorts...)
	p.visible = []string{schema.FieldID}
	for _, f := range visible {
		if !contains(p.visible, f) {
			p.visible = append(p.visible, f)
		}
	}
	return p
}

func (p *Plan) Entity() *schema.Entity { return p.entity }

// Filters returns the filters in the order their fields were first named.
func (p *Plan) Filters() []Filter {
	out := make([]Filter, len(p.filters))
	copy(out, p.filters)
	return out
}

// Sorts returns the sort keys in descriptor order.
func (p *Plan) Sorts() []Sort {
	out := make([]Sort, len(p.sorts))
	copy(out, p.sorts)
	return out
}

// Visible returns the visible field names, id first.
func (p *Plan) Visible() []string {
	out := make([]string, len(p.visible))
	copy(out, p.visible)
	return out
}

// IsVisible reports whether field is part of the projection.
func (p *Plan) IsVisible(field string) bool { return contains(p.visible, field) }

func (p *Plan) Window() types.Window { return p.window }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
