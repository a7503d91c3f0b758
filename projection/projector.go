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

package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tomoncle/repohub/query"
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

// Lookup resolves referenced ids to their public representation.
type Lookup interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]types.JsonObject, error)
}

// Enrichment replaces a reference field of data with a top level relation
// list holding the resolved object.
type Enrichment struct {
	Field  string
	Lookup Lookup
}

// Spec is the projection of one list call. It is never mutated after
// NewSpec returns.
type Spec struct {
	entity      *schema.Entity
	visible     []string
	enrichments []Enrichment
}

// NewSpec derives a projection from a query plan. Enrichments whose field
// is not visible are dropped.
func NewSpec(plan *query.Plan, enrichments ...Enrichment) *Spec {
	s := &Spec{entity: plan.Entity(), visible: plan.Visible()}
	for _, e := range enrichments {
		if plan.IsVisible(e.Field) {
			s.enrichments = append(s.enrichments, e)
		}
	}
	return s
}

// Record is one serialized row: {"id": ..., "data": {...}, <relation>: [...]}.
type Record struct {
	ID        int64
	Data      types.JsonObject
	Relations map[string][]types.JsonObject
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 2+len(r.Relations))
	for name, list := range r.Relations {
		if list == nil {
			list = []types.JsonObject{}
		}
		out[name] = list
	}
	data := r.Data
	if data == nil {
		data = types.JsonObject{}
	}
	out["id"] = r.ID
	out["data"] = data
	return json.Marshal(out)
}

// Project converts rows into records holding only the visible fields.
// Every enrichment resolves the references of the whole page with one
// lookup.
func Project[T any](ctx context.Context, spec *Spec, rows []*T) ([]*Record, error) {
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		fields, err := toObject(row)
		if err != nil {
			return nil, err
		}
		id, ok := types.AsInt64(fields[schema.FieldID])
		if !ok {
			return nil, fmt.Errorf("projection: row %T has no integer id", row)
		}
		data := make(types.JsonObject, len(spec.visible))
		for _, name := range spec.visible {
			if name == schema.FieldID || (spec.entity != nil && spec.entity.IsProtected(name)) {
				continue
			}
			if v, ok := fields[name]; ok {
				data[name] = v
			}
		}
		records = append(records, &Record{ID: id, Data: data})
	}

	for _, e := range spec.enrichments {
		if err := enrich(ctx, e, records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func enrich(ctx context.Context, e Enrichment, records []*Record) error {
	refs := make(map[*Record]int64, len(records))
	seen := map[int64]struct{}{}
	var ids []int64
	for _, r := range records {
		raw, ok := r.Data[e.Field]
		if !ok {
			continue
		}
		delete(r.Data, e.Field)
		if r.Relations == nil {
			r.Relations = map[string][]types.JsonObject{}
		}
		r.Relations[e.Field] = []types.JsonObject{}
		id, ok := types.AsInt64(raw)
		if !ok {
			continue
		}
		refs[r] = id
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	resolved, err := e.Lookup.Resolve(ctx, ids)
	if err != nil {
		return fmt.Errorf("projection: resolve %s: %w", e.Field, err)
	}
	for r, id := range refs {
		if obj, ok := resolved[id]; ok {
			r.Relations[e.Field] = []types.JsonObject{obj}
		}
	}
	return nil
}

// toObject serializes a model through its json tags, which carry the schema
// field names and omit protected fields.
func toObject(v interface{}) (types.JsonObject, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var obj types.JsonObject
	if err := d.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}
