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

package schema

import (
	"fmt"
	"sort"
)

// Kind identifies an entity type.
type Kind string

const (
	KindUser      Kind = "user"
	KindContainer Kind = "container"
	KindFile      Kind = "file"
)

// FieldType is the declared value type of a field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeReference
	TypeTime
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeReference:
		return "reference"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Field describes one named field of an entity.
type Field struct {
	Name      string
	Column    string
	Type      FieldType
	Ref       Kind // target kind of a TypeReference field
	Protected bool // never read, filtered or written
	ReadOnly  bool // readable, never written by clients
}

// Entity is the static schema of one entity kind.
type Entity struct {
	Kind      Kind
	Table     string
	SoftField string // status column; rows with value 0 are deleted
	fields    []Field
	index     map[string]int
}

// NewEntity builds an Entity. Field names must be unique.
func NewEntity(kind Kind, table string, fields ...Field) *Entity {
	e := &Entity{Kind: kind, Table: table, fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := e.index[f.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate field %q on %s", f.Name, kind))
		}
		if f.Column == "" {
			e.fields[i].Column = f.Name
		}
		e.index[f.Name] = i
	}
	return e
}

// WithSoftDelete marks field as the soft-delete status field.
func (e *Entity) WithSoftDelete(field string) *Entity {
	if _, ok := e.index[field]; !ok {
		panic(fmt.Sprintf("schema: soft delete field %q not declared on %s", field, e.Kind))
	}
	e.SoftField = field
	return e
}

func (e *Entity) Exists(name string) bool {
	_, ok := e.index[name]
	return ok
}

func (e *Entity) IsProtected(name string) bool {
	f, ok := e.Field(name)
	return ok && f.Protected
}

func (e *Entity) IsReadOnly(name string) bool {
	f, ok := e.Field(name)
	return ok && f.ReadOnly
}

// Field returns the named field.
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// Fields returns the declared fields in declaration order.
func (e *Entity) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Column returns the column of a field, or "" for unknown fields.
func (e *Entity) Column(name string) string {
	f, ok := e.Field(name)
	if !ok {
		return ""
	}
	return f.Column
}

// SoftDeletable reports whether the entity is deleted by status.
func (e *Entity) SoftDeletable() bool { return e.SoftField != "" }

// Registry answers field questions for every known entity kind.
type Registry struct {
	entities map[Kind]*Entity
}

// NewRegistry returns a registry over the given entities.
func NewRegistry(entities ...*Entity) *Registry {
	r := &Registry{entities: make(map[Kind]*Entity, len(entities))}
	for _, e := range entities {
		r.entities[e.Kind] = e
	}
	return r
}

// Entity returns the schema of kind.
func (r *Registry) Entity(kind Kind) (*Entity, error) {
	e, ok := r.entities[kind]
	if !ok {
		return nil, fmt.Errorf("schema: unknown entity kind %q", kind)
	}
	return e, nil
}

// Kinds lists the registered kinds in a stable order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.entities))
	for k := range r.entities {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Exists(kind Kind, name string) bool {
	e, ok := r.entities[kind]
	return ok && e.Exists(name)
}

func (r *Registry) IsProtected(kind Kind, name string) bool {
	e, ok := r.entities[kind]
	return ok && e.IsProtected(name)
}

func (r *Registry) IsReadOnly(kind Kind, name string) bool {
	e, ok := r.entities[kind]
	return ok && e.IsReadOnly(name)
}
