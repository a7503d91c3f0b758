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

// Field names shared with the models package.
const (
	FieldID          = "id"
	FieldUser        = "user"
	FieldService     = "service"
	FieldContainer   = "container"
	FieldStorageKey  = "storage_key"
	FieldDateCreated = "date_created"
	FieldDateUpdated = "date_updated"
)

var (
	User = NewEntity(KindUser, "users",
		Field{Name: FieldID, Type: TypeInt, ReadOnly: true},
		Field{Name: "username", Type: TypeString},
		Field{Name: "email", Type: TypeString},
		Field{Name: "password", Type: TypeString, Protected: true},
	)

	Container = NewEntity(KindContainer, "repo_containers",
		Field{Name: FieldID, Type: TypeInt, ReadOnly: true},
		Field{Name: FieldUser, Column: "user_id", Type: TypeReference, Ref: KindUser},
		Field{Name: "role", Type: TypeInt},
		Field{Name: "name", Type: TypeString},
		Field{Name: "description", Type: TypeString},
		Field{Name: FieldService, Type: TypeInt, ReadOnly: true},
		Field{Name: "upload_token", Type: TypeString, Protected: true},
		Field{Name: FieldDateCreated, Type: TypeTime, ReadOnly: true},
		Field{Name: FieldDateUpdated, Type: TypeTime, ReadOnly: true},
	).WithSoftDelete(FieldService)

	File = NewEntity(KindFile, "repo_files",
		Field{Name: FieldID, Type: TypeInt, ReadOnly: true},
		Field{Name: FieldContainer, Column: "container_id", Type: TypeReference, Ref: KindContainer},
		Field{Name: "name", Type: TypeString},
		Field{Name: "description", Type: TypeString},
		Field{Name: "mime_type", Type: TypeString, ReadOnly: true},
		Field{Name: "size", Type: TypeInt, ReadOnly: true},
		Field{Name: FieldStorageKey, Type: TypeString, Protected: true},
		Field{Name: FieldDateCreated, Type: TypeTime, ReadOnly: true},
		Field{Name: FieldDateUpdated, Type: TypeTime, ReadOnly: true},
	)
)

var defaultRegistry = NewRegistry(User, Container, File)

// Default returns the registry of all repo entities.
func Default() *Registry { return defaultRegistry }

func Exists(kind Kind, name string) bool { return defaultRegistry.Exists(kind, name) }

func IsProtected(kind Kind, name string) bool { return defaultRegistry.IsProtected(kind, name) }

func IsReadOnly(kind Kind, name string) bool { return defaultRegistry.IsReadOnly(kind, name) }
