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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookups(t *testing.T) {
	assert.True(t, Exists(KindContainer, "role"))
	assert.False(t, Exists(KindContainer, "container"))
	assert.True(t, Exists(KindFile, "container"))
	assert.False(t, Exists("nope", "id"))

	assert.True(t, IsProtected(KindContainer, "upload_token"))
	assert.True(t, IsProtected(KindFile, FieldStorageKey))
	assert.False(t, IsProtected(KindContainer, "name"))
	assert.False(t, IsProtected(KindContainer, "missing"))

	assert.True(t, IsReadOnly(KindContainer, FieldService))
	assert.True(t, IsReadOnly(KindFile, "size"))
	assert.False(t, IsReadOnly(KindFile, "name"))
}

func TestEntityColumns(t *testing.T) {
	assert.Equal(t, "user_id", Container.Column(FieldUser))
	assert.Equal(t, "container_id", File.Column(FieldContainer))
	assert.Equal(t, "name", File.Column("name"))
	assert.Equal(t, "", File.Column("nope"))

	f, ok := File.Field(FieldContainer)
	require.True(t, ok)
	assert.Equal(t, TypeReference, f.Type)
	assert.Equal(t, KindContainer, f.Ref)
}

func TestSoftDelete(t *testing.T) {
	assert.True(t, Container.SoftDeletable())
	assert.Equal(t, FieldService, Container.SoftField)
	assert.False(t, File.SoftDeletable())
}

func TestRegistryEntity(t *testing.T) {
	e, err := Default().Entity(KindFile)
	require.NoError(t, err)
	assert.Same(t, File, e)

	_, err = Default().Entity("nope")
	assert.Error(t, err)
	assert.Equal(t, []Kind{KindContainer, KindFile, KindUser}, Default().Kinds())
}

func TestNewEntityRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		NewEntity("dup", "dup", Field{Name: "a"}, Field{Name: "a"})
	})
	assert.Panics(t, func() {
		NewEntity("soft", "soft", Field{Name: "a"}).WithSoftDelete("b")
	})
}
