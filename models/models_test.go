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
package models

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func TestContainerValidate(t *testing.T) {
	neg := int64(-1)
	cases := map[string]*RepoContainer{
		"missing name":     {},
		"long name":        {Name: strings.Repeat("x", 129)},
		"long description": {Name: "a", Description: strings.Repeat("d", 1025)},
		"negative role":    {Name: "a", Role: -1},
		"bad user":         {Name: "a", UserID: &neg},
	}
	for name, c := range cases {
		err := c.Validate()
		assert.True(t, errors.Is(err, ErrInvalid), name)
	}
	assert.NoError(t, (&RepoContainer{Name: strings.Repeat("é", 128)}).Validate())
}

func TestFileValidate(t *testing.T) {
	assert.ErrorIs(t, (&RepoFile{Name: "a"}).Validate(), ErrInvalid)
	assert.ErrorIs(t, (&RepoFile{ContainerID: 1}).Validate(), ErrInvalid)
	assert.NoError(t, (&RepoFile{ContainerID: 1, Name: "a"}).Validate())
}

func TestContainerInsertDefaults(t *testing.T) {
	c := &RepoContainer{Name: "a"}
	assert.NoError(t, c.BeforeAppendModel(context.Background(), &bun.InsertQuery{}))
	assert.Equal(t, int64(1), c.Service)
	assert.NotEmpty(t, c.UploadToken)
	assert.False(t, c.DateCreated.IsZero())
	assert.Equal(t, c.DateCreated, c.DateUpdated)

	created := c.DateCreated
	token := c.UploadToken
	assert.NoError(t, c.BeforeAppendModel(context.Background(), &bun.UpdateQuery{}))
	assert.Equal(t, created, c.DateCreated)
	assert.Equal(t, token, c.UploadToken)
	assert.False(t, c.DateUpdated.Before(created))
}

func TestFileAttachBlob(t *testing.T) {
	f := &RepoFile{ContainerID: 9}
	f.AttachBlob("containers/9/x", "image/png", 42)
	assert.Equal(t, int64(9), f.BlobOwnerID())
	assert.Equal(t, "containers/9/x", f.StorageKey)
	assert.Equal(t, "image/png", f.MimeType)
	assert.Equal(t, int64(42), f.Size)
}
