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
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tomoncle/repohub/database"
	"github.com/uptrace/bun"
)

// Entity is implemented by every persisted repo model.
type Entity interface {
	GetID() int64
	Validate() error
}

// ErrInvalid wraps every domain validation failure.
var ErrInvalid = errors.New("invalid entity")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func init() {
	database.RegisteredModel(database.NewModelAdapter((*User)(nil), 10))
	database.RegisteredModel(database.NewModelAdapter((*RepoContainer)(nil), 20))
	database.RegisteredModel(database.NewModelAdapter((*RepoFile)(nil), 30))
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull,unique" json:"username"`
	Email    string `bun:"email" json:"email"`
	Password string `bun:"password" json:"-"`
}

func (u *User) GetID() int64 { return u.ID }

func (u *User) Validate() error {
	if u.Username == "" {
		return invalid("username is required")
	}
	return nil
}

type RepoContainer struct {
	bun.BaseModel `bun:"table:repo_containers,alias:rc"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      *int64    `bun:"user_id" json:"user"`
	Role        int64     `bun:"role,notnull,default:0" json:"role"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description" json:"description"`
	Service     int64     `bun:"service,notnull,default:1" json:"service"`
	UploadToken string    `bun:"upload_token" json:"-"`
	DateCreated time.Time `bun:"date_created,nullzero,notnull,default:current_timestamp" json:"date_created"`
	DateUpdated time.Time `bun:"date_updated,nullzero,notnull,default:current_timestamp" json:"date_updated"`
}

func (c *RepoContainer) GetID() int64 { return c.ID }

func (c *RepoContainer) Validate() error {
	switch {
	case c.Name == "":
		return invalid("name is required")
	case utf8.RuneCountInString(c.Name) > 128:
		return invalid("name longer than 128 characters")
	case utf8.RuneCountInString(c.Description) > 1024:
		return invalid("description longer than 1024 characters")
	case c.Role < 0:
		return invalid("role must not be negative")
	case c.Service < 0:
		return invalid("service must not be negative")
	case c.UserID != nil && *c.UserID <= 0:
		return invalid("user must reference a positive id")
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*RepoContainer)(nil)

func (c *RepoContainer) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.DateCreated.IsZero() {
			c.DateCreated = now
		}
		if c.Service == 0 {
			c.Service = 1
		}
		if c.UploadToken == "" {
			c.UploadToken = uuid.NewString()
		}
		c.DateUpdated = now
	case *bun.UpdateQuery:
		c.DateUpdated = now
	}
	return nil
}

type RepoFile struct {
	bun.BaseModel `bun:"table:repo_files,alias:rf"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ContainerID int64     `bun:"container_id,notnull" json:"container"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	MimeType    string    `bun:"mime_type" json:"mime_type"`
	Size        int64     `bun:"size,notnull,default:0" json:"size"`
	StorageKey  string    `bun:"storage_key" json:"-"`
	DateCreated time.Time `bun:"date_created,nullzero,notnull,default:current_timestamp" json:"date_created"`
	DateUpdated time.Time `bun:"date_updated,nullzero,notnull,default:current_timestamp" json:"date_updated"`
}

func (f *RepoFile) GetID() int64 { return f.ID }

func (f *RepoFile) Validate() error {
	switch {
	case f.ContainerID <= 0:
		return invalid("container is required")
	case f.Name == "":
		return invalid("name is required")
	case utf8.RuneCountInString(f.Name) > 256:
		return invalid("name longer than 256 characters")
	case f.Size < 0:
		return invalid("size must not be negative")
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*RepoFile)(nil)

func (f *RepoFile) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if f.DateCreated.IsZero() {
			f.DateCreated = now
		}
		f.DateUpdated = now
	case *bun.UpdateQuery:
		f.DateUpdated = now
	}
	return nil
}

// BlobOwnerID groups stored payloads by container.
func (f *RepoFile) BlobOwnerID() int64 { return f.ContainerID }

// AttachBlob records where the payload of f was stored.
func (f *RepoFile) AttachBlob(key, mimeType string, size int64) {
	f.StorageKey = key
	f.MimeType = mimeType
	f.Size = size
}
