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

// Package storage keeps the binary payloads of repo files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore stores opaque payloads under string keys.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a BlobStore.
type Config struct {
	Driver       string `yaml:"driver"` // memory, s3
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Prefix       string `yaml:"prefix"`
}

// New builds the store named by cfg.Driver.
func New(ctx context.Context, cfg Config) (BlobStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

// NewKey returns a unique key grouped by container and upload date.
func NewKey(prefix string, containerID int64, now time.Time) string {
	key := fmt.Sprintf("containers/%d/%d/%02d/%02d/%s", containerID, now.Year(), now.Month(), now.Day(), uuid.NewString())
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
