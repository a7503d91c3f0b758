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

package repohub

import (
	"context"
	"fmt"
	"sync"

	"github.com/uptrace/bun"

	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/mutation"
	"github.com/tomoncle/repohub/projection"
	"github.com/tomoncle/repohub/query"
	"github.com/tomoncle/repohub/repository"
	"github.com/tomoncle/repohub/schema"
)

// Service exposes the list and mutation operations of one entity kind. Raw
// arguments are the decoded JSON request values.
type Service[T any] interface {
	// List parses the query descriptors and pagination, fetches one window of
	// live rows and projects the visible fields.
	List(ctx context.Context, rawQuery, rawPagination interface{}) (*ListResult, error)

	// Create inserts {nonce, data} items, each in its own transaction.
	Create(ctx context.Context, raw interface{}, payloads map[string]*mutation.Payload) (*mutation.CreateResult, error)

	// Edit applies {id, data} items to existing rows.
	Edit(ctx context.Context, raw interface{}) (*mutation.EditResult, error)

	// Delete soft deletes a list of ids.
	Delete(ctx context.Context, raw interface{}) (*mutation.DeleteResult, error)
}

// ListResult is one projected page and the number of matching rows.
type ListResult struct {
	Size    int
	Records []*projection.Record
}

// Options configures a Service.
type Options struct {
	PaginationMaxLength int64
	Mutation            mutation.Options
	// Enrich returns the relations attached to listed rows.
	Enrich func(db *bun.DB) []projection.Enrichment
}

type baseServiceImpl[T any] struct {
	entity *schema.Entity
	opts   Options
	db     *bun.DB

	once        sync.Once
	repo        repository.Repository[T]
	processor   *mutation.Processor[T]
	enrichments []projection.Enrichment
}

// NewService returns a Service backed by the global database connection,
// resolved on first use.
func NewService[T any](entity *schema.Entity, opts Options) Service[T] {
	return &baseServiceImpl[T]{entity: entity, opts: opts}
}

// NewServiceWithDB returns a Service backed by db.
func NewServiceWithDB[T any](db *bun.DB, entity *schema.Entity, opts Options) Service[T] {
	return &baseServiceImpl[T]{entity: entity, opts: opts, db: db}
}

// NewContainerService lists containers with their user attached. A nil db
// uses the global connection.
func NewContainerService(db *bun.DB, opts Options) Service[models.RepoContainer] {
	opts.Enrich = func(db *bun.DB) []projection.Enrichment {
		users := repository.NewRepository[models.User](db)
		return []projection.Enrichment{{Field: schema.FieldUser, Lookup: projection.NewUserLookup(users)}}
	}
	return &baseServiceImpl[models.RepoContainer]{entity: schema.Container, opts: opts, db: db}
}

// NewFileService returns the repo file Service. A nil db uses the global
// connection.
func NewFileService(db *bun.DB, opts Options) Service[models.RepoFile] {
	return &baseServiceImpl[models.RepoFile]{entity: schema.File, opts: opts, db: db}
}

func (s *baseServiceImpl[T]) init() {
	s.once.Do(func() {
		db := s.db
		if db == nil {
			db = database.GetDB()
		}
		s.repo = repository.NewRepository[T](db)
		s.processor = mutation.New[T](s.entity, s.repo, s.opts.Mutation)
		if s.opts.Enrich != nil {
			s.enrichments = s.opts.Enrich(db)
		}
	})
}

func (s *baseServiceImpl[T]) List(ctx context.Context, rawQuery, rawPagination interface{}) (*ListResult, error) {
	plan, err := query.Parse(s.entity, rawQuery, rawPagination, s.opts.PaginationMaxLength)
	if err != nil {
		return nil, err
	}
	s.init()
	page, err := s.repo.Page(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.entity.Kind, err)
	}
	records, err := projection.Project(ctx, projection.NewSpec(plan, s.enrichments...), page.Items)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", s.entity.Kind, err)
	}
	return &ListResult{Size: page.Total, Records: records}, nil
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, raw interface{}, payloads map[string]*mutation.Payload) (*mutation.CreateResult, error) {
	s.init()
	return s.processor.Create(ctx, raw, payloads)
}

func (s *baseServiceImpl[T]) Edit(ctx context.Context, raw interface{}) (*mutation.EditResult, error) {
	s.init()
	return s.processor.Edit(ctx, raw)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, raw interface{}) (*mutation.DeleteResult, error) {
	s.init()
	return s.processor.Delete(ctx, raw)
}
