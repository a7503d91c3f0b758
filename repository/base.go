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

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/repohub/query"
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

// LikeEscape is the escape character used in substring filters.
const LikeEscape = "!"

// Repository is a generic Bun repository over one model type.
type Repository[T any] interface {
	// Page applies a query plan: soft-delete predicate, filters, count,
	// ordering and window.
	Page(ctx context.Context, plan *query.Plan) (*types.Pagination[T], error)

	GetOne(ctx context.Context, id int64) (*T, error)
	GetOneWithTx(ctx context.Context, tx bun.IDB, id int64) (*T, error)

	// GetByIDs returns the rows whose id is in ids, in no particular order.
	GetByIDs(ctx context.Context, ids []int64) ([]*T, error)

	Create(ctx context.Context, entity ...*T) error
	CreateWithTx(ctx context.Context, tx bun.IDB, entity ...*T) error

	// UpdateColumnsWithTx writes only the named columns of entity by primary key.
	UpdateColumnsWithTx(ctx context.Context, tx bun.IDB, entity *T, columns ...string) error

	// SoftDelete sets the status column of entity to 0 for every live row in
	// ids within one transaction and returns the ids it changed.
	SoftDelete(ctx context.Context, entity *schema.Entity, ids []int64) ([]int64, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
	NewSelect() *bun.SelectQuery
}

type baseRepositoryImpl[T any] struct {
	db *bun.DB
}

// NewRepository returns a generic repository backed by the provided Bun DB.
func NewRepository[T any](db *bun.DB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, fn)
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id int64) (*T, error) {
	return r.GetOneWithTx(ctx, r.db, id)
}

func (r *baseRepositoryImpl[T]) GetOneWithTx(ctx context.Context, tx bun.IDB, id int64) (*T, error) {
	var entity T
	err := tx.NewSelect().Model(&entity).Where("?TableAlias.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	entities := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return entities, nil
	}
	err := r.db.NewSelect().Model(&entities).Where("?TableAlias.id IN (?)", bun.In(ids)).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, plan *query.Plan) (*types.Pagination[T], error) {
	var entities []*T
	q := r.db.NewSelect().Model(&entities)

	entity := plan.Entity()
	if entity != nil && entity.SoftDeletable() {
		q = q.Where("?TableAlias.? > 0", bun.Ident(entity.Column(entity.SoftField)))
	}
	castType := "TEXT"
	if r.db.Dialect().Name() == dialect.MySQL {
		castType = "CHAR"
	}
	for _, f := range plan.Filters() {
		q = q.Where(
			fmt.Sprintf("LOWER(CAST(?TableAlias.? AS %s)) LIKE ? ESCAPE '%s'", castType, LikeEscape),
			bun.Ident(f.Column), ContainsPattern(f.Token),
		)
	}

	pagination := types.NewDefaultPagination[T](plan.Window())
	total, err := q.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	pagination.Total = total

	// bun treats Limit(0) as no limit.
	if plan.Window().Limit() == 0 {
		return pagination, nil
	}

	tiebreak := true
	for _, s := range plan.Sorts() {
		direction := "ASC"
		if s.Desc {
			direction = "DESC"
		}
		q = q.OrderExpr("?TableAlias.? "+direction, bun.Ident(s.Column))
		if s.Column == schema.FieldID {
			tiebreak = false
		}
	}
	if tiebreak {
		q = q.OrderExpr("?TableAlias.id ASC")
	}

	err = q.Offset(plan.Window().Offset()).Limit(plan.Window().Limit()).Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Items = entities
	return pagination, nil
}

// ContainsPattern lowercases token and wraps it for a LIKE substring match,
// escaping LIKE wildcards with LikeEscape.
func ContainsPattern(token string) string {
	replacer := strings.NewReplacer(LikeEscape, LikeEscape+LikeEscape, "%", LikeEscape+"%", "_", LikeEscape+"_")
	return "%" + replacer.Replace(strings.ToLower(token)) + "%"
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	return r.CreateWithTx(ctx, r.db, entity...)
}

func (r *baseRepositoryImpl[T]) CreateWithTx(ctx context.Context, tx bun.IDB, entity ...*T) error {
	for _, e := range entity {
		if _, err := tx.NewInsert().Model(e).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) UpdateColumnsWithTx(ctx context.Context, tx bun.IDB, entity *T, columns ...string) error {
	_, err := tx.NewUpdate().Model(entity).Column(columns...).WherePK().Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) SoftDelete(ctx context.Context, entity *schema.Entity, ids []int64) ([]int64, error) {
	if !entity.SoftDeletable() {
		return nil, fmt.Errorf("entity %s has no soft delete field", entity.Kind)
	}
	affected := make([]int64, 0, len(ids))
	if len(ids) == 0 {
		return affected, nil
	}
	status := bun.Ident(entity.Column(entity.SoftField))
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Table(entity.Table).
			Column("id").
			Where("? > 0", status).
			Where("id IN (?)", bun.In(ids)).
			Order("id ASC").
			Scan(ctx, &affected)
		if err != nil || len(affected) == 0 {
			return err
		}
		_, err = tx.NewUpdate().
			Table(entity.Table).
			Set("? = 0", status).
			Where("id IN (?)", bun.In(affected)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}
