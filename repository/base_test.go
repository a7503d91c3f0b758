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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repohub/database/dbtest"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/query"
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

func seedContainers(t *testing.T, repo Repository[models.RepoContainer], roles ...int64) []*models.RepoContainer {
	t.Helper()
	out := make([]*models.RepoContainer, 0, len(roles))
	for i, role := range roles {
		c := &models.RepoContainer{Name: fmt.Sprintf("container-%d", i), Role: role, Description: fmt.Sprintf("desc %d", i)}
		require.NoError(t, repo.Create(context.Background(), c))
		require.NotZero(t, c.ID)
		out = append(out, c)
	}
	return out
}

func ids(items []*models.RepoContainer) []int64 {
	out := make([]int64, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func TestPageSortsCountsAndWindows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seeded := seedContainers(t, repo, 5, 3, 4, 1, 2)

	plan := query.NewPlan(schema.Container, nil,
		[]query.Sort{{Field: "role", Column: "role"}}, []string{"role"},
		types.Window{Start: 0, End: 2})
	page, err := repo.Page(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(1), page.Items[0].Role)
	assert.Equal(t, int64(2), page.Items[1].Role)

	plan = query.NewPlan(schema.Container, nil,
		[]query.Sort{{Field: "role", Column: "role", Desc: true}}, nil,
		types.Window{Start: 4, End: 10})
	page, err = repo.Page(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, seeded[3].ID, page.Items[0].ID)
}

func TestPageEmptyWindowReturnsNoRows(t *testing.T) {
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seedContainers(t, repo, 1, 2, 3)

	page, err := repo.Page(context.Background(), query.NewPlan(schema.Container, nil, nil, nil, types.Window{Start: 0, End: 0}))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Items)

	page, err = repo.Page(context.Background(), query.NewPlan(schema.Container, nil, nil, nil, types.Window{Start: 50, End: 60}))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Items)
}

func TestPageFiltersCaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	require.NoError(t, repo.Create(ctx,
		&models.RepoContainer{Name: "Robotics Workshop"},
		&models.RepoContainer{Name: "workshop_2024"},
		&models.RepoContainer{Name: "workshop 100%"},
		&models.RepoContainer{Name: "Other"},
	))

	find := func(token string) []string {
		plan := query.NewPlan(schema.Container,
			[]query.Filter{{Field: "name", Column: "name", Token: token}},
			[]query.Sort{{Field: "name", Column: "name"}}, nil, types.Window{End: 100})
		page, err := repo.Page(ctx, plan)
		require.NoError(t, err)
		names := make([]string, 0, len(page.Items))
		for _, c := range page.Items {
			names = append(names, c.Name)
		}
		assert.Equal(t, len(names), page.Total)
		return names
	}

	assert.Equal(t, []string{"Robotics Workshop", "workshop 100%", "workshop_2024"}, find("WORKSHOP"))
	assert.Equal(t, []string{"workshop_2024"}, find("_"))
	assert.Equal(t, []string{"workshop 100%"}, find("%"))
	assert.Empty(t, find("missing"))
}

func TestPageFiltersIntegerColumnsAsText(t *testing.T) {
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seedContainers(t, repo, 12, 3, 120)

	plan := query.NewPlan(schema.Container,
		[]query.Filter{{Field: "role", Column: "role", Token: "12"}},
		[]query.Sort{{Field: "role", Column: "role"}}, nil, types.Window{End: 10})
	page, err := repo.Page(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(12), page.Items[0].Role)
	assert.Equal(t, int64(120), page.Items[1].Role)
}

func TestPageTiesBrokenByID(t *testing.T) {
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seeded := seedContainers(t, repo, 1, 1, 1, 1)

	plan := query.NewPlan(schema.Container, nil, []query.Sort{{Field: "role", Column: "role"}}, nil, types.Window{End: 10})
	page, err := repo.Page(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, ids(seeded), ids(page.Items))
}

func TestSoftDeleteHidesRowsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seeded := seedContainers(t, repo, 1, 2, 3)

	affected, err := repo.SoftDelete(ctx, schema.Container, []int64{seeded[1].ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[1].ID}, affected)

	affected, err = repo.SoftDelete(ctx, schema.Container, []int64{seeded[1].ID})
	require.NoError(t, err)
	assert.Empty(t, affected)

	page, err := repo.Page(ctx, query.NewPlan(schema.Container, nil, nil, nil, types.Window{End: 10}))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, []int64{seeded[0].ID, seeded[2].ID}, ids(page.Items))

	deleted, err := repo.GetOne(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted.Service)
}

func TestSoftDeleteRequiresStatusField(t *testing.T) {
	repo := NewRepository[models.RepoFile](dbtest.New(t))
	_, err := repo.SoftDelete(context.Background(), schema.File, []int64{1})
	assert.Error(t, err)
}

func TestUpdateColumnsWritesOnlyNamedColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	c := seedContainers(t, repo, 4)[0]

	c.Name = "renamed"
	c.Role = 99
	require.NoError(t, repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return repo.UpdateColumnsWithTx(ctx, tx, c, "name", "date_updated")
	}))

	got, err := repo.GetOne(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, int64(4), got.Role)
}

func TestGetByIDs(t *testing.T) {
	repo := NewRepository[models.RepoContainer](dbtest.New(t))
	seeded := seedContainers(t, repo, 1, 2, 3)

	got, err := repo.GetByIDs(context.Background(), []int64{seeded[0].ID, seeded[2].ID, 777})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{seeded[0].ID, seeded[2].ID}, ids(got))

	got, err = repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%abc%", ContainsPattern("AbC"))
	assert.Equal(t, "%!%!_!!%", ContainsPattern("%_!"))
}
