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
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/repohub/database/dbtest"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/query"
	"github.com/tomoncle/repohub/repository"
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

type countingLookup struct {
	calls int
	ids   [][]int64
	known map[int64]string
	err   error
}

func (l *countingLookup) Resolve(ctx context.Context, ids []int64) (map[int64]types.JsonObject, error) {
	l.calls++
	l.ids = append(l.ids, ids)
	if l.err != nil {
		return nil, l.err
	}
	out := map[int64]types.JsonObject{}
	for _, id := range ids {
		if name, ok := l.known[id]; ok {
			out[id] = types.JsonObject{"username": name}
		}
	}
	return out, nil
}

func int64p(v int64) *int64 { return &v }

func containerPlan(visible ...string) *query.Plan {
	return query.NewPlan(schema.Container, nil, nil, visible, types.Window{End: 10})
}

func TestProjectVisibleFieldsOnly(t *testing.T) {
	rows := []*models.RepoContainer{
		{ID: 1, Name: "alpha", Role: 2, Description: "d", UploadToken: "secret"},
	}
	records, err := Project(context.Background(), NewSpec(containerPlan("name", "upload_token")), rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, types.JsonObject{"name": "alpha"}, records[0].Data)

	b, err := json.Marshal(records[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "data": {"name": "alpha"}}`, string(b))
	assert.NotContains(t, string(b), "secret")
}

func TestProjectEnrichesUsersWithOneLookup(t *testing.T) {
	lookup := &countingLookup{known: map[int64]string{7: "ada", 9: "grace"}}
	rows := []*models.RepoContainer{
		{ID: 1, Name: "a", UserID: int64p(9)},
		{ID: 2, Name: "b", UserID: int64p(7)},
		{ID: 3, Name: "c", UserID: int64p(9)},
		{ID: 4, Name: "d"},
		{ID: 5, Name: "e", UserID: int64p(404)},
	}
	spec := NewSpec(containerPlan("user", "name"), Enrichment{Field: schema.FieldUser, Lookup: lookup})
	records, err := Project(context.Background(), spec, rows)
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, [][]int64{{7, 9, 404}}, lookup.ids)

	b, err := json.Marshal(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id": 1, "data": {"name": "a"}, "user": [{"username": "grace"}]},
		{"id": 2, "data": {"name": "b"}, "user": [{"username": "ada"}]},
		{"id": 3, "data": {"name": "c"}, "user": [{"username": "grace"}]},
		{"id": 4, "data": {"name": "d"}, "user": []},
		{"id": 5, "data": {"name": "e"}, "user": []}
	]`, string(b))
}

func TestProjectSkipsEnrichmentOfHiddenField(t *testing.T) {
	lookup := &countingLookup{}
	spec := NewSpec(containerPlan("name"), Enrichment{Field: schema.FieldUser, Lookup: lookup})
	records, err := Project(context.Background(), spec, []*models.RepoContainer{{ID: 1, Name: "a", UserID: int64p(1)}})
	require.NoError(t, err)
	assert.Zero(t, lookup.calls)
	assert.Nil(t, records[0].Relations)
}

func TestProjectLookupFailure(t *testing.T) {
	lookup := &countingLookup{err: errors.New("down")}
	spec := NewSpec(containerPlan("user"), Enrichment{Field: schema.FieldUser, Lookup: lookup})
	_, err := Project(context.Background(), spec, []*models.RepoContainer{{ID: 1, UserID: int64p(1)}})
	assert.Error(t, err)
}

func TestProjectEmptyPage(t *testing.T) {
	lookup := &countingLookup{}
	spec := NewSpec(containerPlan("user"), Enrichment{Field: schema.FieldUser, Lookup: lookup})
	records, err := Project[models.RepoContainer](context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, lookup.calls)
}

func TestUserLookupResolvesFromDatabase(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository[models.User](dbtest.New(t))
	ada := &models.User{Username: "ada", Password: "x"}
	bob := &models.User{Username: "bob"}
	require.NoError(t, repo.Create(ctx, ada, bob))

	got, err := NewUserLookup(repo).Resolve(ctx, []int64{ada.ID, 1000})
	require.NoError(t, err)
	assert.Equal(t, map[int64]types.JsonObject{ada.ID: {"username": "ada"}}, got)
}
