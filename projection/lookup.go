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

	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/repository"
	"github.com/tomoncle/repohub/types"
)

// UserLookup resolves user ids to {"username": ...}.
type UserLookup struct {
	repo repository.Repository[models.User]
}

func NewUserLookup(repo repository.Repository[models.User]) *UserLookup {
	return &UserLookup{repo: repo}
}

func (l *UserLookup) Resolve(ctx context.Context, ids []int64) (map[int64]types.JsonObject, error) {
	users, err := l.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]types.JsonObject, len(users))
	for _, u := range users {
		out[u.ID] = types.JsonObject{"username": u.Username}
	}
	return out, nil
}
