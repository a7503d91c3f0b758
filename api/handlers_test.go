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
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repohub"
	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/database/dbtest"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/mutation"
	"github.com/tomoncle/repohub/repository"
	"github.com/tomoncle/repohub/storage"
)

type testServer struct {
	db      *bun.DB
	blobs   *storage.MemoryStore
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T, gate Gate) *testServer {
	db := dbtest.New(t)
	blobs := storage.NewMemoryStore()
	h := &Handler{
		Containers: repohub.NewContainerService(db, repohub.Options{
			PaginationMaxLength: 100,
			Mutation:            mutation.Options{MaxCreate: 1},
		}),
		Files: repohub.NewFileService(db, repohub.Options{
			PaginationMaxLength: 100,
			Mutation:            mutation.Options{MaxCreate: 10, Blobs: blobs},
		}),
		Health: func(context.Context) *database.HealthStatus {
			return &database.HealthStatus{Healthy: true, Connected: true}
		},
		Stats: func() *database.DBStats {
			return &database.DBStats{MaxOpenConns: 1, OpenConns: 1}
		},
	}
	return &testServer{db: db, blobs: blobs, handler: h, router: NewRouter(h, gate)}
}

func (s *testServer) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedContainer(t *testing.T, name string, userID *int64) *models.RepoContainer {
	t.Helper()
	c := &models.RepoContainer{Name: name, UserID: userID}
	require.NoError(t, repository.NewRepository[models.RepoContainer](s.db).Create(context.Background(), c))
	return c
}

func TestListContainersWithUser(t *testing.T) {
	s := newTestServer(t, nil)
	u := &models.User{Username: "ada"}
	require.NoError(t, repository.NewRepository[models.User](s.db).Create(context.Background(), u))
	s.seedContainer(t, "beta", nil)
	alpha := s.seedContainer(t, "alpha", &u.ID)

	rec := s.post(t, "/repo/containers/list", `{
		"query": [{"field": "name", "order": "a"}, {"field": "user"}],
		"pagination": {"page": 0, "length": 1}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"meta": {"size": 2},
		"rcl": [{"id": `+strconv.FormatInt(alpha.ID, 10)+`, "data": {"name": "alpha", "user": `+strconv.FormatInt(u.ID, 10)+`}, "user": [{"username": "ada"}]}]
	}`, rec.Body.String())
}

func TestListRequestErrors(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		body   string
		detail string
		field  string
	}{
		{``, "DATA_INSUFFICIENT", ""},
		{`{"query": [`, "DATA_FORMAT_INVALID", ""},
		{`[1, 2]`, "DATA_FORMAT_INVALID", ""},
		{`{"query": [{"field": "name"}]}`, "DATA_INSUFFICIENT", ""},
		{`{"query": [{"field": "upload_token"}], "pagination": {"page": 0, "length": 5}}`, "FIELD_PROTECTED", "upload_token"},
		{`{"query": [{"field": "colour"}], "pagination": {"page": 0, "length": 5}}`, "FIELD_IDENTIFIER_INVALID", "colour"},
		{`{"query": [{"search": "x"}], "pagination": {"page": 0, "length": 5}}`, "FIELD_IDENTIFIER_MISSING", ""},
		{`{"query": [{"field": "name"}], "pagination": {"page": -1, "length": 5}}`, "PAGINATION_NEGATIVE_INDEX_UNSUPPORTED", ""},
	}
	for _, tc := range cases {
		rec := s.post(t, "/repo/containers/list", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), tc.body)
		assert.Equal(t, tc.detail, got.Detail.Name(), tc.body)
		assert.Equal(t, tc.field, got.Field, tc.body)
	}
}

type failingService struct {
	repohub.Service[models.RepoFile]
}

func (failingService) List(context.Context, interface{}, interface{}) (*repohub.ListResult, error) {
	return nil, errors.New("connection refused")
}

func TestListPersistenceFailureIsServerError(t *testing.T) {
	s := newTestServer(t, nil)
	s.handler.Files = failingService{}
	s.router = NewRouter(s.handler, nil)

	rec := s.post(t, "/repo/files/list", `{"query": [{"field": "name"}], "pagination": {"page": 0, "length": 5}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail": "SERVER_ERROR"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestContainerLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.post(t, "/repo/containers/create", `{"rc": [{"nonce": "n1", "data": {"name": "alpha"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created mutation.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Contains(t, created.Success, "n1")
	id := strconv.FormatInt(created.Success["n1"], 10)

	rec = s.post(t, "/repo/containers/create", `{"rc": [{"nonce": 1, "data": {}}, {"nonce": 2, "data": {}}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "REQUEST_OVER_OBJECT_LIMIT"}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/edit", `{"repo_container": [{"id": `+id+`, "data": {"service": 1}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fail": {"`+id+`": "FIELD_READ_ONLY"}, "success": []}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/edit", `{"rc": [{"id": `+id+`, "data": {"description": "hello"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fail": {}, "success": [`+id+`]}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/delete", `{"id": [`+id+`, `+id+`, "x"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fail": {"x": "DATA_FORMAT_INVALID"}, "success": {"id": [`+id+`]}}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/delete", `{"id": [`+id+`]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fail": {"`+id+`": "OBJECT_NOT_MODIFIED"}, "success": {"id": []}}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/list", `{"query": [{"field": "name"}], "pagination": {"page": 0, "length": 10}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"meta": {"size": 0}, "rcl": []}`, rec.Body.String())

	rec = s.post(t, "/repo/containers/delete", `{"ids": [1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "DATA_INSUFFICIENT"}`, rec.Body.String())
}

func TestCreateFilesMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.seedContainer(t, "docs", nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField(KeyFile, `[
		{"nonce": "a", "data": {"container": `+strconv.FormatInt(c.ID, 10)+`, "name": "a.txt"}},
		{"nonce": "b", "data": {"container": `+strconv.FormatInt(c.ID, 10)+`, "name": "b.txt", "size": 3}}
	]`))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="a"; filename="a.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/repo/files/create", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created mutation.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "FIELD_READ_ONLY", created.Fail["b"].Name())
	require.Contains(t, created.Success, "a")

	file, err := repository.NewRepository[models.RepoFile](s.db).GetOne(context.Background(), created.Success["a"])
	require.NoError(t, err)
	assert.Equal(t, int64(5), file.Size)
	assert.Equal(t, "text/plain", file.MimeType)
	assert.Equal(t, []string{file.StorageKey}, s.blobs.Keys())

	rec = s.post(t, "/repo/files/list", `{"query": [{"field": "name"}, {"field": "storage_key"}], "pagination": {"page": 0, "length": 10}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "FIELD_PROTECTED", "field": "storage_key"}`, rec.Body.String())
}

func TestCreateFilesJSONBody(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.seedContainer(t, "docs", nil)

	rec := s.post(t, "/repo/files/create", `{"rf": [{"nonce": "n", "data": {"container": `+strconv.FormatInt(c.ID, 10)+`, "name": "x"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created mutation.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, created.Success, "n")
	assert.Empty(t, s.blobs.Keys())
}

func TestBearerGate(t *testing.T) {
	secret := []byte("s3cret")
	s := newTestServer(t, BearerGate(secret, "repohub"))
	body := `{"query": [{"field": "name"}], "pagination": {"page": 0, "length": 10}}`

	rec := s.post(t, "/repo/containers/list", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := SignToken([]byte("other"), "repohub", "ada", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/repo/containers/list", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := SignToken(secret, "repohub", "ada", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/repo/containers/list", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health is not gated")
}

func TestHealthzUnhealthy(t *testing.T) {
	s := newTestServer(t, nil)
	s.handler.Health = func(context.Context) *database.HealthStatus {
		return &database.HealthStatus{LastError: "down"}
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestHealthzReportsPool(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Healthy bool `json:"healthy"`
		Pool    struct {
			MaxOpenConns int `json:"max_open_conns"`
			OpenConns    int `json:"open_conns"`
		} `json:"pool"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Healthy)
	assert.Equal(t, 1, body.Pool.MaxOpenConns)
	assert.Equal(t, 1, body.Pool.OpenConns)
}
