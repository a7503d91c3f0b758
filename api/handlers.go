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
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/repohub"
	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/mutation"
	"github.com/tomoncle/repohub/types"
)

// Request and response keys.
const (
	KeyQuery      = "query"
	KeyPagination = "pagination"
	KeyMeta       = "meta"
	KeyID         = "id"

	KeyContainer     = "rc"
	KeyContainerList = "rcl"
	KeyFile          = "rf"
	KeyFileList      = "rfl"

	// legacyContainerKey is still accepted by container edit.
	legacyContainerKey = "repo_container"
)

const defaultMultipartMemory = 32 << 20

// Handler serves the repo endpoints.
type Handler struct {
	Containers repohub.Service[models.RepoContainer]
	Files      repohub.Service[models.RepoFile]
	// MaxUploadBytes bounds multipart file create bodies; 0 means no bound.
	MaxUploadBytes int64
	// Health reports the database state; nil uses the global connection.
	Health func(ctx context.Context) *database.HealthStatus
	// Stats reports the connection pool; nil uses the global connection.
	Stats  func() *database.DBStats
	Logger *logrus.Logger
}

// HealthReport is the /healthz body.
type HealthReport struct {
	*database.HealthStatus
	Pool *database.DBStats `json:"pool"`
}

// ListMeta carries the number of matching rows of a list response.
type ListMeta struct {
	Size int `json:"size"`
}

func listHandler[T any](h *Handler, svc repohub.Service[T], key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeObject(r.Body)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		result, err := svc.List(r.Context(), body[KeyQuery], body[KeyPagination])
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		render.JSON(w, r, map[string]interface{}{
			KeyMeta: ListMeta{Size: result.Size},
			key:     result.Records,
		})
	}
}

func createHandler[T any](h *Handler, svc repohub.Service[T], key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeObject(r.Body)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		raw, err := member(body, key)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		result, err := svc.Create(r.Context(), raw, nil)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		render.JSON(w, r, result)
	}
}

func editHandler[T any](h *Handler, svc repohub.Service[T], keys ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeObject(r.Body)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		raw, err := member(body, keys...)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		result, err := svc.Edit(r.Context(), raw)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		render.JSON(w, r, result)
	}
}

func deleteHandler[T any](h *Handler, svc repohub.Service[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeObject(r.Body)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		raw, err := member(body, KeyID)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		result, err := svc.Delete(r.Context(), raw)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// CreateFiles accepts either a JSON body or a multipart form whose "rf"
// field holds the JSON item list and whose file parts are named by nonce.
func (h *Handler) CreateFiles(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		createHandler[models.RepoFile](h, h.Files, KeyFile)(w, r)
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(defaultMultipartMemory); err != nil {
		writeError(w, r, h.Logger, types.WrapRequestError(types.DataFormatInvalid, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	items := r.MultipartForm.Value[KeyFile]
	if len(items) == 0 {
		writeError(w, r, h.Logger, types.NewRequestError(types.DataInsufficient))
		return
	}
	raw, err := decodeValue(strings.NewReader(items[0]))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	payloads, closeAll, err := openPayloads(r.MultipartForm.File)
	defer closeAll()
	if err != nil {
		writeError(w, r, h.Logger, types.WrapRequestError(types.DataFormatInvalid, err))
		return
	}
	result, err := h.Files.Create(r.Context(), raw, payloads)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	render.JSON(w, r, result)
}

func openPayloads(files map[string][]*multipart.FileHeader) (map[string]*mutation.Payload, func(), error) {
	payloads := make(map[string]*mutation.Payload, len(files))
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for nonce, headers := range files {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		payloads[nonce] = &mutation.Payload{Body: f, Size: fh.Size, ContentType: contentType}
	}
	return payloads, closeAll, nil
}

// Healthz reports the database health; unhealthy answers 503.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	health := h.Health
	if health == nil {
		health = database.GetHealthStatus
	}
	stats := h.Stats
	if stats == nil {
		stats = database.GetDatabaseStats
	}
	status := health(r.Context())
	if status == nil || !status.Healthy {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, HealthReport{HealthStatus: status, Pool: stats()})
}
