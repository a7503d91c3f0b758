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
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/utils"
)

// NewRouter mounts the repo endpoints behind gate. A nil gate allows all.
func NewRouter(h *Handler, gate Gate) http.Handler {
	if gate == nil {
		gate = AllowAll
	}
	if h.Logger == nil {
		h.Logger = utils.NewLogger(utils.LoggerAPI)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Route("/repo", func(r chi.Router) {
		r.Use(gate)
		r.Route("/containers", func(r chi.Router) {
			r.Post("/list", listHandler[models.RepoContainer](h, h.Containers, KeyContainerList))
			r.Post("/create", createHandler[models.RepoContainer](h, h.Containers, KeyContainer))
			r.Post("/edit", editHandler[models.RepoContainer](h, h.Containers, KeyContainer, legacyContainerKey))
			r.Post("/delete", deleteHandler[models.RepoContainer](h, h.Containers))
		})
		r.Route("/files", func(r chi.Router) {
			r.Post("/list", listHandler[models.RepoFile](h, h.Files, KeyFileList))
			r.Post("/create", h.CreateFiles)
			r.Post("/edit", editHandler[models.RepoFile](h, h.Files, KeyFile))
		})
	})
	return r
}
