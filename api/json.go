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
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/repohub/types"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail types.ErrorCode `json:"detail"`
	Field  string          `json:"field,omitempty"`
}

// decodeValue reads one JSON value keeping numbers as json.Number.
func decodeValue(r io.Reader) (interface{}, error) {
	d := json.NewDecoder(r)
	d.UseNumber()
	var v interface{}
	if err := d.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.NewRequestError(types.DataInsufficient)
		}
		return nil, types.WrapRequestError(types.DataFormatInvalid, err)
	}
	return v, nil
}

// decodeObject reads a JSON object body.
func decodeObject(r io.Reader) (types.JsonObject, error) {
	v, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	obj, ok := types.AsObject(v)
	if !ok {
		return nil, types.NewRequestError(types.DataFormatInvalid)
	}
	return obj, nil
}

// member returns the first present key of body.
func member(body types.JsonObject, keys ...string) (interface{}, error) {
	for _, key := range keys {
		if v, ok := body[key]; ok {
			return v, nil
		}
	}
	return nil, types.NewRequestError(types.DataInsufficient)
}

// writeError answers request errors with 400 and anything else with 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var re *types.RequestError
	if errors.As(err, &re) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Detail: re.Code, Field: re.Field})
		return
	}
	logger.WithError(err).WithField("req_uri", r.RequestURI).Error("request failed")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Detail: types.ServerError})
}
