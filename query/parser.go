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

package query

import (
	"encoding/json"

	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/types"
)

// Descriptor keys of one query entry.
const (
	KeyField      = "field"
	KeySearch     = "search"
	KeyOrder      = "order"
	KeyVisibility = "visibility"
	KeyPage       = "page"
	KeyLength     = "length"

	OrderAsc  = "a"
	OrderDesc = "d"
)

// Parse validates the raw query descriptor list and pagination object of a
// list request against entity. It returns either a complete plan or a
// *types.RequestError, never both.
func Parse(entity *schema.Entity, rawQuery, rawPagination interface{}, maxLength int64) (*Plan, error) {
	descriptors, pagination, err := coerce(rawQuery, rawPagination)
	if err != nil {
		return nil, err
	}

	window, err := parseWindow(pagination, maxLength)
	if err != nil {
		return nil, err
	}

	var (
		filters []Filter
		sorts   []Sort
		visible []string
	)
	filterAt := map[string]int{}
	for _, raw := range descriptors {
		d, ok := types.AsObject(raw)
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		rawName, ok := d[KeyField]
		if !ok || rawName == nil {
			return nil, types.NewRequestError(types.FieldIdentifierMissing)
		}
		name := types.KeyString(rawName)
		if entity.IsProtected(name) {
			return nil, types.NewFieldError(types.FieldProtected, name)
		}
		field, ok := entity.Field(name)
		if !ok {
			return nil, types.NewFieldError(types.FieldIdentifierInvalid, name)
		}

		if search, ok := d[KeySearch]; ok && search != nil {
			f := Filter{Field: name, Column: field.Column, Token: types.KeyString(search)}
			if i, seen := filterAt[name]; seen {
				filters[i] = f
			} else {
				filterAt[name] = len(filters)
				filters = append(filters, f)
			}
		}

		if order, ok := d[KeyOrder]; ok && order != nil {
			switch types.KeyString(order) {
			case OrderAsc:
				sorts = append(sorts, Sort{Field: name, Column: field.Column})
			case OrderDesc:
				sorts = append(sorts, Sort{Field: name, Column: field.Column, Desc: true})
			}
		}

		if !hidden(d[KeyVisibility]) {
			visible = append(visible, name)
		}
	}

	return NewPlan(entity, filters, sorts, visible, window), nil
}

func coerce(rawQuery, rawPagination interface{}) ([]interface{}, types.JsonObject, error) {
	if rawQuery == nil || rawPagination == nil {
		return nil, nil, types.NewRequestError(types.DataInsufficient)
	}
	descriptors, ok := types.AsList(rawQuery)
	if !ok {
		return nil, nil, types.NewRequestError(types.DataFormatInvalid)
	}
	pagination, ok := types.AsObject(rawPagination)
	if !ok {
		return nil, nil, types.NewRequestError(types.DataFormatInvalid)
	}
	if len(descriptors) == 0 || len(pagination) == 0 {
		return nil, nil, types.NewRequestError(types.DataInsufficient)
	}
	return descriptors, pagination, nil
}

func parseWindow(pagination types.JsonObject, maxLength int64) (types.Window, error) {
	rawPage, okPage := pagination[KeyPage]
	rawLength, okLength := pagination[KeyLength]
	if !okPage || !okLength || rawPage == nil || rawLength == nil {
		return types.Window{}, types.NewRequestError(types.DataInsufficient)
	}
	page, ok := types.AsInt64(rawPage)
	if !ok {
		return types.Window{}, types.NewRequestError(types.DataFormatInvalid)
	}
	length, ok := types.AsInt64(rawLength)
	if !ok {
		return types.Window{}, types.NewRequestError(types.DataFormatInvalid)
	}

	window, ok := types.NewPageRequest(page, length).Window(maxLength)
	if !ok {
		return types.Window{}, types.NewRequestError(types.DataFormatInvalid)
	}
	if window.Negative() {
		return types.Window{}, types.NewRequestError(types.PaginationNegativeIndex)
	}
	return window, nil
}

// hidden reports an explicit false visibility. A numeric zero counts as
// false; anything else, including absence, keeps the field visible.
func hidden(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return !b
	case json.Number:
		f, err := b.Float64()
		return err == nil && f == 0
	case float64:
		return b == 0
	case int:
		return b == 0
	case int64:
		return b == 0
	default:
		return false
	}
}
