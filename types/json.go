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

package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JsonObject is a decoded JSON object. Numbers are expected to be
// json.Number (decoders use UseNumber).
type JsonObject map[string]interface{}

// JsonArray is a decoded JSON array of objects.
type JsonArray []JsonObject

// AsObject coerces v into a JsonObject.
func AsObject(v interface{}) (JsonObject, bool) {
	switch o := v.(type) {
	case JsonObject:
		return o, true
	case map[string]interface{}:
		return o, true
	default:
		return nil, false
	}
}

// AsList coerces v into a list.
func AsList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case JsonArray:
		out := make([]interface{}, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// AsInt64 accepts anything integer-like: JSON integers, integral floats and
// decimal strings (surrounding whitespace allowed).
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return floatToInt64(n)
	default:
		return 0, false
	}
}

// StrictInt64 accepts only JSON integers; strings, floats and booleans are
// rejected.
func StrictInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if strings.ContainsAny(n.String(), ".eE") {
			return 0, false
		}
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// KeyString renders a client-supplied correlation value (id or nonce) as a
// JSON object key.
func KeyString(v interface{}) string {
	switch k := v.(type) {
	case string:
		return k
	case json.Number:
		return k.String()
	case nil:
		return "null"
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		b, err := json.Marshal(k)
		if err != nil {
			return fmt.Sprint(k)
		}
		return string(b)
	}
}
