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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestWindow(t *testing.T) {
	cases := []struct {
		name       string
		page, size int64
		want       Window
	}{
		{"first page", 0, 2, Window{0, 2}},
		{"third page", 2, 10, Window{20, 30}},
		{"capped length", 1, 5000, Window{5000, 6000}},
		{"zero length", 3, 0, Window{0, 0}},
		{"negative page", -1, 5, Window{-5, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, ok := NewPageRequest(tc.page, tc.size).Window(DefaultPaginationMaxLength)
			require.True(t, ok)
			assert.Equal(t, tc.want, w)
		})
	}
}

func TestPageRequestWindowOverflow(t *testing.T) {
	_, ok := NewPageRequest(math.MaxInt64, 2).Window(DefaultPaginationMaxLength)
	assert.False(t, ok)

	_, ok = NewPageRequest(math.MaxInt64/10, 10).Window(DefaultPaginationMaxLength)
	assert.False(t, ok)
}

func TestWindowLimit(t *testing.T) {
	assert.Equal(t, 0, Window{5, 5}.Limit())
	assert.Equal(t, 0, Window{5, 2}.Limit())
	assert.Equal(t, 3, Window{2, 5}.Limit())
	assert.True(t, Window{-1, 3}.Negative())
	assert.False(t, Window{0, 0}.Negative())
}

func TestAsInt64(t *testing.T) {
	for in, want := range map[interface{}]int64{
		json.Number("7"):   7,
		json.Number("7.0"): 7,
		" 12 ":             12,
		"-3":               -3,
	} {
		got, ok := AsInt64(in)
		require.True(t, ok, "%v", in)
		assert.Equal(t, want, got)
	}
	for _, in := range []interface{}{json.Number("7.5"), "x", true, nil, []interface{}{}} {
		_, ok := AsInt64(in)
		assert.False(t, ok, "%v", in)
	}
}

func TestStrictInt64(t *testing.T) {
	n, ok := StrictInt64(json.Number("3"))
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	for _, in := range []interface{}{json.Number("3.0"), json.Number("1e2"), "3", true, nil} {
		_, ok := StrictInt64(in)
		assert.False(t, ok, "%v", in)
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "x", KeyString("x"))
	assert.Equal(t, "3", KeyString(json.Number("3")))
	assert.Equal(t, "true", KeyString(true))
	assert.Equal(t, "null", KeyString(nil))
}

func TestErrorCode(t *testing.T) {
	b, err := json.Marshal(map[string]ErrorCode{"7": FieldReadOnly})
	require.NoError(t, err)
	assert.JSONEq(t, `{"7":"FIELD_READ_ONLY"}`, string(b))

	var c ErrorCode
	require.NoError(t, json.Unmarshal([]byte(`"OBJECT_NOT_MODIFIED"`), &c))
	assert.Equal(t, ObjectNotModified, c)
	assert.Error(t, json.Unmarshal([]byte(`"NOPE"`), &c))

	assert.Equal(t, IllegalName, ErrorCode(99).Name())
	assert.Equal(t, IllegalValue, ErrorCode(-1).Number())
}

func TestRequestError(t *testing.T) {
	cause := errors.New("boom")
	err := error(WrapRequestError(DataFormatInvalid, cause))
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, DataFormatInvalid, reqErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "FIELD_PROTECTED (upload_token)", NewFieldError(FieldProtected, "upload_token").Error())
}
