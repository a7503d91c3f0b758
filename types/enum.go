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
)

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// ErrorCode is the reason code reported to API clients, either as the
// request-level "detail" or as a per-item entry of a "fail" map.
type ErrorCode int

const (
	DataFormatInvalid ErrorCode = iota
	DataInsufficient
	FieldIdentifierMissing
	FieldIdentifierInvalid
	FieldProtected
	FieldReadOnly
	PaginationNegativeIndex
	RequestOverObjectLimit
	ObjectNotFound
	ObjectNotModified
	DataValidationFailed
	ServerError
)

var errorCodeNames = [...]string{
	DataFormatInvalid:       "DATA_FORMAT_INVALID",
	DataInsufficient:        "DATA_INSUFFICIENT",
	FieldIdentifierMissing:  "FIELD_IDENTIFIER_MISSING",
	FieldIdentifierInvalid:  "FIELD_IDENTIFIER_INVALID",
	FieldProtected:          "FIELD_PROTECTED",
	FieldReadOnly:           "FIELD_READ_ONLY",
	PaginationNegativeIndex: "PAGINATION_NEGATIVE_INDEX_UNSUPPORTED",
	RequestOverObjectLimit:  "REQUEST_OVER_OBJECT_LIMIT",
	ObjectNotFound:          "OBJECT_NOT_FOUND",
	ObjectNotModified:       "OBJECT_NOT_MODIFIED",
	DataValidationFailed:    "DATA_VALIDATION_FAILED",
	ServerError:             "SERVER_ERROR",
}

var errorCodeDescs = [...]string{
	DataFormatInvalid:       "request or item has the wrong shape",
	DataInsufficient:        "required request data is missing or empty",
	FieldIdentifierMissing:  "field descriptor has no field name",
	FieldIdentifierInvalid:  "field does not exist on the entity",
	FieldProtected:          "field can never be read or filtered",
	FieldReadOnly:           "field can not be written",
	PaginationNegativeIndex: "pagination window has a negative bound",
	RequestOverObjectLimit:  "too many items in one request",
	ObjectNotFound:          "object does not exist",
	ObjectNotModified:       "object could not be persisted",
	DataValidationFailed:    "object failed domain validation",
	ServerError:             "internal failure",
}

func (c ErrorCode) IsValid() bool {
	return c >= DataFormatInvalid && c <= ServerError
}

func (c ErrorCode) Number() int {
	if !c.IsValid() {
		return IllegalValue
	}
	return int(c)
}

func (c ErrorCode) Name() string {
	if !c.IsValid() {
		return IllegalName
	}
	return errorCodeNames[c]
}

func (c ErrorCode) Desc() string {
	if !c.IsValid() {
		return IllegalDesc
	}
	return errorCodeDescs[c]
}

func (c ErrorCode) String() string { return c.Name() }

// MarshalJSON encodes the code as its wire name.
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Name())
}

// UnmarshalJSON accepts the wire name produced by MarshalJSON.
func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, name := range errorCodeNames {
		if name == s {
			*c = ErrorCode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error code %q", s)
}

var _ BaseEnum = ErrorCode(0)

// RequestError aborts a whole request. Field is set for field-level errors.
type RequestError struct {
	Code  ErrorCode
	Field string
	Err   error
}

func (e *RequestError) Error() string {
	msg := e.Code.Name()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// NewRequestError returns a request-level error with the given code.
func NewRequestError(code ErrorCode) *RequestError {
	return &RequestError{Code: code}
}

// NewFieldError returns a request-level error tied to a field name.
func NewFieldError(code ErrorCode, field string) *RequestError {
	return &RequestError{Code: code, Field: field}
}

// WrapRequestError attaches the underlying cause to a request-level error.
func WrapRequestError(code ErrorCode, err error) *RequestError {
	return &RequestError{Code: code, Err: err}
}
