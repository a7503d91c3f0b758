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

import "math"

// DefaultPaginationMaxLength caps the effective page length.
const DefaultPaginationMaxLength = 1000

// PageRequest is the client pagination descriptor: a zero-based page index
// and a requested page length.
type PageRequest struct {
	Page   int64
	Length int64
}

// NewPageRequest constructs a PageRequest.
func NewPageRequest(page, length int64) PageRequest {
	return PageRequest{Page: page, Length: length}
}

// EffectiveLength returns min(Length, maxLength).
func (p PageRequest) EffectiveLength(maxLength int64) int64 {
	if maxLength <= 0 {
		maxLength = DefaultPaginationMaxLength
	}
	if p.Length < maxLength {
		return p.Length
	}
	return maxLength
}

// Window derives [page*length, page*length + effective_length). ok is false
// when the arithmetic overflows int64.
func (p PageRequest) Window(maxLength int64) (w Window, ok bool) {
	start, ok := mulInt64(p.Page, p.Length)
	if !ok {
		return Window{}, false
	}
	eff := p.EffectiveLength(maxLength)
	if (eff > 0 && start > math.MaxInt64-eff) || (eff < 0 && start < math.MinInt64-eff) {
		return Window{}, false
	}
	return Window{Start: start, End: start + eff}, true
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

// Window is a half-open row range [Start, End).
type Window struct {
	Start int64
	End   int64
}

// Negative reports whether either bound is below zero.
func (w Window) Negative() bool {
	return w.Start < 0 || w.End < 0
}

// Offset is the number of rows to skip.
func (w Window) Offset() int { return int(w.Start) }

// Limit is the maximum number of rows in the window, never negative.
func (w Window) Limit() int {
	if w.End <= w.Start {
		return 0
	}
	return int(w.End - w.Start)
}

// Pagination holds one page of items along with the total match count.
type Pagination[T any] struct {
	Window Window
	Total  int
	Items  []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](window Window) *Pagination[T] {
	return &Pagination[T]{Window: window, Total: 0, Items: make([]*T, 0)}
}
