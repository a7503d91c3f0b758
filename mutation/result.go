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

package mutation

import (
	"github.com/tomoncle/repohub/types"
)

// CreateResult maps every nonce to either a failure reason or the new id.
type CreateResult struct {
	Fail    map[string]types.ErrorCode `json:"fail"`
	Success map[string]int64           `json:"success"`
}

// EditResult lists the edited ids and the failure reason of the others.
type EditResult struct {
	Fail    map[string]types.ErrorCode `json:"fail"`
	Success []int64                    `json:"success"`
}

// DeleteResult holds the ids that were deleted under "id".
type DeleteResult struct {
	Fail    map[string]types.ErrorCode `json:"fail"`
	Success map[string][]int64         `json:"success"`
}

// outcomes records at most one outcome per key; a later outcome for the
// same key replaces the earlier one.
type outcomes struct {
	order   []string
	fail    map[string]types.ErrorCode
	success map[string]int64
}

func newOutcomes() *outcomes {
	return &outcomes{fail: map[string]types.ErrorCode{}, success: map[string]int64{}}
}

func (o *outcomes) touch(key string) {
	if _, ok := o.fail[key]; ok {
		delete(o.fail, key)
		return
	}
	if _, ok := o.success[key]; ok {
		delete(o.success, key)
		return
	}
	o.order = append(o.order, key)
}

func (o *outcomes) failed(key string, code types.ErrorCode) {
	o.touch(key)
	o.fail[key] = code
}

func (o *outcomes) succeeded(key string, id int64) {
	o.touch(key)
	o.success[key] = id
}

func (o *outcomes) createResult() *CreateResult {
	return &CreateResult{Fail: o.fail, Success: o.success}
}

func (o *outcomes) editResult() *EditResult {
	r := &EditResult{Fail: o.fail, Success: make([]int64, 0, len(o.success))}
	for _, key := range o.order {
		if id, ok := o.success[key]; ok {
			r.Success = append(r.Success, id)
		}
	}
	return r
}
