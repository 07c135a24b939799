// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package alloc holds allocation helpers shared by the containers.
package alloc

import "runtime"

// TryMake returns make([]T, n), or nil if the runtime rejects the length
// (negative, or too large to address). Exhausting the heap is fatal in Go and
// cannot be reported.
func TryMake[T any](n int) (s []T) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); !ok {
				panic(r)
			}
			s = nil
		}
	}()
	return make([]T, n)
}
