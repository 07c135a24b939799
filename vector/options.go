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

package vector

import (
	"github.com/cockroachdb/pltables/internal/alloc"
	"go.uber.org/zap"
)

// Option configures a Vector while it is being created.
type Option[T any] interface {
	apply(v *Vector[T])
}

// Allocator specifies an interface for allocating and releasing the buffer
// backing a Vector. The default allocator utilizes Go's builtin make() and
// allows the GC to reclaim memory.
//
// An allocation fails by returning a slice shorter than requested (typically
// nil). The operation needing the buffer then returns ErrAllocFailed and the
// vector is left unchanged.
type Allocator[T any] interface {
	// Alloc should return a zeroed slice equivalent to make([]T, n).
	Alloc(n int) []T

	// Free can optionally release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by Alloc.
	Free(v []T)
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) Alloc(n int) []T {
	return alloc.TryMake[T](n)
}

func (defaultAllocator[T]) Free(v []T) {
}

type allocatorOption[T any] struct {
	allocator Allocator[T]
}

func (op allocatorOption[T]) apply(v *Vector[T]) {
	v.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Vector[T]. Copies made with Clone use the same allocator.
func WithAllocator[T any](allocator Allocator[T]) Option[T] {
	return allocatorOption[T]{allocator}
}

type loggerOption[T any] struct {
	logger *zap.Logger
}

func (op loggerOption[T]) apply(v *Vector[T]) {
	if op.logger != nil {
		v.logger = op.logger
	}
}

// WithLogger is an option to specify a logger for buffer reallocations,
// which are logged at debug level. Failed allocations are logged at warn
// level.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return loggerOption[T]{logger}
}
