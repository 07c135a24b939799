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

package loatable

import (
	"github.com/cockroachdb/pltables/internal/alloc"
	"go.uber.org/zap"
)

// Option configures a Table while it is being created.
type Option[K, V any] interface {
	apply(t *Table[K, V])
}

// Allocator specifies an interface for allocating and releasing the memory
// used by a Table. The default allocator utilizes Go's builtin make() and
// allows the GC to reclaim memory.
//
// An allocation fails by returning a slice shorter than requested (typically
// nil). The table then reports ErrAllocFailed or an Error insert result and
// is left unchanged.
//
// If the allocator is manually managing memory and requires that slices be
// freed then Table.Close must be called in order to ensure the Free methods
// are called.
type Allocator[K, V any] interface {
	// AllocFlags should return a zeroed slice equivalent to make([]uint64, n).
	AllocFlags(n int) []uint64

	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) []K

	// AllocValues should return a slice equivalent to make([]V, n).
	AllocValues(n int) []V

	// FreeFlags can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by AllocFlags.
	FreeFlags(v []uint64)

	// FreeKeys can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeValues can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocValues.
	FreeValues(v []V)
}

type defaultAllocator[K, V any] struct{}

func (defaultAllocator[K, V]) AllocFlags(n int) []uint64 {
	return alloc.TryMake[uint64](n)
}

func (defaultAllocator[K, V]) AllocKeys(n int) []K {
	return alloc.TryMake[K](n)
}

func (defaultAllocator[K, V]) AllocValues(n int) []V {
	return alloc.TryMake[V](n)
}

func (defaultAllocator[K, V]) FreeFlags(v []uint64) {
}

func (defaultAllocator[K, V]) FreeKeys(v []K) {
}

func (defaultAllocator[K, V]) FreeValues(v []V) {
}

type allocatorOption[K, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(t *Table[K, V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Table[K,V].
func WithAllocator[K, V any](allocator Allocator[K, V]) Option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(t *Table[K, V]) {
	if op.logger != nil {
		t.logger = op.logger
	}
}

// WithLogger is an option to specify a logger for resize events. Resizes are
// logged at debug level and failed resizes at warn level.
func WithLogger[K, V any](logger *zap.Logger) Option[K, V] {
	return loggerOption[K, V]{logger}
}
