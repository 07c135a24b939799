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
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pltables/internal/invariants"
)

// Iterator is a position in a Table: either a live slot or the past-the-end
// position End(). An Iterator holds no reference count or generation, so any
// mutation of the table invalidates it silently. Using an invalidated
// Iterator is a programming error.
type Iterator[K, V any] struct {
	t     *Table[K, V]
	index uintptr
}

// Valid returns true if the iterator is positioned at an entry, i.e. it is
// not End().
func (it Iterator[K, V]) Valid() bool {
	return it.t != nil && it.index < it.t.capacity
}

// Index returns the slot index of the iterator. End() has index Capacity().
func (it Iterator[K, V]) Index() int {
	return int(it.index)
}

// Key returns the key at the iterator.
func (it Iterator[K, V]) Key() K {
	it.check()
	return it.t.keys[it.index]
}

// Value returns the value at the iterator.
func (it Iterator[K, V]) Value() V {
	it.check()
	return it.t.values[it.index]
}

// ValuePtr returns a pointer to the value at the iterator, allowing it to be
// modified in place. The pointer is invalidated along with the iterator.
func (it Iterator[K, V]) ValuePtr() *V {
	it.check()
	return &it.t.values[it.index]
}

// Next returns an iterator positioned at the next entry in slot order, or
// End().
func (it Iterator[K, V]) Next() Iterator[K, V] {
	if invariants.Enabled && !it.Valid() {
		panic(errors.AssertionFailedf("iterator: next called on end iterator"))
	}
	return Iterator[K, V]{t: it.t, index: it.t.nextLive(it.index + 1)}
}

func (it Iterator[K, V]) check() {
	if invariants.Enabled {
		if !it.Valid() {
			panic(errors.AssertionFailedf("iterator: dereference of end iterator"))
		}
		if !it.t.flags.IsLive(it.index) {
			panic(errors.AssertionFailedf("iterator: slot %d is not live", it.index))
		}
	}
}
