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

// Package vector provides Vector, a growable contiguous sequence that owns
// its elements.
//
// Elements are placed in a single buffer obtained from an Allocator. When an
// append finds the buffer full it grows to 1.5 times its capacity plus 4 and
// the existing elements are moved across.
//
// Element types choose how they are copied and released by implementing the
// optional Destroyer, Cloner and Copier interfaces. The bulk operations (grow,
// Clone, CopyFrom, erase) pick one of three strategies for the element type,
// decided once per type:
//
//   - Types without pointers or hooks are transferred with copy() and never
//     destroyed.
//   - Types that cannot fail to copy are transferred one element at a time,
//     and removed elements are destroyed and zeroed so the garbage collector
//     can reclaim what they reference.
//   - Types implementing Copier (and not Cloner) can fail to copy. Copies into
//     a fresh buffer are completed before the original buffer is touched, and
//     a failure destroys the partial copy and leaves the vector unchanged.
package vector

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pltables/internal/invariants"
	"go.uber.org/zap"
)

// ErrAllocFailed is returned when the buffer backing a Vector could not be
// allocated.
var ErrAllocFailed = errors.New("vector: allocation failed")

// ErrNotCopyable is returned when copying elements that implement Destroyer
// but neither Cloner nor Copier.
var ErrNotCopyable = errors.New("element type is not copyable")

// Vector is a growable sequence of elements stored contiguously. A Vector
// must be created with New, Make or Of. It is NOT goroutine-safe, and any
// pointer or slice obtained from it is invalidated by a mutation that changes
// its length or capacity.
type Vector[T any] struct {
	// data is the buffer. len(data) is the capacity and the elements occupy
	// data[:size].
	data      []T
	size      int
	traits    *traits
	allocator Allocator[T]
	logger    *zap.Logger
}

// New returns an empty Vector. Nothing is allocated until the first element
// is added.
func New[T any](options ...Option[T]) *Vector[T] {
	v := &Vector[T]{
		traits:    traitsOf[T](),
		allocator: defaultAllocator[T]{},
		logger:    zap.NewNop(),
	}
	for _, op := range options {
		op.apply(v)
	}
	return v
}

// Make returns a Vector holding n copies of elem. elem itself remains owned
// by the caller.
func Make[T any](n int, elem T, options ...Option[T]) (*Vector[T], error) {
	v := New[T](options...)
	if n <= 0 {
		return v, nil
	}
	if v.traits.noCopy {
		return nil, v.traits.errNotCopyable()
	}
	data, err := v.alloc(n)
	if err != nil {
		return nil, err
	}
	for i := range data {
		c, err := copyElem(v.traits, &elem)
		if err != nil {
			destroyRange(v.traits, data[:i])
			v.allocator.Free(data)
			return nil, errors.Wrapf(err, "vector: copying element %d", i)
		}
		data[i] = c
	}
	v.data, v.size = data, n
	v.checkInvariants()
	return v, nil
}

// Of returns a Vector holding the elements of elems, with capacity
// len(elems). The vector takes ownership of the elements: the caller must not
// destroy them.
func Of[T any](elems []T, options ...Option[T]) (*Vector[T], error) {
	v := New[T](options...)
	if len(elems) == 0 {
		return v, nil
	}
	data, err := v.alloc(len(elems))
	if err != nil {
		return nil, err
	}
	copy(data, elems)
	v.data, v.size = data, len(elems)
	v.checkInvariants()
	return v, nil
}

// Len returns the number of elements.
func (v *Vector[T]) Len() int {
	return v.size
}

// Cap returns the number of elements the buffer can hold without growing.
func (v *Vector[T]) Cap() int {
	return len(v.data)
}

// IsEmpty returns true if the vector has no elements.
func (v *Vector[T]) IsEmpty() bool {
	return v.size == 0
}

// At returns the element at i. The index is only checked against the length
// when built with the invariants tag.
func (v *Vector[T]) At(i int) T {
	v.checkIndex(i)
	return v.data[i]
}

// Ptr returns a pointer to the element at i, allowing it to be modified in
// place.
func (v *Vector[T]) Ptr(i int) *T {
	v.checkIndex(i)
	return &v.data[i]
}

// Set destroys the element at i and replaces it with elem.
func (v *Vector[T]) Set(i int, elem T) {
	v.checkIndex(i)
	destroyElem(v.traits, &v.data[i])
	v.data[i] = elem
}

// Slice returns the elements as a slice sharing the vector's buffer.
func (v *Vector[T]) Slice() []T {
	return v.data[:v.size:v.size]
}

// All calls yield sequentially for each index and element in order. If yield
// returns false, iteration stops.
func (v *Vector[T]) All(yield func(i int, elem T) bool) {
	for i := 0; i < v.size; i++ {
		if !yield(i, v.data[i]) {
			return
		}
	}
}

// Append adds elem to the end of the vector, taking ownership of it. If the
// buffer has to grow and the allocation fails the vector is unchanged and
// the caller keeps ownership of elem.
func (v *Vector[T]) Append(elem T) error {
	if v.size == len(v.data) {
		if err := v.grow(); err != nil {
			return err
		}
	}
	v.data[v.size] = elem
	v.size++
	return nil
}

// AppendCopy adds a copy of *elem to the end of the vector. The copy is made
// before the buffer grows, so either failure leaves the vector unchanged.
func (v *Vector[T]) AppendCopy(elem *T) error {
	c, err := copyElem(v.traits, elem)
	if err != nil {
		return errors.Wrap(err, "vector: copying element")
	}
	if err := v.Append(c); err != nil {
		destroyElem(v.traits, &c)
		return err
	}
	return nil
}

// Emplace adds a new element to the end of the vector, initialized by
// construct. If construct returns an error nothing is added and the error
// is returned.
func (v *Vector[T]) Emplace(construct func(elem *T) error) error {
	var elem T
	if err := construct(&elem); err != nil {
		return errors.Wrap(err, "vector: constructing element")
	}
	if err := v.Append(elem); err != nil {
		destroyElem(v.traits, &elem)
		return err
	}
	return nil
}

// Pop destroys and removes the last element. The vector must not be empty.
func (v *Vector[T]) Pop() {
	if invariants.Enabled && v.size == 0 {
		panic(errors.AssertionFailedf("vector: pop from empty vector"))
	}
	v.size--
	destroyElem(v.traits, &v.data[v.size])
}

// Erase destroys and removes the element at pos. It returns the index of the
// element that followed it, which equals Len() if the last element was
// removed.
func (v *Vector[T]) Erase(pos int) int {
	return v.EraseRange(pos, pos+1)
}

// EraseRange destroys and removes the elements in [first, last), shifting the
// following elements down to close the gap. It returns first, which is now the
// index of the element that followed the range, or Len() if the range
// extended to the end.
func (v *Vector[T]) EraseRange(first, last int) int {
	if invariants.Enabled && !(0 <= first && first <= last && last <= v.size) {
		panic(errors.AssertionFailedf("vector: erase range [%d, %d) out of bounds [0, %d)", first, last, v.size))
	}
	if first == last {
		return first
	}
	destroyRange(v.traits, v.data[first:last])
	shiftDown(v.traits, v.data, first, last, v.size)
	v.size -= last - first
	v.checkInvariants()
	return first
}

// Clear destroys every element. The capacity is unchanged.
func (v *Vector[T]) Clear() {
	destroyRange(v.traits, v.data[:v.size])
	v.size = 0
}

// Close destroys every element and releases the buffer to the vector's
// allocator. The vector can be reused afterwards.
func (v *Vector[T]) Close() {
	v.Clear()
	v.release()
}

// Reserve grows the buffer to hold at least n elements.
func (v *Vector[T]) Reserve(n int) error {
	if n <= len(v.data) {
		return nil
	}
	return v.reallocate(n)
}

// ShrinkToFit reallocates the buffer to hold exactly Len() elements.
func (v *Vector[T]) ShrinkToFit() error {
	if v.size == len(v.data) {
		return nil
	}
	if v.size == 0 {
		v.release()
		return nil
	}
	return v.reallocate(v.size)
}

// Clone returns a copy of the vector using the same allocator and logger.
// The copy's capacity equals Len().
func (v *Vector[T]) Clone() (*Vector[T], error) {
	c := &Vector[T]{
		traits:    v.traits,
		allocator: v.allocator,
		logger:    v.logger,
	}
	if v.size == 0 {
		return c, nil
	}
	data, err := c.alloc(v.size)
	if err != nil {
		return nil, err
	}
	if err := copyInto(v.traits, data, v.data[:v.size]); err != nil {
		c.allocator.Free(data)
		return nil, err
	}
	c.data, c.size = data, v.size
	c.checkInvariants()
	return c, nil
}

// CopyFrom replaces the contents of v with copies of the elements of src.
//
// If v already has room for src and copying elements cannot fail, the copies
// are assigned over v's elements in place and any surplus elements are
// destroyed. Otherwise a buffer sized to src is allocated and filled before
// v's old elements are destroyed, so on error v is unchanged.
func (v *Vector[T]) CopyFrom(src *Vector[T]) error {
	if v == src {
		return nil
	}
	n := src.size
	if n > 0 && v.traits.noCopy {
		return v.traits.errNotCopyable()
	}
	if n <= len(v.data) && v.traits.kind != fallible {
		if n <= v.size {
			assignInto(v.traits, v.data[:n], src.data[:n])
			destroyRange(v.traits, v.data[n:v.size])
		} else {
			assignInto(v.traits, v.data[:v.size], src.data[:v.size])
			_ = copyInto(v.traits, v.data[v.size:n], src.data[v.size:n])
		}
		v.size = n
		v.checkInvariants()
		return nil
	}

	var data []T
	if n > 0 {
		var err error
		if data, err = v.alloc(n); err != nil {
			return err
		}
		if err := copyInto(v.traits, data, src.data[:n]); err != nil {
			v.allocator.Free(data)
			return err
		}
	}
	v.Clear()
	v.release()
	v.data, v.size = data, n
	v.checkInvariants()
	return nil
}

// Move returns a new Vector holding v's elements and buffer, leaving v empty
// with no buffer.
func (v *Vector[T]) Move() *Vector[T] {
	m := &Vector[T]{
		traits:    v.traits,
		allocator: v.allocator,
		logger:    v.logger,
	}
	m.data, m.size = v.data, v.size
	v.data, v.size = nil, 0
	return m
}

// MoveFrom destroys v's elements, releases its buffer and takes over src's
// elements and buffer, leaving src empty with no buffer. The buffer will be
// released to src's allocator, so both vectors should share one.
func (v *Vector[T]) MoveFrom(src *Vector[T]) {
	if v == src {
		return
	}
	v.Clear()
	v.release()
	v.data, v.size = src.data, src.size
	v.allocator = src.allocator
	src.data, src.size = nil, 0
	v.checkInvariants()
}

func (v *Vector[T]) grow() error {
	c := len(v.data)
	return v.reallocate(c + c/2 + 4)
}

// reallocate moves the elements into a new buffer of capacity n >= Len() and
// releases the old buffer. On allocation failure v is unchanged.
func (v *Vector[T]) reallocate(n int) error {
	data, err := v.alloc(n)
	if err != nil {
		return err
	}
	if ce := v.logger.Check(zap.DebugLevel, "vector: reallocated"); ce != nil {
		ce.Write(
			zap.Int("capacity", len(v.data)),
			zap.Int("new-capacity", n),
			zap.Int("size", v.size),
			zap.Stringer("kind", v.traits.kind),
		)
	}
	moveInto(v.traits, data, v.data[:v.size])
	if v.data != nil {
		v.allocator.Free(v.data)
	}
	v.data = data
	v.checkInvariants()
	return nil
}

// alloc returns a buffer of exactly n elements.
func (v *Vector[T]) alloc(n int) ([]T, error) {
	data := v.allocator.Alloc(n)
	if len(data) < n {
		if data != nil {
			v.allocator.Free(data)
		}
		err := errors.Wrapf(ErrAllocFailed, "capacity %d", n)
		if ce := v.logger.Check(zap.WarnLevel, "vector: allocation failed"); ce != nil {
			ce.Write(
				zap.Int("capacity", len(v.data)),
				zap.Int("new-capacity", n),
				zap.Int("size", v.size),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return data[:n], nil
}

// release returns the buffer to the allocator. The vector must be empty.
func (v *Vector[T]) release() {
	if v.data != nil {
		v.allocator.Free(v.data)
	}
	v.data = nil
}

func (v *Vector[T]) checkIndex(i int) {
	if invariants.Enabled && (i < 0 || i >= v.size) {
		panic(errors.AssertionFailedf("vector: index %d out of range [0, %d)", i, v.size))
	}
}

func (v *Vector[T]) checkInvariants() {
	if invariants.Enabled {
		if v.size < 0 || v.size > len(v.data) {
			panic(errors.AssertionFailedf("invariant failed: size=%d capacity=%d", v.size, len(v.data)))
		}
		if v.traits == nil || v.allocator == nil || v.logger == nil {
			panic(errors.AssertionFailedf("invariant failed: vector was not created with New"))
		}
	}
}
