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

// Package loatable is a linear-probing open-addressing hash table.
//
// # Layout
//
// A Table stores keys and values in two parallel arrays of capacity slots
// alongside a packed state array holding 2 bits per slot (see
// internal/slotflags). A slot is empty, live or a tombstone. The capacity is
// always zero or a power of two of at least MinCapacity so that the home slot
// of a key is hash(key) & (capacity-1).
//
// # Probing
//
// Lookups start at the home slot and walk forward one slot at a time,
// wrapping around at the end of the arrays. A live slot holding an equal key
// ends the walk with a hit and an empty slot ends it with a miss. Tombstones
// are transparent: the walk continues past them. Because the table is
// resized before the number of live and tombstone slots reaches 77% of the
// capacity there is always at least one empty slot, so every walk terminates.
//
// Insertion performs the same walk. The new entry is written into the first
// tombstone passed on the way to the terminating empty slot, or into the empty
// slot itself if no tombstone was passed. Walking all the way to the empty
// slot is what guarantees that a key is never stored twice.
//
// # Deletion
//
// Erasing an entry turns its slot into a tombstone and clears the key and
// value so the garbage collector can reclaim anything they reference. The
// slot still counts against the load factor until the next resize, which
// rehashes only live entries into fresh arrays and therefore drops every
// tombstone.
//
// # Resizing
//
// Resizing is a full rehash: new arrays are allocated, every live entry is
// reinserted by linear probing under the new mask and the old arrays are then
// released. If any allocation fails the table is left exactly as it was.
package loatable

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pltables/hashing"
	"github.com/cockroachdb/pltables/internal/invariants"
	"github.com/cockroachdb/pltables/internal/slotflags"
	"go.uber.org/zap"
)

const (
	debug = false

	// MinCapacity is the smallest non-zero capacity of a Table.
	MinCapacity = 8

	// The maximum load factor, 0.77, expressed as a fraction. The load counts
	// tombstones as well as live entries.
	maxLoadNumerator   = 77
	maxLoadDenominator = 100

	maxCapacity = 1 << 62
)

// ErrAllocFailed is returned when the arrays backing a Table could not be
// allocated.
var ErrAllocFailed = errors.New("loatable: allocation failed")

// InsertResult describes the outcome of an insertion.
type InsertResult int8

const (
	// Error indicates the table needed to grow and the allocation failed.
	// Nothing was inserted.
	Error InsertResult = -1
	// Present indicates the key was already in the table. The existing
	// value was left untouched.
	Present InsertResult = 0
	// Inserted indicates the entry was written into a previously empty slot.
	Inserted InsertResult = 1
	// ReusedSlot indicates the entry was written into a tombstone.
	ReusedSlot InsertResult = 2
)

// Failed returns true if the insertion could not be performed.
func (r InsertResult) Failed() bool {
	return r == Error
}

// Stored returns true if a new entry was added to the table.
func (r InsertResult) Stored() bool {
	return r >= Inserted
}

func (r InsertResult) String() string {
	switch r {
	case Error:
		return "error"
	case Present:
		return "present"
	case Inserted:
		return "inserted"
	case ReusedSlot:
		return "reused-slot"
	default:
		return fmt.Sprintf("InsertResult(%d)", int8(r))
	}
}

// Table is an unordered map from keys to values using linear probing and
// tombstone deletion. Keys are placed with a caller supplied hash function and
// compared with a caller supplied equality function. The two must agree:
// eq(a, b) implies hash(a) == hash(b).
//
// A Table is NOT goroutine-safe. Iterators returned by its methods are
// invalidated by any Insert, Erase, Resize, Reserve or Clear.
type Table[K, V any] struct {
	hash func(key K) uint64
	eq   func(a, b K) bool
	// The allocator to use for the flags, keys and values slices.
	allocator Allocator[K, V]
	logger    *zap.Logger
	// flags holds 2 bits of state per slot.
	flags slotflags.Array
	// keys and values are capacity in length.
	keys   []K
	values []V
	// The total number of slots, always 0 or a power of two >= MinCapacity.
	capacity uintptr
	// The number of live slots.
	size int
	// The number of live and tombstone slots. This is what triggers a resize
	// so that a table full of tombstones is eventually rehashed.
	used int
	// The value of used at which the next insertion grows the table.
	cutoff int
}

// New constructs a Table with the default hash and equality functions for K
// (see package hashing). If initialCapacity is 0 the table starts with zero
// capacity and nothing is allocated until the first insertion.
func New[K comparable, V any](initialCapacity int, options ...Option[K, V]) *Table[K, V] {
	return NewFunc[K, V](hashing.For[K](), hashing.Equal[K], initialCapacity, options...)
}

// NewFunc constructs a Table using the supplied hash and equality functions.
// If initialCapacity cannot be allocated the table starts out empty and the
// first insertion tries again.
func NewFunc[K, V any](
	hash func(key K) uint64, eq func(a, b K) bool, initialCapacity int, options ...Option[K, V],
) *Table[K, V] {
	t := &Table[K, V]{
		hash:      hash,
		eq:        eq,
		allocator: defaultAllocator[K, V]{},
		logger:    zap.NewNop(),
	}
	for _, op := range options {
		op.apply(t)
	}

	if initialCapacity > 0 {
		// On failure the table stays at zero capacity and the first insertion
		// retries the allocation. The failure is logged by resize.
		_ = t.Reserve(initialCapacity)
	}
	t.checkInvariants()
	return t
}

// Capacity returns the number of slots in the table.
func (t *Table[K, V]) Capacity() int {
	return int(t.capacity)
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int {
	return t.size
}

// Empty returns true if the table holds no entries.
func (t *Table[K, V]) Empty() bool {
	return t.size == 0
}

// Find returns an iterator positioned at key, or End() if key is not present.
func (t *Table[K, V]) Find(key K) Iterator[K, V] {
	return Iterator[K, V]{t: t, index: t.find(key)}
}

// Get retrieves the value for key, returning ok=false if it is not present.
func (t *Table[K, V]) Get(key K) (value V, ok bool) {
	i := t.find(key)
	if i == t.capacity {
		return value, false
	}
	return t.values[i], true
}

// find returns the slot holding key, or t.capacity if there is none.
func (t *Table[K, V]) find(key K) uintptr {
	if t.capacity == 0 {
		return 0
	}
	seq := makeProbeSeq(t.hash(key), t.capacity-1)
	if debug {
		fmt.Printf("find(%v): %s\n", key, seq)
	}

	for ; seq.index < t.capacity; seq = seq.next() {
		i := seq.offset
		switch {
		case t.flags.IsLive(i):
			if t.eq(key, t.keys[i]) {
				return i
			}
		case t.flags.IsEmpty(i):
			if debug {
				fmt.Printf("find(not-found): index=%d\n", i)
			}
			return t.capacity
		}
		if debug {
			fmt.Printf("find(skipping): index=%d state=%s\n", i, t.flags.Get(i))
		}
	}
	return t.capacity
}

// Insert adds key with value if key is not already present. An existing
// entry is never overwritten: inserting a present key returns an iterator to
// it along with Present. If the table has to grow and the allocation fails
// the result is Error, the iterator is End() and the table is unchanged.
func (t *Table[K, V]) Insert(key K, value V) (Iterator[K, V], InsertResult) {
	i, r := t.insert(key)
	if r.Stored() {
		t.values[i] = value
		t.checkInvariants()
	}
	return Iterator[K, V]{t: t, index: i}, r
}

// InsertFunc is like Insert but only calls makeValue if key is stored, so
// the value is not constructed when key is already present.
//
// If makeValue panics the key is removed again before the panic propagates.
// The table holds the same entries as before the call, although it may have
// grown.
func (t *Table[K, V]) InsertFunc(key K, makeValue func() V) (Iterator[K, V], InsertResult) {
	i, r := t.insert(key)
	if r.Stored() {
		constructed := false
		defer func() {
			if !constructed {
				t.undoInsert(i, r)
			}
		}()
		t.values[i] = makeValue()
		constructed = true
		t.checkInvariants()
	}
	return Iterator[K, V]{t: t, index: i}, r
}

// insert claims a slot for key and writes the key into it. The caller is
// responsible for the value when the result is Stored.
func (t *Table[K, V]) insert(key K) (uintptr, InsertResult) {
	if t.used >= t.cutoff {
		newCapacity := uintptr(MinCapacity)
		if t.size != 0 {
			newCapacity = 2 * t.capacity
		}
		if err := t.resize(newCapacity); err != nil {
			return t.capacity, Error
		}
	}

	if invariants.Enabled && t.size >= int(t.capacity) {
		panic(errors.AssertionFailedf("insert: table is full: size=%d capacity=%d", t.size, t.capacity))
	}

	seq := makeProbeSeq(t.hash(key), t.capacity-1)
	if debug {
		fmt.Printf("insert(%v): %s\n", key, seq)
	}

	target := t.capacity
	for ; seq.index < t.capacity; seq = seq.next() {
		i := seq.offset
		switch t.flags.Get(i) {
		case slotflags.Live:
			if t.eq(key, t.keys[i]) {
				if debug {
					fmt.Printf("insert(present): index=%d\n", i)
				}
				return i, Present
			}
		case slotflags.Tombstone:
			// Remember the first tombstone, but keep walking: key may live
			// further along the chain.
			if target == t.capacity {
				target = i
			}
		case slotflags.Empty:
			r := ReusedSlot
			if target == t.capacity {
				target = i
				r = Inserted
				t.used++
			}
			t.keys[target] = key
			t.flags.SetLive(target)
			t.size++
			if debug {
				fmt.Printf("insert(%s): index=%d size=%d used=%d\n", r, target, t.size, t.used)
			}
			return target, r
		}
	}

	// The load factor guarantees an empty slot, so the walk above always
	// terminates before visiting every slot.
	panic(errors.AssertionFailedf("insert(%v): no empty slot found\n%s", key, t.debugString()))
}

// undoInsert reverts the slot claimed by insert, returning it to the state it
// had before: empty for Inserted, a tombstone for ReusedSlot.
func (t *Table[K, V]) undoInsert(i uintptr, r InsertResult) {
	t.eraseAt(i)
	if r == Inserted {
		t.flags.SetEmpty(i)
		t.used--
	}
	t.checkInvariants()
}

// Erase removes the entry at it. The iterator must have been obtained from
// this table since its last mutation and must not be End().
func (t *Table[K, V]) Erase(it Iterator[K, V]) {
	if invariants.Enabled {
		if it.t != t {
			panic(errors.AssertionFailedf("erase: iterator belongs to a different table"))
		}
		if it.index >= t.capacity || !t.flags.IsLive(it.index) {
			panic(errors.AssertionFailedf("erase: invalid iterator index=%d capacity=%d", it.index, t.capacity))
		}
	}
	t.eraseAt(it.index)
	t.checkInvariants()
}

// EraseKey removes key from the table, returning the number of entries
// removed (0 or 1).
func (t *Table[K, V]) EraseKey(key K) int {
	i := t.find(key)
	if i == t.capacity {
		return 0
	}
	t.eraseAt(i)
	t.checkInvariants()
	return 1
}

func (t *Table[K, V]) eraseAt(i uintptr) {
	var zeroK K
	var zeroV V
	t.flags.SetTombstone(i)
	t.keys[i] = zeroK
	t.values[i] = zeroV
	t.size--
	if debug {
		fmt.Printf("erase: index=%d size=%d used=%d\n", i, t.size, t.used)
	}
}

// Begin returns an iterator positioned at the first entry in slot order, or
// End() if the table is empty.
func (t *Table[K, V]) Begin() Iterator[K, V] {
	return Iterator[K, V]{t: t, index: t.nextLive(0)}
}

// End returns the past-the-end iterator.
func (t *Table[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{t: t, index: t.capacity}
}

// nextLive returns the index of the first live slot at or after i, or
// t.capacity.
func (t *Table[K, V]) nextLive(i uintptr) uintptr {
	for ; i < t.capacity; i++ {
		if t.flags.IsLive(i) {
			break
		}
	}
	return i
}

// All calls yield sequentially for each key and value present in the table,
// in slot order. If yield returns false, iteration stops. The order is
// unrelated to insertion order and changes when the table is resized.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	for i := t.nextLive(0); i < t.capacity; i = t.nextLive(i + 1) {
		if !yield(t.keys[i], t.values[i]) {
			return
		}
	}
}

// Resize rehashes the table into the smallest power-of-two capacity that is
// at least n and larger than the current cutoff. Resizing to the current
// capacity is allowed and drops every tombstone.
func (t *Table[K, V]) Resize(n int) error {
	n = max(n, t.cutoff+1)
	c, err := roundupPow2(n)
	if err != nil {
		return err
	}
	return t.resize(c)
}

// Reserve grows the table to hold at least n slots. It never shrinks the
// table, but like Resize always rehashes.
func (t *Table[K, V]) Reserve(n int) error {
	n = max(n, 1, int(t.capacity))
	c, err := roundupPow2(n)
	if err != nil {
		return err
	}
	return t.resize(c)
}

// Clear removes every entry and releases the table's arrays back to its
// allocator. The table can be reused and starts over with zero capacity.
func (t *Table[K, V]) Clear() {
	if t.capacity > 0 {
		t.free(t.flags, t.keys, t.values)
	}
	t.flags = nil
	t.keys = nil
	t.values = nil
	t.capacity = 0
	t.size = 0
	t.used = 0
	t.cutoff = 0
	t.checkInvariants()
}

// Close releases any memory back to the table's allocator. It is unnecessary
// to close a table using the default allocator. Close is equivalent to Clear.
func (t *Table[K, V]) Close() {
	t.Clear()
}

// roundupPow2 returns the smallest power of two >= max(n, MinCapacity).
func roundupPow2(n int) (uintptr, error) {
	if n > maxCapacity {
		return 0, errors.Wrapf(ErrAllocFailed, "capacity %d exceeds maximum %d", n, maxCapacity)
	}
	n = max(n, MinCapacity)
	return uintptr(1) << bits.Len(uint(n-1)), nil
}

func cutoffFor(capacity uintptr) int {
	return int(capacity * maxLoadNumerator / maxLoadDenominator)
}

// resize allocates arrays of newCapacity slots, moves every live entry into
// them and releases the old arrays. On allocation failure the table is left
// untouched.
func (t *Table[K, V]) resize(newCapacity uintptr) error {
	if invariants.Enabled {
		if newCapacity < MinCapacity || newCapacity&(newCapacity-1) != 0 {
			panic(errors.AssertionFailedf("resize: capacity %d is not a power of two >= %d", newCapacity, MinCapacity))
		}
		if cutoffFor(newCapacity) < t.size {
			panic(errors.AssertionFailedf("resize: capacity %d cannot hold %d entries", newCapacity, t.size))
		}
	}

	flags, keys, values, err := t.alloc(newCapacity)
	if err != nil {
		if ce := t.logger.Check(zap.WarnLevel, "loatable: resize failed"); ce != nil {
			ce.Write(
				zap.Uint64("capacity", uint64(t.capacity)),
				zap.Uint64("new-capacity", uint64(newCapacity)),
				zap.Int("size", t.size),
				zap.Error(err),
			)
		}
		return err
	}

	oldFlags, oldKeys, oldValues := t.flags, t.keys, t.values
	oldCapacity := t.capacity
	mask := newCapacity - 1

	if debug {
		fmt.Printf("resize: capacity=%d->%d size=%d used=%d\n", oldCapacity, newCapacity, t.size, t.used)
	}

	var zeroK K
	var zeroV V
	for i := uintptr(0); i < oldCapacity; i++ {
		if !oldFlags.IsLive(i) {
			continue
		}
		// The new arrays hold no tombstones, so the first non-live slot is
		// empty.
		seq := makeProbeSeq(t.hash(oldKeys[i]), mask)
		for flags.IsLive(seq.offset) {
			seq = seq.next()
		}
		j := seq.offset
		keys[j], values[j] = oldKeys[i], oldValues[i]
		oldKeys[i], oldValues[i] = zeroK, zeroV
		flags.SetLive(j)
	}

	if oldCapacity > 0 {
		t.free(oldFlags, oldKeys, oldValues)
	}

	if ce := t.logger.Check(zap.DebugLevel, "loatable: resized"); ce != nil {
		ce.Write(
			zap.Uint64("capacity", uint64(oldCapacity)),
			zap.Uint64("new-capacity", uint64(newCapacity)),
			zap.Int("size", t.size),
			zap.Int("tombstones", t.used-t.size),
		)
	}

	t.flags, t.keys, t.values = flags, keys, values
	t.capacity = newCapacity
	t.cutoff = cutoffFor(newCapacity)
	t.used = t.size
	t.checkInvariants()
	return nil
}

// alloc allocates all three arrays for capacity slots. Either every array is
// returned or, if any allocation fails, the ones that succeeded are freed.
func (t *Table[K, V]) alloc(capacity uintptr) (slotflags.Array, []K, []V, error) {
	n := int(capacity)
	flags := slotflags.Array(t.allocator.AllocFlags(slotflags.Words(n)))
	keys := t.allocator.AllocKeys(n)
	values := t.allocator.AllocValues(n)
	if len(flags) < slotflags.Words(n) || len(keys) < n || len(values) < n {
		if flags != nil {
			t.allocator.FreeFlags(flags)
		}
		if keys != nil {
			t.allocator.FreeKeys(keys)
		}
		if values != nil {
			t.allocator.FreeValues(values)
		}
		return nil, nil, nil, errors.Wrapf(ErrAllocFailed, "capacity %d", capacity)
	}
	// Allocators may hand back recycled memory.
	flags = flags[:slotflags.Words(n)]
	flags.Reset()
	return flags, keys[:n], values[:n], nil
}

func (t *Table[K, V]) free(flags slotflags.Array, keys []K, values []V) {
	t.allocator.FreeFlags(flags)
	t.allocator.FreeKeys(keys)
	t.allocator.FreeValues(values)
}

func (t *Table[K, V]) checkInvariants() {
	if invariants.Enabled {
		if t.capacity != 0 && (t.capacity < MinCapacity || t.capacity&(t.capacity-1) != 0) {
			panic(errors.AssertionFailedf("invariant failed: capacity %d is not a power of two >= %d", t.capacity, MinCapacity))
		}
		if !(t.size <= t.used && t.used <= int(t.capacity)) {
			panic(errors.AssertionFailedf("invariant failed: size=%d used=%d capacity=%d\n%s",
				t.size, t.used, t.capacity, t.debugString()))
		}
		if t.cutoff != cutoffFor(t.capacity) {
			panic(errors.AssertionFailedf("invariant failed: cutoff=%d, expected %d", t.cutoff, cutoffFor(t.capacity)))
		}
		if t.capacity == 0 {
			return
		}

		live, tombstones := t.flags.Count(int(t.capacity))
		if live != t.size {
			panic(errors.AssertionFailedf("invariant failed: found %d live slots, but size is %d\n%s",
				live, t.size, t.debugString()))
		}
		if live+tombstones != t.used {
			panic(errors.AssertionFailedf("invariant failed: found %d live+tombstone slots, but used is %d\n%s",
				live+tombstones, t.used, t.debugString()))
		}

		// For every live slot, verify the probe walk for its key arrives at
		// that very slot, which also rules out duplicate keys.
		for i := uintptr(0); i < t.capacity; i++ {
			if !t.flags.IsLive(i) {
				continue
			}
			if j := t.find(t.keys[i]); j != i {
				panic(errors.AssertionFailedf("invariant failed: slot(%d): %v found at %d\n%s",
					i, t.keys[i], j, t.debugString()))
			}
		}
	}
}

func (t *Table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  size=%d  used=%d  cutoff=%d\n", t.capacity, t.size, t.used, t.cutoff)
	for i := uintptr(0); i < t.capacity; i++ {
		switch t.flags.Get(i) {
		case slotflags.Empty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotflags.Tombstone:
			fmt.Fprintf(&buf, "  %4d: tombstone\n", i)
		default:
			h := t.hash(t.keys[i])
			fmt.Fprintf(&buf, "  %4d: %v [home=%d]\n", i, t.keys[i], h&uint64(t.capacity-1))
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a linear probe sequence. The sequence
// starts at hash&mask and advances one slot at a time, wrapping at mask+1:
//
//	p(i) := (hash + i) & mask
//
// It visits every slot exactly once in its first mask+1 steps, which is what
// bounds the probe loops.
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash uint64, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: uintptr(hash) & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + 1) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}
