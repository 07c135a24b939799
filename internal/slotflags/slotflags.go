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

// Package slotflags packs the per-slot state of an open-addressing table into
// 2 bits per slot. Each uint64 word holds 32 slots. For slot i, bit 2*(i%32)
// of word i/32 is the live bit and the bit above it is the tombstone bit:
//
//	    empty: 0 0
//	     live: 0 1
//	tombstone: 1 0
//
// A freshly allocated (zeroed) array therefore marks every slot empty.
package slotflags

import (
	"fmt"
	"math/bits"
	"strings"
)

// State is the state of a single slot.
type State uint8

const (
	Empty     State = 0b00
	Live      State = 0b01
	Tombstone State = 0b10
)

const (
	slotsPerWord = 32
	liveMask     = 0x5555555555555555
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Live:
		return "live"
	case Tombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Array holds the packed state of a table's slots.
type Array []uint64

// Words returns the number of words needed to hold n slots.
func Words(n int) int {
	return (n + slotsPerWord - 1) / slotsPerWord
}

func locate(i uintptr) (word uintptr, shift uint) {
	return i / slotsPerWord, uint(2 * (i % slotsPerWord))
}

// Get returns the state of slot i.
func (a Array) Get(i uintptr) State {
	w, s := locate(i)
	return State((a[w] >> s) & 0b11)
}

// IsLive returns true if slot i holds an entry.
func (a Array) IsLive(i uintptr) bool {
	w, s := locate(i)
	return a[w]&(1<<s) != 0
}

// IsTombstone returns true if slot i held an entry that has been erased.
func (a Array) IsTombstone(i uintptr) bool {
	w, s := locate(i)
	return a[w]&(2<<s) != 0
}

// IsEmpty returns true if slot i has never held an entry since the array was
// last reset.
func (a Array) IsEmpty(i uintptr) bool {
	w, s := locate(i)
	return a[w]&(3<<s) == 0
}

// SetLive marks slot i live, clearing a tombstone if present.
func (a Array) SetLive(i uintptr) {
	w, s := locate(i)
	a[w] = (a[w] &^ (3 << s)) | (1 << s)
}

// SetTombstone marks slot i as an erased entry.
func (a Array) SetTombstone(i uintptr) {
	w, s := locate(i)
	a[w] = (a[w] &^ (3 << s)) | (2 << s)
}

// SetEmpty marks slot i empty. This is only valid if no probe walk could have
// passed slot i while it was occupied.
func (a Array) SetEmpty(i uintptr) {
	w, s := locate(i)
	a[w] &^= 3 << s
}

// Reset marks every slot empty.
func (a Array) Reset() {
	clear(a)
}

// Count returns the number of live and tombstone slots among the first n.
func (a Array) Count(n int) (live, tombstones int) {
	full, rem := n/slotsPerWord, n%slotsPerWord
	for w := 0; w < full; w++ {
		live += bits.OnesCount64(a[w] & liveMask)
		tombstones += bits.OnesCount64((a[w] >> 1) & liveMask)
	}
	if rem > 0 {
		v := a[full] & ((uint64(1) << (2 * rem)) - 1)
		live += bits.OnesCount64(v & liveMask)
		tombstones += bits.OnesCount64((v >> 1) & liveMask)
	}
	return live, tombstones
}

// Dump renders the first n slots using '.', 'L' and 'T' for empty, live
// and tombstone respectively.
func (a Array) Dump(n int) string {
	var buf strings.Builder
	buf.Grow(n)
	for i := uintptr(0); i < uintptr(n); i++ {
		switch a.Get(i) {
		case Empty:
			buf.WriteByte('.')
		case Live:
			buf.WriteByte('L')
		case Tombstone:
			buf.WriteByte('T')
		default:
			buf.WriteByte('?')
		}
	}
	return buf.String()
}
