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

// Package hashing provides default hash and equality functions for table
// keys. Hashes are only used for bucket placement and are not suitable for
// cryptographic use.
//
// Strings and byte slices are hashed with xxhash64. Integers are passed
// through the murmur3 64-bit finalizer so that sequential keys spread over the
// low bits a power-of-two table masks with. All other comparable types fall
// back to hash/maphash with a per-process seed.
package hashing

import (
	"hash/maphash"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

var seed = maphash.MakeSeed()

// String returns the xxhash64 of s.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Bytes returns the xxhash64 of b.
func Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Int mixes the bits of v with the murmur3 fmix64 finalizer.
func Int[T constraints.Integer](v T) uint64 {
	return fmix64(uint64(v))
}

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// Comparable hashes any comparable value with hash/maphash. The result is
// stable only for the lifetime of the process.
func Comparable[K comparable](k K) uint64 {
	return maphash.Comparable(seed, k)
}

// Equal reports whether a == b.
func Equal[K comparable](a, b K) bool {
	return a == b
}

// For returns the default hash function for keys of type K.
func For[K comparable]() func(K) uint64 {
	var k K
	switch any(k).(type) {
	case string:
		return func(key K) uint64 { return String(*(*string)(unsafe.Pointer(&key))) }
	case int:
		return func(key K) uint64 { return Int(*(*int)(unsafe.Pointer(&key))) }
	case int8:
		return func(key K) uint64 { return Int(*(*int8)(unsafe.Pointer(&key))) }
	case int16:
		return func(key K) uint64 { return Int(*(*int16)(unsafe.Pointer(&key))) }
	case int32:
		return func(key K) uint64 { return Int(*(*int32)(unsafe.Pointer(&key))) }
	case int64:
		return func(key K) uint64 { return Int(*(*int64)(unsafe.Pointer(&key))) }
	case uint:
		return func(key K) uint64 { return Int(*(*uint)(unsafe.Pointer(&key))) }
	case uint8:
		return func(key K) uint64 { return Int(*(*uint8)(unsafe.Pointer(&key))) }
	case uint16:
		return func(key K) uint64 { return Int(*(*uint16)(unsafe.Pointer(&key))) }
	case uint32:
		return func(key K) uint64 { return Int(*(*uint32)(unsafe.Pointer(&key))) }
	case uint64:
		return func(key K) uint64 { return Int(*(*uint64)(unsafe.Pointer(&key))) }
	case uintptr:
		return func(key K) uint64 { return Int(*(*uintptr)(unsafe.Pointer(&key))) }
	default:
		return Comparable[K]
	}
}
