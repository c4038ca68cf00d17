// Copyright 2025 The Cockroach Authors
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

package container

import "unsafe"

// Hasher hashes a buffer of raw bytes to a fixed-width value. A Hasher must
// be deterministic: equal inputs produce equal outputs.
type Hasher func(b []byte) uint64

const (
	fnvOffset64 = 0xcbf29ce484222325
	fnvPrime64  = 0x00000100000001b3
)

// HashFNV1a is the default Hasher, a 64-bit Fowler-Noll-Vo variant.
// See https://en.wikipedia.org/wiki/Fowler%E2%80%93Noll%E2%80%93Vo_hash_function.
func HashFNV1a(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

// HashDJB2 is Dan Bernstein's hash function.
// See http://www.cse.yorku.ca/~oz/hash.html.
func HashDJB2(b []byte) uint64 {
	h := uint32(5381)
	for _, c := range b {
		h = h<<5 + h + uint32(c)
	}
	return uint64(h)
}

// HashSDBM is the hash function used by sdbm.
// See http://www.cse.yorku.ca/~oz/hash.html.
func HashSDBM(b []byte) uint64 {
	var h uint32
	for _, c := range b {
		h = uint32(c) + h<<6 + h<<16 - h
	}
	return uint64(h)
}

// rawKeyBytes exposes the in-memory representation of *key. The default Map
// hashing operates on these bytes, so keys that contain pointers (strings,
// slices, pointer fields) hash by their headers rather than their referents
// and require UseHash with a key-aware pair.
func rawKeyBytes[K any](key *K) []byte {
	return unsafe.Slice((*byte)(noescape(unsafe.Pointer(key))), unsafe.Sizeof(*key))
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
