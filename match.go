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

import (
	"math/bits"
	"strings"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const (
	groupSize = 16

	metaEmpty     uint8 = 0
	metaTombstone uint8 = 1

	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080
)

// wideMatch selects the vectorized metadata comparison at process start.
// The SWAR path (SIMD within a register, 8 bytes per step) reinterprets the
// metadata block as uint64 words, which requires a little-endian host; on
// big-endian hosts every match falls back to a byte-wise scan.
var wideMatch = !cpu.IsBigEndian

// fingerprint derives the 1-byte metadata tag from a hash value: the low 8
// bits, remapped so that it never collides with metaEmpty or metaTombstone.
// Fingerprints occupy {2..255}.
func fingerprint(h uint64) uint8 {
	fp := uint8(h)
	if fp <= metaTombstone {
		fp = metaTombstone + 1
	}
	return fp
}

// bitset marks matching metadata bytes of one 8-byte half of a group with
// 0x80 in the corresponding byte position.
type bitset uint64

// first returns the slot offset (within the half) of the lowest marked byte.
func (b bitset) first() uintptr {
	return uintptr(bits.TrailingZeros64(uint64(b))) >> 3
}

func (b bitset) removeFirst() bitset {
	return b & (b - 1)
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(8)
	for i := 0; i < 8; i++ {
		if b&(bitset(0x80)<<(i<<3)) != 0 {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}

// metaBlock is the 16-byte metadata block of one hashmap group: one byte per
// slot, either metaEmpty, metaTombstone, or a fingerprint.
type metaBlock [groupSize]uint8

func (m *metaBlock) word(half int) uint64 {
	return *(*uint64)(unsafe.Pointer(&m[half<<3]))
}

// matchByte returns a bitset marking the bytes of the given half that equal
// v. The SWAR form can additionally mark a run of bytes equal to v^1
// directly following a true match (the borrow chain of the zero-byte
// trick). Every true
// match is marked, the lowest marked byte is always a true match, and a
// nonzero result implies at least one true match; the false positives cost
// a wasted key comparison at worst since v^1 is never metaEmpty or
// metaTombstone for any fingerprint.
func (m *metaBlock) matchByte(half int, v uint8) bitset {
	if wideMatch {
		w := m.word(half) ^ (bitsetLSB * uint64(v))
		return bitset(((w - bitsetLSB) &^ w) & bitsetMSB)
	}
	var b bitset
	for i := 0; i < 8; i++ {
		if m[half<<3+i] == v {
			b |= bitset(0x80) << (i << 3)
		}
	}
	return b
}

// matchEmpty returns a bitset marking the empty bytes of the given half.
func (m *metaBlock) matchEmpty(half int) bitset {
	return m.matchByte(half, metaEmpty)
}

// hasEmpty reports whether any of the 16 slots is empty. A group with an
// empty slot terminates a probe sequence: had the key been present it would
// have been placed at or before that slot.
func (m *metaBlock) hasEmpty() bool {
	return m.matchEmpty(0) != 0 || m.matchEmpty(1) != 0
}

// firstEmpty returns the lowest empty slot of the group, ok=false if the
// group is full.
func (m *metaBlock) firstEmpty() (uintptr, bool) {
	if b := m.matchEmpty(0); b != 0 {
		return b.first(), true
	}
	if b := m.matchEmpty(1); b != 0 {
		return 8 + b.first(), true
	}
	return 0, false
}
