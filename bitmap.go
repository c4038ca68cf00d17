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
	"fmt"
	"math/bits"
)

const bitmapWordBits = 64

// Bitmap is a growable bit-packed boolean array over 64-bit words.
//
// Bits at positions >= Len() are always zero, even after Invert or a
// shrinking Resize; OnesCount and the First* scans rely on that.
//
// A Bitmap is NOT goroutine-safe.
type Bitmap struct {
	words     []uint64
	length    int
	allocator Allocator[uint64]
}

// NewBitmap constructs a new Bitmap of the specified length in bits, all
// zero.
func NewBitmap(length int, options ...BitmapOption) *Bitmap {
	b := &Bitmap{allocator: defaultAllocator[uint64]{}}
	for _, op := range options {
		op.apply(b)
	}
	if length > 0 {
		_ = b.Resize(length)
	}
	return b
}

// Close closes the bitmap, releasing its words back to its configured
// allocator. It is unnecessary to close a bitmap using the default
// allocator. It is invalid to use a Bitmap after it has been closed, though
// Close itself is idempotent.
func (b *Bitmap) Close() {
	if b.words != nil {
		b.allocator.Free(b.words)
	}
	b.words = nil
	b.length = 0
	b.allocator = nil
}

// Len returns the bitmap's length in bits.
func (b *Bitmap) Len() int {
	return b.length
}

// Cap returns the number of bits the bitmap's words can hold.
func (b *Bitmap) Cap() int {
	return len(b.words) * bitmapWordBits
}

// Get returns the bit at position i.
func (b *Bitmap) Get(i int) (bool, error) {
	if i < 0 || i >= b.length {
		return false, ErrInvalidArgument
	}
	return b.words[i>>6]&(1<<uint(i&63)) != 0, nil
}

// Set sets the bit at position i to v.
func (b *Bitmap) Set(i int, v bool) error {
	if i < 0 || i >= b.length {
		return ErrInvalidArgument
	}
	if v {
		b.words[i>>6] |= 1 << uint(i&63)
	} else {
		b.words[i>>6] &^= 1 << uint(i&63)
	}
	return nil
}

// Toggle flips the bit at position i.
func (b *Bitmap) Toggle(i int) error {
	if i < 0 || i >= b.length {
		return ErrInvalidArgument
	}
	b.words[i>>6] ^= 1 << uint(i&63)
	return nil
}

// SetRange sets count bits starting at position start to v.
func (b *Bitmap) SetRange(start, count int, v bool) error {
	if start < 0 || count <= 0 || start+count > b.length {
		return ErrInvalidArgument
	}
	end := start + count
	for w := start >> 6; w <= (end-1)>>6; w++ {
		mask := ^uint64(0)
		if w == start>>6 {
			mask &= ^uint64(0) << uint(start&63)
		}
		if w == (end-1)>>6 {
			mask &= ^uint64(0) >> uint(63-(end-1)&63)
		}
		if v {
			b.words[w] |= mask
		} else {
			b.words[w] &^= mask
		}
	}
	return nil
}

// Reserve ensures the bitmap can be resized n bits longer without the words
// moving. Growth doubles: the new capacity is 2x(length+n) bits, rounded up
// to a whole word. On allocation failure the bitmap is left exactly as it
// was.
func (b *Bitmap) Reserve(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	if b.length+n <= b.Cap() {
		return nil
	}
	return b.realloc(bitmapWords(2 * (b.length + n)))
}

// Resize sets the bitmap's length to n bits. Bits gained by growing are
// zero; bits dropped by shrinking are cleared so a later grow cannot
// resurrect them.
func (b *Bitmap) Resize(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if n > b.Cap() {
		if err := b.realloc(bitmapWords(n)); err != nil {
			return err
		}
	}
	if n < b.length {
		b.length = n
		b.clearTail()
	}
	b.length = n
	b.checkInvariants()
	return nil
}

func (b *Bitmap) realloc(words int) error {
	var w []uint64
	if words > 0 {
		w = b.allocator.Alloc(words)
		if w == nil {
			return ErrOutOfMemory
		}
	}
	copy(w, b.words)
	if b.words != nil {
		b.allocator.Free(b.words)
	}
	b.words = w
	return nil
}

// OnesCount returns the number of one bits.
func (b *Bitmap) OnesCount() int {
	var n int
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// ZerosCount returns the number of zero bits.
func (b *Bitmap) ZerosCount() int {
	return b.length - b.OnesCount()
}

// FirstZero returns the position of the lowest zero bit, ok=false if every
// bit is one.
func (b *Bitmap) FirstZero() (int, bool) {
	for wi, w := range b.words {
		if w != ^uint64(0) {
			i := wi<<6 + bits.TrailingZeros64(^w)
			if i >= b.length {
				return 0, false
			}
			return i, true
		}
	}
	return 0, false
}

// FirstOne returns the position of the lowest one bit, ok=false if every
// bit is zero.
func (b *Bitmap) FirstOne() (int, bool) {
	for wi, w := range b.words {
		if w != 0 {
			return wi<<6 + bits.TrailingZeros64(w), true
		}
	}
	return 0, false
}

// And replaces the bitmap with its bitwise AND with other. The two bitmaps
// must have equal lengths.
func (b *Bitmap) And(other *Bitmap) error {
	if other == nil || other.length != b.length {
		return ErrInvalidArgument
	}
	for i := range b.words[:bitmapWords(b.length)] {
		b.words[i] &= other.words[i]
	}
	return nil
}

// Or replaces the bitmap with its bitwise OR with other. The two bitmaps
// must have equal lengths.
func (b *Bitmap) Or(other *Bitmap) error {
	if other == nil || other.length != b.length {
		return ErrInvalidArgument
	}
	for i := range b.words[:bitmapWords(b.length)] {
		b.words[i] |= other.words[i]
	}
	return nil
}

// Xor replaces the bitmap with its bitwise XOR with other. The two bitmaps
// must have equal lengths.
func (b *Bitmap) Xor(other *Bitmap) error {
	if other == nil || other.length != b.length {
		return ErrInvalidArgument
	}
	for i := range b.words[:bitmapWords(b.length)] {
		b.words[i] ^= other.words[i]
	}
	return nil
}

// Invert flips every bit within the bitmap's length.
func (b *Bitmap) Invert() {
	for i := range b.words[:bitmapWords(b.length)] {
		b.words[i] = ^b.words[i]
	}
	b.clearTail()
	b.checkInvariants()
}

// ShiftRight shifts every bit n positions towards position zero: bit i
// takes the value bit i+n had. The top n bits become zero.
func (b *Bitmap) ShiftRight(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if n == 0 || b.length == 0 {
		return nil
	}
	words := bitmapWords(b.length)
	if n >= b.length {
		for w := range b.words[:words] {
			b.words[w] = 0
		}
		return nil
	}
	wordShift, bitShift := n>>6, uint(n&63)
	for w := 0; w < words; w++ {
		src := w + wordShift
		var x uint64
		if src < words {
			x = b.words[src] >> bitShift
			if bitShift != 0 && src+1 < words {
				x |= b.words[src+1] << (64 - bitShift)
			}
		}
		b.words[w] = x
	}
	b.clearTail()
	b.checkInvariants()
	return nil
}

// ShiftLeft shifts every bit n positions away from position zero: bit i
// takes the value bit i-n had. The bottom n bits become zero; bits shifted
// past the length are dropped.
func (b *Bitmap) ShiftLeft(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if n == 0 || b.length == 0 {
		return nil
	}
	words := bitmapWords(b.length)
	if n >= b.length {
		for w := range b.words[:words] {
			b.words[w] = 0
		}
		return nil
	}
	wordShift, bitShift := n>>6, uint(n&63)
	for w := words - 1; w >= 0; w-- {
		src := w - wordShift
		var x uint64
		if src >= 0 {
			x = b.words[src] << bitShift
			if bitShift != 0 && src > 0 {
				x |= b.words[src-1] >> (64 - bitShift)
			}
		}
		b.words[w] = x
	}
	b.clearTail()
	b.checkInvariants()
	return nil
}

// RotateLeft rotates every bit n positions away from position zero; bits
// shifted past the length wrap around to position zero.
func (b *Bitmap) RotateLeft(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if b.length == 0 {
		return nil
	}
	if n %= b.length; n == 0 {
		return nil
	}
	// The top n bits wrap around to the bottom.
	top, err := b.Slice(b.length-n, n)
	if err != nil {
		return err
	}
	defer top.Close()
	if err := b.ShiftLeft(n); err != nil {
		return err
	}
	for w := range top.words[:bitmapWords(n)] {
		b.words[w] |= top.words[w]
	}
	b.checkInvariants()
	return nil
}

// RotateRight rotates every bit n positions towards position zero; bits
// shifted past position zero wrap around to the top.
func (b *Bitmap) RotateRight(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if b.length == 0 {
		return nil
	}
	if n %= b.length; n == 0 {
		return nil
	}
	return b.RotateLeft(b.length - n)
}

// Parity returns the number of one bits modulo 2.
func (b *Bitmap) Parity() int {
	return b.OnesCount() & 1
}

// Slice copies count bits starting at position start into a new Bitmap
// drawing storage from the same allocator.
func (b *Bitmap) Slice(start, count int) (*Bitmap, error) {
	if start < 0 || count <= 0 || start+count > b.length {
		return nil, ErrInvalidArgument
	}
	out := &Bitmap{allocator: b.allocator}
	if err := out.Resize(count); err != nil {
		return nil, err
	}
	wordShift, bitShift := start>>6, uint(start&63)
	for w := 0; w < bitmapWords(count); w++ {
		src := w + wordShift
		x := b.words[src] >> bitShift
		if bitShift != 0 && src+1 < len(b.words) {
			x |= b.words[src+1] << (64 - bitShift)
		}
		out.words[w] = x
	}
	out.clearTail()
	out.checkInvariants()
	return out, nil
}

// clearTail zeroes the bits at positions >= length.
func (b *Bitmap) clearTail() {
	if tail := b.length & 63; tail != 0 {
		b.words[b.length>>6] &= ^uint64(0) >> uint(64-tail)
	}
	for w := bitmapWords(b.length); w < len(b.words); w++ {
		b.words[w] = 0
	}
}

func (b *Bitmap) checkInvariants() {
	if invariants {
		for w := bitmapWords(b.length); w < len(b.words); w++ {
			if b.words[w] != 0 {
				panic(fmt.Sprintf("invariant failed: word %d beyond length %d is %016x", w, b.length, b.words[w]))
			}
		}
		if tail := b.length & 63; tail != 0 {
			if w := b.words[b.length>>6] &^ (^uint64(0) >> uint(64-tail)); w != 0 {
				panic(fmt.Sprintf("invariant failed: tail bits beyond length %d are set: %016x", b.length, w))
			}
		}
	}
}

// bitmapWords returns the number of words needed to hold n bits.
func bitmapWords(n int) int {
	return (n + bitmapWordBits - 1) / bitmapWordBits
}
