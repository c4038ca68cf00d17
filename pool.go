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
	"unsafe"
)

// poolGranularity is the slot granularity of a pool bucket. Bucket
// capacities are multiples of it so that a bucket's occupancy bitset is a
// whole number of words with no partial tail word to special-case.
const poolGranularity = 64

// poolBucket is one fixed-capacity region of a pool: slot storage, an
// occupancy bitset with one bit per slot, and the address range the slots
// cover. Buckets never move or shrink once allocated, which is what makes
// pooled item addresses stable.
type poolBucket[T any] struct {
	used     int
	capacity int
	// firstEmpty is a word index into bits: every word below it is fully
	// occupied, so a free-slot scan can start there. Claiming a slot moves
	// it up to the claimed word; releasing one moves it back down.
	firstEmpty int
	bits       []uint64
	slots      []T
	// [start, end) is the address range of slots, used to answer whether a
	// caller-supplied pointer belongs to this bucket.
	start, end uintptr
	next       *poolBucket[T]
}

// Pool hands out pointers to slots of T whose addresses remain stable for
// the lifetime of the pool: storage is a list of fixed buckets that are
// never moved, shrunk, or freed before Close. Take claims a free slot and
// Give releases one; both are O(capacity/64) worst case and effectively
// constant in steady state thanks to the per-bucket scan hint.
//
// New buckets are placed at the head of the bucket list, so ToIndex and
// FromIndex indices are stable between growths but renumbered by them.
//
// A Pool is NOT goroutine-safe.
type Pool[T any] struct {
	head      *poolBucket[T]
	used      int
	capacity  int
	allocator PoolAllocator[T]
}

// NewPool constructs a new Pool with the specified initial slot capacity.
// If initialCapacity is 0 the pool starts out with zero capacity and grows
// on the first take.
func NewPool[T any](initialCapacity int, options ...PoolOption[T]) *Pool[T] {
	p := &Pool[T]{allocator: defaultPoolAllocator[T]{}}
	for _, op := range options {
		op.apply(p)
	}
	if initialCapacity > 0 {
		_ = p.Reserve(initialCapacity)
	}
	p.checkInvariants()
	return p
}

// Close closes the pool, releasing every bucket back to its configured
// allocator. All pointers handed out by Take are invalidated. It is
// unnecessary to close a pool using the default allocator. It is invalid to
// use a Pool after it has been closed, though Close itself is idempotent.
func (p *Pool[T]) Close() {
	for b := p.head; b != nil; b = b.next {
		p.allocator.FreeSlots(b.slots)
		p.allocator.FreeWords(b.bits)
	}
	p.head = nil
	p.used = 0
	p.capacity = 0
	p.allocator = nil
}

// Len returns the number of slots currently taken.
func (p *Pool[T]) Len() int {
	return p.used
}

// Cap returns the total number of slots across all buckets.
func (p *Pool[T]) Cap() int {
	return p.capacity
}

// Reserve ensures the pool has n free slots. If growth is needed a new
// bucket whose capacity is 2x(used+n) rounded up to a multiple of
// poolGranularity is prepended; existing buckets are untouched. On
// allocation failure the pool is left exactly as it was.
//
// Zero-sized element types are rejected with ErrUnsupported: every slot of
// such a pool would share one address, so Give could not tell slots apart.
func (p *Pool[T]) Reserve(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return ErrUnsupported
	}
	if n <= p.capacity-p.used {
		return nil
	}
	bucketSlots := roundUpPoolGranularity(2 * (p.used + n))

	slots := p.allocator.AllocSlots(bucketSlots)
	if slots == nil {
		return ErrOutOfMemory
	}
	words := p.allocator.AllocWords(bucketSlots / poolGranularity)
	if words == nil {
		p.allocator.FreeSlots(slots)
		return ErrOutOfMemory
	}

	start := uintptr(unsafe.Pointer(unsafe.SliceData(slots)))
	p.head = &poolBucket[T]{
		capacity: bucketSlots,
		bits:     words,
		slots:    slots,
		start:    start,
		end:      start + uintptr(bucketSlots)*unsafe.Sizeof(zero),
		next:     p.head,
	}
	p.capacity += bucketSlots
	p.checkInvariants()
	return nil
}

// Take claims a free slot and returns a pointer to it. The slot holds the
// zero value of T unless it was previously given back, in which case it was
// re-zeroed by Give. The pointer stays valid until the slot is given back
// or the pool is closed.
func (p *Pool[T]) Take() (*T, error) {
	if err := p.Reserve(1); err != nil {
		return nil, err
	}
	for b := p.head; b != nil; b = b.next {
		if b.used == b.capacity {
			continue
		}
		// The hint invariant (all words below firstEmpty are full) makes
		// this scan start at the first word that can have a free bit.
		for w := b.firstEmpty; ; w++ {
			if b.bits[w] != ^uint64(0) {
				bit := bits.TrailingZeros64(^b.bits[w])
				b.bits[w] |= 1 << uint(bit)
				b.firstEmpty = w
				b.used++
				p.used++
				p.checkInvariants()
				return &b.slots[w<<6+bit], nil
			}
		}
	}
	// Reserve guaranteed a free slot.
	panic("no free slot after reserve")
}

// Give releases a slot previously returned by Take. The slot is re-zeroed.
// Pointers not owned by the pool and slots that are already free fail with
// ErrNotFound.
func (p *Pool[T]) Give(item *T) error {
	if item == nil {
		return ErrInvalidArgument
	}
	addr := uintptr(unsafe.Pointer(item))
	for b := p.head; b != nil; b = b.next {
		if addr < b.start || addr >= b.end {
			continue
		}
		var zero T
		off := addr - b.start
		if off%unsafe.Sizeof(zero) != 0 {
			return ErrInvalidArgument
		}
		i := int(off / unsafe.Sizeof(zero))
		w, bit := i>>6, uint(i&63)
		if b.bits[w]&(1<<bit) == 0 {
			return ErrNotFound
		}
		b.bits[w] &^= 1 << bit
		b.slots[i] = zero
		if w < b.firstEmpty {
			b.firstEmpty = w
		}
		b.used--
		p.used--
		p.checkInvariants()
		return nil
	}
	return ErrNotFound
}

// ToIndex translates a pooled item pointer into its bucket-major index:
// slot indices count from the head bucket onwards, independent of
// occupancy. ok=false if the pointer is not owned by the pool. Indices are
// invalidated by growth, which renumbers the buckets.
func (p *Pool[T]) ToIndex(item *T) (int, bool) {
	if item == nil {
		return 0, false
	}
	addr := uintptr(unsafe.Pointer(item))
	base := 0
	for b := p.head; b != nil; b = b.next {
		if addr >= b.start && addr < b.end {
			var zero T
			return base + int((addr-b.start)/unsafe.Sizeof(zero)), true
		}
		base += b.capacity
	}
	return 0, false
}

// FromIndex translates a bucket-major index back into a slot pointer,
// ok=false if the index is out of range. The slot need not be taken.
func (p *Pool[T]) FromIndex(i int) (*T, bool) {
	if i < 0 {
		return nil, false
	}
	for b := p.head; b != nil; b = b.next {
		if i < b.capacity {
			return &b.slots[i], true
		}
		i -= b.capacity
	}
	return nil, false
}

// Iter returns an iterator over the taken slots in bucket-major,
// ascending-slot order. Taking or giving slots invalidates the iterator.
// Once exhausted the iterator stays exhausted, even if slots are taken
// afterwards.
func (p *Pool[T]) Iter() *Iterator[T] {
	it := &Iterator[T]{container: p, bucket: p.head}
	it.advance = func(it *Iterator[T], out *T, skip int) error {
		skip++
		b, _ := it.bucket.(*poolBucket[T])
		pos := it.pos
		for b != nil {
			for pos < b.capacity {
				w, bit := pos>>6, uint(pos&63)
				if b.bits[w] == 0 && bit == 0 {
					pos += poolGranularity
					continue
				}
				if b.bits[w]&(1<<bit) != 0 {
					skip--
					if skip == 0 {
						if out != nil {
							*out = b.slots[pos]
						}
						it.bucket, it.pos = b, pos+1
						return nil
					}
				}
				pos++
			}
			b, pos = b.next, 0
		}
		_ = it.Close()
		return ErrNoMoreData
	}
	return it
}

func (p *Pool[T]) checkInvariants() {
	if invariants {
		var used, capacity int
		for b := p.head; b != nil; b = b.next {
			if b.capacity%poolGranularity != 0 {
				panic(fmt.Sprintf("invariant failed: bucket capacity %d not a multiple of %d", b.capacity, poolGranularity))
			}
			var bucketUsed int
			for w, word := range b.bits {
				n := bits.OnesCount64(word)
				bucketUsed += n
				if w < b.firstEmpty && n != 64 {
					panic(fmt.Sprintf("invariant failed: word %d below hint %d is not full: %016x", w, b.firstEmpty, word))
				}
			}
			if bucketUsed != b.used {
				panic(fmt.Sprintf("invariant failed: bucket used %d, bitset says %d", b.used, bucketUsed))
			}
			used += b.used
			capacity += b.capacity
		}
		if used != p.used || capacity != p.capacity {
			panic(fmt.Sprintf("invariant failed: pool used=%d capacity=%d, buckets say used=%d capacity=%d",
				p.used, p.capacity, used, capacity))
		}
	}
}

// roundUpPoolGranularity returns the smallest multiple of poolGranularity
// >= n.
func roundUpPoolGranularity(n int) int {
	return (n + poolGranularity - 1) &^ (poolGranularity - 1)
}
