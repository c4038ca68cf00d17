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
	"sort"
)

// Vector is a contiguous growable buffer of elements with its backing
// storage drawn from an Allocator. It exists for callers that need to
// control where element storage lives; callers happy with Go's builtin
// append/make have no reason to use it.
//
// A Vector is NOT goroutine-safe.
type Vector[T any] struct {
	// items always has len == the reserved capacity; length tracks how much
	// of it is in use.
	items     []T
	length    int
	allocator Allocator[T]
}

// NewVector constructs a new Vector with the specified initial capacity. If
// initialCapacity is 0 the vector starts out with zero capacity and grows
// on the first push.
func NewVector[T any](initialCapacity int, options ...VectorOption[T]) *Vector[T] {
	v := &Vector[T]{allocator: defaultAllocator[T]{}}
	for _, op := range options {
		op.apply(v)
	}
	if initialCapacity > 0 {
		_ = v.Resize(initialCapacity)
	}
	return v
}

// WrapVector constructs a Vector that adopts items as its initial contents
// and backing storage: length len(items), capacity cap(items). The adopted
// storage is treated like any other buffer afterwards, in particular it is
// handed to the configured allocator's Free on growth and Close.
func WrapVector[T any](items []T, options ...VectorOption[T]) *Vector[T] {
	v := &Vector[T]{allocator: defaultAllocator[T]{}}
	for _, op := range options {
		op.apply(v)
	}
	v.items = items[:cap(items)]
	v.length = len(items)
	return v
}

// Unwrap steals the vector's backing storage, returning it as a slice of
// the vector's current length. The vector is left empty with zero capacity
// and the returned storage is no longer subject to the vector's allocator.
func (v *Vector[T]) Unwrap() []T {
	items := v.items[:v.length]
	v.items = nil
	v.length = 0
	return items
}

// Close closes the vector, releasing its buffer back to its configured
// allocator. It is unnecessary to close a vector using the default
// allocator. It is invalid to use a Vector after it has been closed, though
// Close itself is idempotent.
func (v *Vector[T]) Close() {
	if v.items != nil {
		v.allocator.Free(v.items)
	}
	v.items = nil
	v.length = 0
	v.allocator = nil
}

// Len returns the number of elements in the vector.
func (v *Vector[T]) Len() int {
	return v.length
}

// Cap returns the number of elements the vector can hold before growing.
func (v *Vector[T]) Cap() int {
	return len(v.items)
}

// Items returns the vector's elements as a slice sharing the vector's
// storage. The slice is invalidated by any operation that grows the vector.
func (v *Vector[T]) Items() []T {
	return v.items[:v.length]
}

// At returns a pointer to the element at index i, ok=false if i is out of
// bounds. The pointer is invalidated by any operation that grows the
// vector.
func (v *Vector[T]) At(i int) (*T, bool) {
	if i < 0 || i >= v.length {
		return nil, false
	}
	return &v.items[i], true
}

// Push appends items to the end of the vector.
func (v *Vector[T]) Push(items ...T) error {
	if len(items) == 0 {
		return ErrInvalidArgument
	}
	if err := v.Reserve(len(items)); err != nil {
		return err
	}
	copy(v.items[v.length:], items)
	v.length += len(items)
	v.checkInvariants()
	return nil
}

// Insert inserts items before index i, shifting the elements at and after i
// towards the end. i == Len() appends.
func (v *Vector[T]) Insert(i int, items ...T) error {
	if len(items) == 0 || i < 0 || i > v.length {
		return ErrInvalidArgument
	}
	if err := v.Reserve(len(items)); err != nil {
		return err
	}
	copy(v.items[i+len(items):v.length+len(items)], v.items[i:v.length])
	copy(v.items[i:], items)
	v.length += len(items)
	v.checkInvariants()
	return nil
}

// Remove removes count elements starting at index i, shifting the elements
// after the removed range towards the front.
func (v *Vector[T]) Remove(i, count int) error {
	if i < 0 || count <= 0 || i+count > v.length {
		return ErrInvalidArgument
	}
	copy(v.items[i:], v.items[i+count:v.length])
	// Release the vacated tail so the GC can reclaim what it references.
	var zero T
	for j := v.length - count; j < v.length; j++ {
		v.items[j] = zero
	}
	v.length -= count
	v.checkInvariants()
	return nil
}

// Reserve ensures the vector can hold n more elements without growing.
// Growth doubles: the new capacity is 2x(length+n). On allocation failure
// the vector is left exactly as it was.
func (v *Vector[T]) Reserve(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	if v.length+n <= len(v.items) {
		return nil
	}
	return v.realloc(2 * (v.length + n))
}

// Resize sets the vector's capacity to exactly capacity, truncating the
// length if the new capacity is smaller.
func (v *Vector[T]) Resize(capacity int) error {
	if capacity < 0 {
		return ErrInvalidArgument
	}
	if capacity == len(v.items) {
		return nil
	}
	return v.realloc(capacity)
}

// Shrink reduces the vector's capacity to its length.
func (v *Vector[T]) Shrink() error {
	return v.Resize(v.length)
}

func (v *Vector[T]) realloc(capacity int) error {
	var items []T
	if capacity > 0 {
		items = v.allocator.Alloc(capacity)
		if items == nil {
			return ErrOutOfMemory
		}
	}
	if v.length > capacity {
		v.length = capacity
	}
	copy(items, v.items[:v.length])
	if v.items != nil {
		v.allocator.Free(v.items)
	}
	v.items = items
	v.checkInvariants()
	return nil
}

// Sort sorts the vector in place using less as the ordering.
func (v *Vector[T]) Sort(less func(a, b T) bool) {
	items := v.Items()
	sort.Slice(items, func(i, j int) bool {
		return less(items[i], items[j])
	})
}

// Iter returns an iterator over the vector's elements in index order. The
// iterator reads the vector's current storage; growing or mutating the
// vector invalidates it.
func (v *Vector[T]) Iter() *Iterator[T] {
	return IterSlice(v.Items())
}

func (v *Vector[T]) checkInvariants() {
	if invariants {
		if v.length > len(v.items) {
			panic(fmt.Sprintf("invariant failed: length %d exceeds capacity %d", v.length, len(v.items)))
		}
	}
}
