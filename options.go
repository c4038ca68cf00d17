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

// Allocator specifies an interface for allocating and releasing the backing
// storage of a Vector, Bitmap, or Map. The default allocator utilizes Go's
// builtin make() and allows the GC to reclaim memory.
//
// Reallocation is expressed as Alloc of the new size, a copy of the lesser
// of the old and new element counts, and Free of the old storage.
//
// If the allocator is manually managing memory then the owning container's
// Close must be called in order to ensure Free is called.
type Allocator[T any] interface {
	// Alloc should return a slice equivalent to make([]T, n), i.e. zeroed.
	// Returning nil signals allocation failure; the requesting operation
	// fails with ErrOutOfMemory and mutates nothing.
	Alloc(n int) []T

	// Free can optionally release the memory associated with the supplied
	// slice, which is guaranteed to have been returned by Alloc.
	Free(v []T)
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) Alloc(n int) []T { return make([]T, n) }

func (defaultAllocator[T]) Free(v []T) {}

// PoolAllocator allocates the two regions of a pool bucket: the slot
// storage and the occupancy words. The default allocator is make()-backed.
//
// Slot storage returned by AllocSlots must not be moved for as long as the
// pool holds it: pooled item addresses are handed to callers.
type PoolAllocator[T any] interface {
	// AllocSlots should return a slice equivalent to make([]T, n).
	AllocSlots(n int) []T

	// AllocWords should return a slice equivalent to make([]uint64, n).
	AllocWords(n int) []uint64

	// FreeSlots can optionally release memory returned by AllocSlots.
	FreeSlots(v []T)

	// FreeWords can optionally release memory returned by AllocWords.
	FreeWords(v []uint64)
}

type defaultPoolAllocator[T any] struct{}

func (defaultPoolAllocator[T]) AllocSlots(n int) []T      { return make([]T, n) }
func (defaultPoolAllocator[T]) AllocWords(n int) []uint64 { return make([]uint64, n) }
func (defaultPoolAllocator[T]) FreeSlots(v []T)           {}
func (defaultPoolAllocator[T]) FreeWords(v []uint64)      {}

// MapOption provides an interface to do work on a Map while it is being
// created.
type MapOption[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type mapAllocatorOption[K comparable, V any] struct {
	allocator Allocator[Group[K, V]]
}

func (op mapAllocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithMapAllocator is an option specifying the Allocator a Map uses for its
// group array.
func WithMapAllocator[K comparable, V any](a Allocator[Group[K, V]]) MapOption[K, V] {
	return mapAllocatorOption[K, V]{a}
}

type hasherOption[K comparable, V any] struct {
	hasher Hasher
}

func (op hasherOption[K, V]) apply(m *Map[K, V]) {
	m.hasher = op.hasher
}

// WithHasher is an option specifying the raw-bytes Hasher a Map uses. The
// default is HashFNV1a.
func WithHasher[K comparable, V any](h Hasher) MapOption[K, V] {
	return hasherOption[K, V]{h}
}

// VectorOption provides an interface to do work on a Vector while it is
// being created.
type VectorOption[T any] interface {
	apply(v *Vector[T])
}

type vectorAllocatorOption[T any] struct {
	allocator Allocator[T]
}

func (op vectorAllocatorOption[T]) apply(v *Vector[T]) {
	v.allocator = op.allocator
}

// WithVectorAllocator is an option specifying the Allocator a Vector uses
// for its element buffer.
func WithVectorAllocator[T any](a Allocator[T]) VectorOption[T] {
	return vectorAllocatorOption[T]{a}
}

// BitmapOption provides an interface to do work on a Bitmap while it is
// being created.
type BitmapOption interface {
	apply(b *Bitmap)
}

type bitmapAllocatorOption struct {
	allocator Allocator[uint64]
}

func (op bitmapAllocatorOption) apply(b *Bitmap) {
	b.allocator = op.allocator
}

// WithBitmapAllocator is an option specifying the Allocator a Bitmap uses
// for its word buffer.
func WithBitmapAllocator(a Allocator[uint64]) BitmapOption {
	return bitmapAllocatorOption{a}
}

// PoolOption provides an interface to do work on a Pool while it is being
// created.
type PoolOption[T any] interface {
	apply(p *Pool[T])
}

type poolAllocatorOption[T any] struct {
	allocator PoolAllocator[T]
}

func (op poolAllocatorOption[T]) apply(p *Pool[T]) {
	p.allocator = op.allocator
}

// WithPoolAllocator is an option specifying the PoolAllocator a Pool uses
// for its buckets.
func WithPoolAllocator[T any](a PoolAllocator[T]) PoolOption[T] {
	return poolAllocatorOption[T]{a}
}
