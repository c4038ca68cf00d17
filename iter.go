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

// Iterator is a pull-based cursor over the elements of a container. All
// containers in this package produce the same iterator shape, so callers can
// traverse a Vector, Map, or Pool uniformly.
//
// An Iterator borrows the container's internal layout as of its creation and
// does not own any data. Mutating the source container (insert, remove,
// reserve, growth) invalidates the iterator; continuing to advance an
// invalidated iterator is the caller's error and yields unspecified
// elements. None of this is enforced internally.
type Iterator[T any] struct {
	// advance is the container-supplied dispatch callback. The remaining
	// fields are opaque cursor state private to the producing container.
	advance   func(it *Iterator[T], out *T, skip int) error
	container any
	bucket    any
	pos       int
}

// Next copies the next element into out and advances past it. A nil out
// discards the element. Returns ErrNoMoreData once the iterator is
// exhausted.
func (it *Iterator[T]) Next(out *T) error {
	return it.Nth(out, 0)
}

// Nth discards skip elements, then behaves like Next.
func (it *Iterator[T]) Nth(out *T, skip int) error {
	if it == nil || it.advance == nil || skip < 0 {
		return ErrInvalidArgument
	}
	return it.advance(it, out, skip)
}

// Advance discards n elements without copying any of them.
func (it *Iterator[T]) Advance(n int) error {
	if it == nil || it.advance == nil || n < 0 {
		return ErrInvalidArgument
	}
	if n == 0 {
		return nil
	}
	return it.advance(it, nil, n-1)
}

// Close releases the iterator's cursor state. The iterator reports
// ErrNoMoreData afterwards. Close is idempotent.
func (it *Iterator[T]) Close() error {
	if it == nil {
		return ErrInvalidArgument
	}
	it.advance = exhausted[T]
	it.container = nil
	it.bucket = nil
	it.pos = 0
	return nil
}

// Collect drains the iterator into out, stopping when out is full or the
// iterator is exhausted, and returns the number of elements written.
func (it *Iterator[T]) Collect(out []T) int {
	for i := range out {
		if it.Next(&out[i]) != nil {
			return i
		}
	}
	return len(out)
}

// exhausted is the terminal advance callback: every call reports end of
// data. Iterators that reach their natural end switch to it so that
// exhaustion is idempotent.
func exhausted[T any](*Iterator[T], *T, int) error {
	return ErrNoMoreData
}

// IterSlice returns an iterator over the elements of items. The iterator
// reads through the slice; it does not copy it.
func IterSlice[T any](items []T) *Iterator[T] {
	it := &Iterator[T]{container: items}
	it.advance = func(it *Iterator[T], out *T, skip int) error {
		items := it.container.([]T)
		it.pos += skip
		if out == nil {
			it.pos++
			if it.pos > len(items) {
				it.pos = len(items)
				return ErrNoMoreData
			}
			return nil
		}
		if it.pos >= len(items) {
			it.pos = len(items)
			return ErrNoMoreData
		}
		*out = items[it.pos]
		it.pos++
		return nil
	}
	return it
}
