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

import "errors"

// The containers in this package report failures through a small closed set
// of sentinel errors. Argument validation errors are returned before any
// state is mutated. Allocation failures abort the in-progress operation and
// leave the container in its previous, consistent state; callers may retry
// after releasing memory elsewhere. No operation retries internally.
var (
	// ErrInvalidArgument is returned for nil pointers, zero counts, and
	// out-of-range indices.
	ErrInvalidArgument = errors.New("container: invalid argument")

	// ErrOutOfMemory is returned when a configured allocator fails to
	// produce backing storage. The container is left unchanged.
	ErrOutOfMemory = errors.New("container: out of memory")

	// ErrAlreadyExists is returned by Map.Insert for a duplicate key.
	ErrAlreadyExists = errors.New("container: already exists")

	// ErrNotFound is returned when a key or pooled item is absent, and by
	// Pool.Give for a pointer the pool does not manage.
	ErrNotFound = errors.New("container: not found")

	// ErrNoMoreData is returned by an exhausted iterator.
	ErrNoMoreData = errors.New("container: no more data")

	// ErrUnsupported is returned for element types or operations a
	// container cannot support, such as pooling a zero-sized type.
	ErrUnsupported = errors.New("container: unsupported operation")
)
