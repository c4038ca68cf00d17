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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorBasic(t *testing.T) {
	v := NewVector[int](0)
	require.EqualValues(t, 0, v.Len())
	require.EqualValues(t, 0, v.Cap())

	require.NoError(t, v.Push(1, 2, 3))
	require.EqualValues(t, 3, v.Len())
	require.Equal(t, []int{1, 2, 3}, v.Items())

	p, ok := v.At(1)
	require.True(t, ok)
	require.EqualValues(t, 2, *p)
	*p = 20
	require.Equal(t, []int{1, 20, 3}, v.Items())

	_, ok = v.At(3)
	require.False(t, ok)
	_, ok = v.At(-1)
	require.False(t, ok)

	require.ErrorIs(t, v.Push(), ErrInvalidArgument)
}

func TestVectorInsert(t *testing.T) {
	v := NewVector[int](0)
	require.NoError(t, v.Push(1, 5))
	require.NoError(t, v.Insert(1, 2, 3, 4))
	require.Equal(t, []int{1, 2, 3, 4, 5}, v.Items())

	// Insert at the ends.
	require.NoError(t, v.Insert(0, 0))
	require.NoError(t, v.Insert(v.Len(), 6))
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, v.Items())

	require.ErrorIs(t, v.Insert(1), ErrInvalidArgument)
	require.ErrorIs(t, v.Insert(-1, 9), ErrInvalidArgument)
	require.ErrorIs(t, v.Insert(v.Len()+1, 9), ErrInvalidArgument)
}

func TestVectorRemove(t *testing.T) {
	v := NewVector[int](0)
	require.NoError(t, v.Push(0, 1, 2, 3, 4, 5))

	require.NoError(t, v.Remove(1, 2))
	require.Equal(t, []int{0, 3, 4, 5}, v.Items())

	// Removing the second-to-last element must shift the last one down.
	require.NoError(t, v.Remove(v.Len()-2, 1))
	require.Equal(t, []int{0, 3, 5}, v.Items())

	// Removing the last element.
	require.NoError(t, v.Remove(v.Len()-1, 1))
	require.Equal(t, []int{0, 3}, v.Items())

	require.ErrorIs(t, v.Remove(0, 0), ErrInvalidArgument)
	require.ErrorIs(t, v.Remove(1, 2), ErrInvalidArgument)
	require.ErrorIs(t, v.Remove(-1, 1), ErrInvalidArgument)
}

func TestVectorResize(t *testing.T) {
	v := NewVector[int](4)
	require.EqualValues(t, 4, v.Cap())
	require.NoError(t, v.Push(1, 2, 3))

	// Growing the capacity preserves the elements.
	require.NoError(t, v.Resize(10))
	require.EqualValues(t, 10, v.Cap())
	require.Equal(t, []int{1, 2, 3}, v.Items())

	// Shrinking below the length truncates.
	require.NoError(t, v.Resize(2))
	require.EqualValues(t, 2, v.Cap())
	require.Equal(t, []int{1, 2}, v.Items())

	require.NoError(t, v.Resize(0))
	require.EqualValues(t, 0, v.Len())
	require.ErrorIs(t, v.Resize(-1), ErrInvalidArgument)
}

func TestVectorShrink(t *testing.T) {
	v := NewVector[int](100)
	require.NoError(t, v.Push(1, 2, 3))
	require.NoError(t, v.Shrink())
	require.EqualValues(t, 3, v.Cap())
	require.Equal(t, []int{1, 2, 3}, v.Items())
}

func TestVectorGrowth(t *testing.T) {
	v := NewVector[int](0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, v.Push(i))
		require.GreaterOrEqual(t, v.Cap(), v.Len())
	}
	for i := 0; i < 1000; i++ {
		p, ok := v.At(i)
		require.True(t, ok)
		require.EqualValues(t, i, *p)
	}
}

func TestVectorSort(t *testing.T) {
	v := NewVector[int](0)
	perm := rand.Perm(100)
	require.NoError(t, v.Push(perm...))
	v.Sort(func(a, b int) bool { return a < b })
	for i := 0; i < 100; i++ {
		p, _ := v.At(i)
		require.EqualValues(t, i, *p)
	}
}

func TestVectorWrapUnwrap(t *testing.T) {
	s := make([]int, 2, 8)
	s[0], s[1] = 1, 2
	v := WrapVector(s)
	require.EqualValues(t, 2, v.Len())
	require.EqualValues(t, 8, v.Cap())
	require.NoError(t, v.Push(3))

	// The wrapped storage had room, so Push wrote through to it.
	require.Equal(t, []int{1, 2, 3}, s[:3])

	out := v.Unwrap()
	require.Equal(t, []int{1, 2, 3}, out)
	require.EqualValues(t, 0, v.Len())
	require.EqualValues(t, 0, v.Cap())
}

func TestVectorIter(t *testing.T) {
	v := NewVector[int](0)
	require.NoError(t, v.Push(10, 20, 30, 40))

	it := v.Iter()
	var x int
	require.NoError(t, it.Next(&x))
	require.EqualValues(t, 10, x)
	require.NoError(t, it.Nth(&x, 1))
	require.EqualValues(t, 30, x)
	require.NoError(t, it.Next(&x))
	require.EqualValues(t, 40, x)
	require.ErrorIs(t, it.Next(&x), ErrNoMoreData)
}

type countingVectorAllocator struct {
	alloc, free int
	failAfter   int
}

func (a *countingVectorAllocator) Alloc(n int) []int {
	if a.failAfter >= 0 && a.alloc >= a.failAfter {
		return nil
	}
	a.alloc++
	return make([]int, n)
}

func (a *countingVectorAllocator) Free(_ []int) {
	a.free++
}

func TestVectorAllocator(t *testing.T) {
	a := &countingVectorAllocator{failAfter: -1}
	v := NewVector[int](0, WithVectorAllocator[int](Allocator[int](a)))
	for i := 0; i < 1000; i++ {
		require.NoError(t, v.Push(i))
	}
	require.Greater(t, a.alloc, 1)
	require.EqualValues(t, a.alloc-1, a.free)
	v.Close()
	require.EqualValues(t, a.alloc, a.free)
}

func TestVectorAllocationFailure(t *testing.T) {
	a := &countingVectorAllocator{failAfter: 1}
	v := NewVector[int](0, WithVectorAllocator[int](Allocator[int](a)))
	var pushed []int
	sawOOM := false
	for i := 0; i < 100; i++ {
		if err := v.Push(i); err != nil {
			require.ErrorIs(t, err, ErrOutOfMemory)
			sawOOM = true
			break
		}
		pushed = append(pushed, i)
	}
	require.True(t, sawOOM)
	// A failed growth leaves the vector untouched.
	require.Equal(t, pushed, v.Items())
}
