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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapBasic(t *testing.T) {
	b := NewBitmap(100)
	require.EqualValues(t, 100, b.Len())
	require.GreaterOrEqual(t, b.Cap(), 100)

	v, err := b.Get(0)
	require.NoError(t, err)
	require.False(t, v)

	require.NoError(t, b.Set(3, true))
	require.NoError(t, b.Set(64, true))
	v, _ = b.Get(3)
	require.True(t, v)
	v, _ = b.Get(64)
	require.True(t, v)
	require.EqualValues(t, 2, b.OnesCount())
	require.EqualValues(t, 98, b.ZerosCount())

	require.NoError(t, b.Set(3, false))
	v, _ = b.Get(3)
	require.False(t, v)

	require.NoError(t, b.Toggle(5))
	v, _ = b.Get(5)
	require.True(t, v)
	require.NoError(t, b.Toggle(5))
	v, _ = b.Get(5)
	require.False(t, v)

	_, err = b.Get(100)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.Get(-1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, b.Set(100, true), ErrInvalidArgument)
	require.ErrorIs(t, b.Toggle(100), ErrInvalidArgument)
}

func TestBitmapResize(t *testing.T) {
	b := NewBitmap(0)
	require.EqualValues(t, 0, b.Len())

	require.NoError(t, b.Resize(10))
	require.NoError(t, b.Set(9, true))

	// Growing preserves existing bits; new bits are zero.
	require.NoError(t, b.Resize(200))
	v, _ := b.Get(9)
	require.True(t, v)
	for i := 10; i < 200; i++ {
		v, err := b.Get(i)
		require.NoError(t, err)
		require.False(t, v)
	}

	// Shrinking drops bits; growing back does not resurrect them.
	require.NoError(t, b.Set(150, true))
	require.NoError(t, b.Resize(100))
	require.EqualValues(t, 100, b.Len())
	require.NoError(t, b.Resize(200))
	v, _ = b.Get(150)
	require.False(t, v)

	require.ErrorIs(t, b.Resize(-1), ErrInvalidArgument)
}

func TestBitmapReserve(t *testing.T) {
	b := NewBitmap(10)
	require.ErrorIs(t, b.Reserve(0), ErrInvalidArgument)

	require.NoError(t, b.Reserve(1000))
	require.EqualValues(t, 10, b.Len())
	require.GreaterOrEqual(t, b.Cap(), 1010)

	// Resizing within the reserved capacity must not reallocate.
	capacity := b.Cap()
	require.NoError(t, b.Resize(1010))
	require.EqualValues(t, capacity, b.Cap())
}

func TestBitmapFirstScans(t *testing.T) {
	b := NewBitmap(130)

	_, ok := b.FirstOne()
	require.False(t, ok)
	i, ok := b.FirstZero()
	require.True(t, ok)
	require.EqualValues(t, 0, i)

	require.NoError(t, b.Set(77, true))
	i, ok = b.FirstOne()
	require.True(t, ok)
	require.EqualValues(t, 77, i)

	require.NoError(t, b.SetRange(0, 130, true))
	_, ok = b.FirstZero()
	require.False(t, ok)
	i, ok = b.FirstOne()
	require.True(t, ok)
	require.EqualValues(t, 0, i)

	require.NoError(t, b.Set(64, false))
	i, ok = b.FirstZero()
	require.True(t, ok)
	require.EqualValues(t, 64, i)
}

func TestBitmapSetRange(t *testing.T) {
	b := NewBitmap(256)
	require.NoError(t, b.SetRange(10, 100, true))
	for i := 0; i < 256; i++ {
		v, _ := b.Get(i)
		require.Equal(t, i >= 10 && i < 110, v, "bit %d", i)
	}
	require.NoError(t, b.SetRange(50, 10, false))
	for i := 0; i < 256; i++ {
		v, _ := b.Get(i)
		require.Equal(t, (i >= 10 && i < 50) || (i >= 60 && i < 110), v, "bit %d", i)
	}

	require.ErrorIs(t, b.SetRange(0, 0, true), ErrInvalidArgument)
	require.ErrorIs(t, b.SetRange(-1, 5, true), ErrInvalidArgument)
	require.ErrorIs(t, b.SetRange(250, 10, true), ErrInvalidArgument)
}

func TestBitmapLogicOps(t *testing.T) {
	const n = 200
	a, b := NewBitmap(n), NewBitmap(n)
	ea, eb := make([]bool, n), make([]bool, n)
	for i := 0; i < n; i++ {
		if rand.Intn(2) == 0 {
			require.NoError(t, a.Set(i, true))
			ea[i] = true
		}
		if rand.Intn(2) == 0 {
			require.NoError(t, b.Set(i, true))
			eb[i] = true
		}
	}

	and := NewBitmap(n)
	require.NoError(t, and.Or(a))
	require.NoError(t, and.And(b))
	or := NewBitmap(n)
	require.NoError(t, or.Or(a))
	require.NoError(t, or.Or(b))
	xor := NewBitmap(n)
	require.NoError(t, xor.Or(a))
	require.NoError(t, xor.Xor(b))

	for i := 0; i < n; i++ {
		v, _ := and.Get(i)
		require.Equal(t, ea[i] && eb[i], v, "and bit %d", i)
		v, _ = or.Get(i)
		require.Equal(t, ea[i] || eb[i], v, "or bit %d", i)
		v, _ = xor.Get(i)
		require.Equal(t, ea[i] != eb[i], v, "xor bit %d", i)
	}

	short := NewBitmap(n - 1)
	require.ErrorIs(t, a.And(short), ErrInvalidArgument)
	require.ErrorIs(t, a.Or(nil), ErrInvalidArgument)
}

func TestBitmapInvert(t *testing.T) {
	// A length that is not a multiple of 64 exercises the tail word: the
	// bits beyond the length must stay zero through Invert.
	b := NewBitmap(70)
	require.NoError(t, b.Set(0, true))
	b.Invert()
	v, _ := b.Get(0)
	require.False(t, v)
	for i := 1; i < 70; i++ {
		v, _ := b.Get(i)
		require.True(t, v)
	}
	require.EqualValues(t, 69, b.OnesCount())
	b.Invert()
	require.EqualValues(t, 1, b.OnesCount())
}

// buildBitmap returns a bitmap holding the model's bits.
func buildBitmap(t *testing.T, model []bool) *Bitmap {
	t.Helper()
	b := NewBitmap(len(model))
	for i, v := range model {
		if v {
			require.NoError(t, b.Set(i, true))
		}
	}
	return b
}

func checkBitmap(t *testing.T, b *Bitmap, model []bool) {
	t.Helper()
	require.EqualValues(t, len(model), b.Len())
	for i, want := range model {
		got, err := b.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "bit %d", i)
	}
}

func TestBitmapShift(t *testing.T) {
	// A length spanning three words with a partial tail word.
	const n = 130
	model := make([]bool, n)
	for i := range model {
		model[i] = rand.Intn(2) == 0
	}

	for _, shift := range []int{0, 1, 63, 64, 65, 129, 130, 200} {
		t.Run(fmt.Sprintf("right=%d", shift), func(t *testing.T) {
			b := buildBitmap(t, model)
			require.NoError(t, b.ShiftRight(shift))
			want := make([]bool, n)
			for i := range want {
				if i+shift < n {
					want[i] = model[i+shift]
				}
			}
			checkBitmap(t, b, want)
		})
		t.Run(fmt.Sprintf("left=%d", shift), func(t *testing.T) {
			b := buildBitmap(t, model)
			require.NoError(t, b.ShiftLeft(shift))
			want := make([]bool, n)
			for i := range want {
				if i-shift >= 0 {
					want[i] = model[i-shift]
				}
			}
			checkBitmap(t, b, want)
		})
	}

	b := buildBitmap(t, model)
	require.ErrorIs(t, b.ShiftRight(-1), ErrInvalidArgument)
	require.ErrorIs(t, b.ShiftLeft(-1), ErrInvalidArgument)
}

func TestBitmapRotate(t *testing.T) {
	const n = 130
	model := make([]bool, n)
	for i := range model {
		model[i] = rand.Intn(2) == 0
	}

	for _, rot := range []int{0, 1, 63, 64, 65, 129, 130, 333} {
		t.Run(fmt.Sprintf("left=%d", rot), func(t *testing.T) {
			b := buildBitmap(t, model)
			require.NoError(t, b.RotateLeft(rot))
			want := make([]bool, n)
			for i := range model {
				want[(i+rot)%n] = model[i]
			}
			checkBitmap(t, b, want)
		})
		t.Run(fmt.Sprintf("right=%d", rot), func(t *testing.T) {
			b := buildBitmap(t, model)
			require.NoError(t, b.RotateRight(rot))
			want := make([]bool, n)
			for i := range model {
				want[((i-rot)%n+n)%n] = model[i]
			}
			checkBitmap(t, b, want)
		})
	}

	b := buildBitmap(t, model)
	require.ErrorIs(t, b.RotateLeft(-1), ErrInvalidArgument)
	require.ErrorIs(t, b.RotateRight(-1), ErrInvalidArgument)
}

func TestBitmapParity(t *testing.T) {
	b := NewBitmap(100)
	require.EqualValues(t, 0, b.Parity())
	require.NoError(t, b.Set(3, true))
	require.EqualValues(t, 1, b.Parity())
	require.NoError(t, b.Set(77, true))
	require.EqualValues(t, 0, b.Parity())
}

func TestBitmapSlice(t *testing.T) {
	b := NewBitmap(200)
	require.NoError(t, b.SetRange(60, 80, true))

	s, err := b.Slice(50, 100)
	require.NoError(t, err)
	defer s.Close()
	require.EqualValues(t, 100, s.Len())
	for i := 0; i < 100; i++ {
		v, err := s.Get(i)
		require.NoError(t, err)
		require.Equal(t, i >= 10 && i < 90, v, "bit %d", i)
	}

	// The slice is a copy: mutating it leaves the source alone.
	require.NoError(t, s.Set(0, true))
	v, err := b.Get(50)
	require.NoError(t, err)
	require.False(t, v)

	_, err = b.Slice(-1, 10)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.Slice(150, 51)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = b.Slice(0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

type countingWordAllocator struct {
	alloc, free int
	failAfter   int
}

func (a *countingWordAllocator) Alloc(n int) []uint64 {
	if a.failAfter >= 0 && a.alloc >= a.failAfter {
		return nil
	}
	a.alloc++
	return make([]uint64, n)
}

func (a *countingWordAllocator) Free(_ []uint64) {
	a.free++
}

func TestBitmapAllocator(t *testing.T) {
	a := &countingWordAllocator{failAfter: -1}
	b := NewBitmap(0, WithBitmapAllocator(Allocator[uint64](a)))
	for i := 1; i <= 1000; i++ {
		require.NoError(t, b.Resize(i))
		require.NoError(t, b.Set(i-1, true))
	}
	require.EqualValues(t, 1000, b.OnesCount())
	require.EqualValues(t, a.alloc-1, a.free)
	b.Close()
	require.EqualValues(t, a.alloc, a.free)
}

func TestBitmapAllocationFailure(t *testing.T) {
	a := &countingWordAllocator{failAfter: 1}
	b := NewBitmap(64, WithBitmapAllocator(Allocator[uint64](a)))
	require.NoError(t, b.Set(63, true))
	require.ErrorIs(t, b.Resize(65), ErrOutOfMemory)
	// A failed growth leaves the bitmap untouched.
	require.EqualValues(t, 64, b.Len())
	v, err := b.Get(63)
	require.NoError(t, err)
	require.True(t, v)
}
