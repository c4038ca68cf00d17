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

// Package container provides a small set of allocator-parametrized generic
// containers for systems programming: a growable contiguous array (Vector),
// an open-addressing hash table (Map) using Swiss-table-style metadata
// matching, a bit-packed boolean set (Bitmap), and a stable-address object
// pool (Pool), plus a pull-based Iterator usable over any of them.
//
// # Map
//
// Map uses open-addressing rather than chaining to handle collisions. The
// table is a flat array of groups; each group holds a 16-byte metadata
// block followed by 16 keys and 16 values. A metadata byte is either empty
// (0), a deletion tombstone (1), or a 1-byte fingerprint (2-255) derived
// from the slot's hash. Probing is linear at group granularity: the hash
// selects a starting group and probing walks successive groups, checking
// all 16 metadata bytes of a group at a time with a vectorized compare
// (SWAR on little-endian hosts, a byte scan elsewhere). A lookup terminates
// as soon as a probed group contains an empty slot: had the key been
// present, insertion discipline would have placed it at or before that
// group.
//
// Deletion writes a tombstone, which keeps probe chains intact but never
// returns growth headroom; a table churned by insert/remove cycles
// therefore rehashes once its headroom is spent, rather than letting probe
// sequences degrade without bound. Growth rehashes every live entry into a
// fresh group array, so no tombstone survives growth.
//
// By default keys are hashed and compared by their raw in-memory bytes
// (FNV-1a for hashing, byte equality for comparison), so the two always
// agree. The byte semantics differ from ==: +0.0 and -0.0 are distinct
// keys and a NaN key equals itself. Keys containing pointers (strings,
// slices, pointer fields) hash and compare by their headers rather than
// their referents, and structs with padding carry unspecified bytes; both
// must install a key-aware hash/equality pair with UseHash before the
// first insert.
//
// None of the containers in this package are goroutine-safe.
package container

import (
	"bytes"
	"fmt"
	"math/bits"
	"strings"
	"unsafe"
)

const (
	mapDebug = false

	// Growth is triggered when live entries would exceed 7/10 of capacity.
	loadFactorNum = 7
	loadFactorDen = 10
)

// Group is one bucket of a Map: a 16-byte metadata block, 16 key slots,
// and 16 value slots. The compiler lays out the padding between the three
// regions that the key and value alignments require. Group is exported
// only so that custom Map allocators can be declared; its contents are
// opaque.
type Group[K comparable, V any] struct {
	meta   metaBlock
	keys   [groupSize]K
	values [groupSize]V
}

// Map is an unordered map from keys to values with Get, Set, Insert,
// Remove, and All operations. It is inspired by Google's Swiss Tables
// design as implemented in Abseil's flat_hash_map.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// hasher hashes raw key bytes. Replaced wholesale by keyHash/keyEqual
	// when a custom pair is installed via UseHash.
	hasher   Hasher
	keyHash  func(key *K, hasher Hasher) uint64
	keyEqual func(a, b *K) bool
	// The allocator for the group array.
	allocator Allocator[Group[K, V]]
	// groups is groupCount in length. groupCount is zero until the first
	// reserve or insert; it is always a power of two afterwards, and
	// groupMask = groupCount-1 turns a hash into a starting group index.
	groups     unsafeSlice[Group[K, V]]
	groupCount int
	groupMask  uintptr
	// The number of filled slots (i.e. the number of elements in the map).
	used int
	// The number of slots we can still fill without needing to rehash.
	//
	// This is stored separately due to tombstones: we do not hand headroom
	// back when a slot is tombstoned because we'd like to rehash when the
	// table fills with tombstones, as otherwise probe sequences could get
	// unacceptably long without triggering a rehash.
	growthLeft int
	// hashInstalled records that UseHash has been called; the pair can be
	// installed at most once.
	hashInstalled bool
}

// NewMap constructs a new Map with the specified initial capacity. If
// initialCapacity is 0 the map will start out with zero capacity and will
// grow on the first insert. The zero value for a Map is not usable.
func NewMap[K comparable, V any](initialCapacity int, options ...MapOption[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hasher:    HashFNV1a,
		allocator: defaultAllocator[Group[K, V]]{},
	}
	for _, op := range options {
		op.apply(m)
	}
	if initialCapacity > 0 {
		// A failing custom allocator leaves the map empty; the first
		// insert will retry the allocation and surface the error.
		_ = m.Reserve(initialCapacity)
	}
	m.checkInvariants()
	return m
}

// FromArrays constructs a Map from parallel key and value slices. Later
// duplicates overwrite earlier ones.
func FromArrays[K comparable, V any](keys []K, values []V, options ...MapOption[K, V]) (*Map[K, V], error) {
	if len(keys) != len(values) {
		return nil, ErrInvalidArgument
	}
	m := NewMap[K, V](len(keys), options...)
	for i := range keys {
		if err := m.Set(keys[i], values[i]); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// Close closes the map, releasing its group array back to its configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	if m.groupCount > 0 {
		m.allocator.Free(m.groups.Slice(0, uintptr(m.groupCount)))
	}
	m.groups = unsafeSlice[Group[K, V]]{}
	m.groupCount = 0
	m.groupMask = 0
	m.used = 0
	m.growthLeft = 0
	m.allocator = nil
}

// UseHash installs a key-aware hash and equality pair, replacing the
// default raw-byte hashing and == comparison. The pair can be installed at
// most once, and only while the map is empty; otherwise UseHash fails with
// ErrInvalidArgument. The two functions must agree: keys that compare equal
// must hash identically.
//
// The hash function receives the map's raw-bytes Hasher so it can delegate
// hashing of the key's relevant bytes to it.
func (m *Map[K, V]) UseHash(hash func(key *K, hasher Hasher) uint64, equals func(a, b *K) bool) error {
	if hash == nil || equals == nil {
		return ErrInvalidArgument
	}
	if m.used > 0 || m.hashInstalled {
		return ErrInvalidArgument
	}
	m.keyHash = hash
	m.keyEqual = equals
	m.hashInstalled = true
	return nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Cap returns the number of slots the map has reserved. Len never exceeds
// 7/10 of Cap.
func (m *Map[K, V]) Cap() int {
	return m.groupCount * groupSize
}

func (m *Map[K, V]) hashKey(key *K) uint64 {
	if m.keyHash != nil {
		return m.keyHash(key, m.hasher)
	}
	return m.hasher(rawKeyBytes(key))
}

// equalKey compares keys with the installed equality func, defaulting to
// raw byte comparison so that equality always agrees with the default
// raw-byte hashing.
func (m *Map[K, V]) equalKey(a, b *K) bool {
	if m.keyEqual != nil {
		return m.keyEqual(a, b)
	}
	return bytes.Equal(rawKeyBytes(a), rawKeyBytes(b))
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if p := m.Ptr(key); p != nil {
		return *p, true
	}
	return value, false
}

// Ptr returns a pointer to the value stored for key, or nil if the key is
// not present. The pointer allows in-place value updates; it is invalidated
// by any operation that can grow the map.
func (m *Map[K, V]) Ptr(key K) *V {
	if m.groupCount == 0 {
		return nil
	}
	h := m.hashKey(&key)
	fp := fingerprint(h)

	// To find the location of a key we construct a probe sequence visiting
	// groups starting at hash&mask. At each group we extract the candidate
	// slots whose metadata byte equals the key's fingerprint and compare
	// their keys; the fingerprint prunes nearly all false candidates before
	// a key comparison is ever performed. A group containing an empty slot
	// proves absence and ends the probe.
	seq := makeProbeSeq(h, m.groupMask)
	if mapDebug {
		fmt.Printf("get(%v): fp=%02x %s\n", key, fp, seq)
	}
	for ; ; seq = seq.next() {
		g := m.groups.At(seq.offset)
		for half := 0; half < 2; half++ {
			match := g.meta.matchByte(half, fp)
			for match != 0 {
				i := uintptr(half<<3) + match.first()
				if m.equalKey(&key, &g.keys[i]) {
					return &g.values[i]
				}
				match = match.removeFirst()
			}
		}
		if g.meta.hasEmpty() {
			return nil
		}
	}
}

// Set sets the value stored for key, inserting it if not present.
func (m *Map[K, V]) Set(key K, value V) error {
	h := m.hashKey(&key)
	fp := fingerprint(h)

	// Set is find composed with uncheckedPut: probe for an existing entry
	// to overwrite, and only when the probe proves absence reserve room and
	// insert an entry known not to be in the table.
	if m.groupCount > 0 {
		seq := makeProbeSeq(h, m.groupMask)
		if mapDebug {
			fmt.Printf("set(%v): fp=%02x %s\n", key, fp, seq)
		}
		for done := false; !done; seq = seq.next() {
			g := m.groups.At(seq.offset)
			for half := 0; half < 2; half++ {
				match := g.meta.matchByte(half, fp)
				for match != 0 {
					i := uintptr(half<<3) + match.first()
					if m.equalKey(&key, &g.keys[i]) {
						g.values[i] = value
						m.checkInvariants()
						return nil
					}
					match = match.removeFirst()
				}
			}
			done = g.meta.hasEmpty()
		}
	}

	if err := m.Reserve(1); err != nil {
		return err
	}
	m.uncheckedPut(h, key, value)
	m.used++
	m.checkInvariants()
	return nil
}

// Insert inserts an entry into the map, failing with ErrAlreadyExists if an
// entry with an equal key is already present. The stored value is never
// modified on failure.
func (m *Map[K, V]) Insert(key K, value V) error {
	h := m.hashKey(&key)
	fp := fingerprint(h)

	if m.groupCount > 0 {
		seq := makeProbeSeq(h, m.groupMask)
		for done := false; !done; seq = seq.next() {
			g := m.groups.At(seq.offset)
			for half := 0; half < 2; half++ {
				match := g.meta.matchByte(half, fp)
				for match != 0 {
					i := uintptr(half<<3) + match.first()
					if m.equalKey(&key, &g.keys[i]) {
						return ErrAlreadyExists
					}
					match = match.removeFirst()
				}
			}
			done = g.meta.hasEmpty()
		}
	}

	if err := m.Reserve(1); err != nil {
		return err
	}
	m.uncheckedPut(h, key, value)
	m.used++
	m.checkInvariants()
	return nil
}

// FastInsert inserts an entry without scanning for an existing equal key.
// It is intended for rehashing and bulk-loading paths where the caller
// guarantees key uniqueness; inserting a duplicate through FastInsert
// leaves the map with two entries for the key and unspecified lookup
// behavior.
func (m *Map[K, V]) FastInsert(key K, value V) error {
	if err := m.Reserve(1); err != nil {
		return err
	}
	m.uncheckedPut(m.hashKey(&key), key, value)
	m.used++
	m.checkInvariants()
	return nil
}

// Remove removes the entry for key, failing with ErrNotFound if no equal
// key is present. The slot is tombstoned: it stays part of probe chains
// until the next growth rehash.
func (m *Map[K, V]) Remove(key K) error {
	if m.groupCount == 0 {
		return ErrNotFound
	}
	h := m.hashKey(&key)
	fp := fingerprint(h)

	seq := makeProbeSeq(h, m.groupMask)
	if mapDebug {
		fmt.Printf("remove(%v): fp=%02x %s\n", key, fp, seq)
	}
	for ; ; seq = seq.next() {
		g := m.groups.At(seq.offset)
		for half := 0; half < 2; half++ {
			match := g.meta.matchByte(half, fp)
			for match != 0 {
				i := uintptr(half<<3) + match.first()
				if m.equalKey(&key, &g.keys[i]) {
					g.meta[i] = metaTombstone
					// Release the key and value so the GC can reclaim
					// what they reference.
					var zeroK K
					var zeroV V
					g.keys[i] = zeroK
					g.values[i] = zeroV
					m.used--
					m.checkInvariants()
					return nil
				}
				match = match.removeFirst()
			}
		}
		if g.meta.hasEmpty() {
			return ErrNotFound
		}
	}
}

// Reserve ensures the map can hold n more entries without exceeding its
// load factor. Growing rehashes every live entry into a fresh group array
// and drops all tombstones; on allocation failure the map is left exactly
// as it was. The capacity never shrinks: when tombstone churn exhausts the
// headroom of a lightly loaded table the rebuild happens at the current
// capacity.
func (m *Map[K, V]) Reserve(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	if n <= m.growthLeft {
		return nil
	}
	return m.grow(max(nextPow2(2*(m.used+n)), m.Cap()))
}

// grow rebuilds the map with newCapacity slots (a power of two, at least
// groupSize). The capacity can equal the current one: that rebuild exists
// to purge tombstones.
func (m *Map[K, V]) grow(newCapacity int) error {
	newGroupCount := newCapacity / groupSize
	raw := m.allocator.Alloc(newGroupCount)
	if raw == nil {
		return ErrOutOfMemory
	}

	if mapDebug {
		fmt.Printf("grow: capacity=%d->%d used=%d\n", m.Cap(), newCapacity, m.used)
	}

	oldGroups, oldGroupCount := m.groups, m.groupCount

	if m.used == 0 {
		// Alloc returns zeroed memory, so every slot is already empty.
		m.groups = makeUnsafeSlice(raw)
		m.groupCount = newGroupCount
		m.groupMask = uintptr(newGroupCount - 1)
		m.growthLeft = maxLoad(newCapacity)
	} else {
		// Build a temporary map over the fresh array and fast-insert every
		// live entry; tombstones are skipped and therefore dropped. The
		// hash and fingerprint of each key are recomputed for the new
		// group mask.
		tmp := Map[K, V]{
			hasher:     m.hasher,
			keyHash:    m.keyHash,
			keyEqual:   m.keyEqual,
			allocator:  m.allocator,
			groups:     makeUnsafeSlice(raw),
			groupCount: newGroupCount,
			groupMask:  uintptr(newGroupCount - 1),
			growthLeft: maxLoad(newCapacity),
		}
		for gi := 0; gi < oldGroupCount; gi++ {
			g := oldGroups.At(uintptr(gi))
			for i := 0; i < groupSize; i++ {
				if g.meta[i] > metaTombstone {
					h := tmp.hashKey(&g.keys[i])
					tmp.uncheckedPut(h, g.keys[i], g.values[i])
					tmp.used++
				}
			}
		}
		m.groups = tmp.groups
		m.groupCount = tmp.groupCount
		m.groupMask = tmp.groupMask
		m.growthLeft = tmp.growthLeft
	}

	if oldGroupCount > 0 {
		m.allocator.Free(oldGroups.Slice(0, uintptr(oldGroupCount)))
	}
	m.checkInvariants()
	return nil
}

// uncheckedPut inserts an entry known not to be in the table: it walks the
// probe sequence to the first group with an empty slot and claims the
// lowest one. Tombstoned slots are stepped over, never reused; growth is
// what reclaims them.
func (m *Map[K, V]) uncheckedPut(h uint64, key K, value V) {
	seq := makeProbeSeq(h, m.groupMask)
	if mapDebug {
		fmt.Printf("put(%v): fp=%02x %s\n", key, fingerprint(h), seq)
	}
	for ; ; seq = seq.next() {
		g := m.groups.At(seq.offset)
		if i, ok := g.meta.firstEmpty(); ok {
			g.meta[i] = fingerprint(h)
			g.keys[i] = key
			g.values[i] = value
			m.growthLeft--
			return
		}
	}
}

// Clear removes all entries from the map, retaining its capacity.
func (m *Map[K, V]) Clear() {
	for gi := 0; gi < m.groupCount; gi++ {
		*m.groups.At(uintptr(gi)) = Group[K, V]{}
	}
	m.used = 0
	m.growthLeft = maxLoad(m.Cap())
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map,
// stopping early if yield returns false. The iteration reads a snapshot of
// the group array taken at the start, so growing the map during iteration
// does not affect which entries are visited.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	groups, groupCount := m.groups, m.groupCount
	for gi := 0; gi < groupCount; gi++ {
		g := groups.At(uintptr(gi))
		for i := 0; i < groupSize; i++ {
			if g.meta[i] > metaTombstone {
				if !yield(g.keys[i], g.values[i]) {
					return
				}
			}
		}
	}
}

// Filter removes every entry for which keep returns false.
func (m *Map[K, V]) Filter(keep func(key K, value V) bool) {
	for gi := 0; gi < m.groupCount; gi++ {
		g := m.groups.At(uintptr(gi))
		for i := 0; i < groupSize; i++ {
			if g.meta[i] > metaTombstone && !keep(g.keys[i], g.values[i]) {
				g.meta[i] = metaTombstone
				var zeroK K
				var zeroV V
				g.keys[i] = zeroK
				g.values[i] = zeroV
				m.used--
			}
		}
	}
	m.checkInvariants()
}

// Iter returns an iterator over the map's values in group-major slot
// order. The iterator reads a snapshot of the current group array; growing
// or mutating the map invalidates it.
func (m *Map[K, V]) Iter() *Iterator[V] {
	groups := m.groups
	end := m.groupCount * groupSize
	it := &Iterator[V]{container: m}
	it.advance = func(it *Iterator[V], out *V, skip int) error {
		skip++
		pos := it.pos
		for pos < end {
			g := groups.At(uintptr(pos / groupSize))
			i := pos % groupSize
			if g.meta[i] > metaTombstone {
				skip--
				if skip == 0 {
					if out != nil {
						*out = g.values[i]
					}
					it.pos = pos + 1
					return nil
				}
			}
			pos++
		}
		it.pos = end
		return ErrNoMoreData
	}
	return it
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		var used, deleted int
		for gi := 0; gi < m.groupCount; gi++ {
			g := m.groups.At(uintptr(gi))
			for i := 0; i < groupSize; i++ {
				switch g.meta[i] {
				case metaTombstone:
					deleted++
				case metaEmpty:
				default:
					if m.Ptr(g.keys[i]) == nil {
						panic(fmt.Sprintf("invariant failed: group %d slot %d: key %v not found [fp=%02x]\n%s",
							gi, i, g.keys[i], g.meta[i], m.debugString()))
					}
					used++
				}
			}
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if m.groupCount > 0 {
			if m.groupCount&(m.groupCount-1) != 0 {
				panic(fmt.Sprintf("invariant failed: group count %d is not a power of two", m.groupCount))
			}
			growthLeft := maxLoad(m.Cap()) - used - deleted
			if growthLeft != m.growthLeft {
				panic(fmt.Sprintf("invariant failed: found %d growthLeft, but expected %d\n%s",
					m.growthLeft, growthLeft, m.debugString()))
			}
			if m.used > maxLoad(m.Cap()) {
				panic(fmt.Sprintf("invariant failed: load factor exceeded: %d/%d", m.used, m.Cap()))
			}
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  growth-left=%d\n", m.Cap(), m.used, m.growthLeft)
	for gi := 0; gi < m.groupCount; gi++ {
		g := m.groups.At(uintptr(gi))
		fmt.Fprintf(&buf, "  group %4d: [% 02x]\n", gi, g.meta[:])
		for i := 0; i < groupSize; i++ {
			if g.meta[i] > metaTombstone {
				fmt.Fprintf(&buf, "    %2d: %v\n", i, g.keys[i])
			}
		}
	}
	return buf.String()
}

// maxLoad returns the number of live entries a table of the given capacity
// may hold before growth is required.
func maxLoad(capacity int) int {
	return capacity * loadFactorNum / loadFactorDen
}

// nextPow2 returns the smallest power of two >= n, and at least groupSize.
func nextPow2(n int) int {
	if n <= groupSize {
		return groupSize
	}
	return 1 << bits.Len(uint(n-1))
}

// probeSeq maintains the state for a probe sequence over the groups of a
// map. Probing is linear at group granularity: the sequence starts at
// hash&mask and visits successive groups mod the group count, so every
// group is visited exactly once before the sequence wraps. Each step
// examines an entire 16-slot group with one metadata match, which is the
// reason slot-by-slot probing is unnecessary.
type probeSeq struct {
	mask   uintptr
	offset uintptr
}

func makeProbeSeq(h uint64, mask uintptr) probeSeq {
	return probeSeq{mask: mask, offset: uintptr(h) & mask}
}

func (s probeSeq) next() probeSeq {
	s.offset = (s.offset + 1) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d", s.mask, s.offset)
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

// Slice returns a Go slice akin to slice[start:end] for a Go builtin slice.
func (s unsafeSlice[T]) Slice(start, end uintptr) []T {
	return unsafe.Slice((*T)(s.ptr), end)[start:end]
}
