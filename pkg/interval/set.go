// Copyright 2026 The memlayout Authors.
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

package interval

import (
	"math/rand"

	"github.com/google/btree"
)

const btreeDegree = 32

// Set is an ordered collection of non-overlapping Intervals. It has no
// concept of allocation state — a caller that needs "unmapped" vs
// "mapped" vs "allocated" tracking keeps one Set per state, as
// pkg/pagetable does.
//
// A Set is not safe for concurrent use; see the package-level concurrency
// note in pkg/pagetable.
type Set struct {
	rng             *rand.Rand
	tree            *btree.BTreeG[Interval]
	defaultMetadata map[string]any
}

func less(a, b Interval) bool {
	return a.Start < b.Start
}

// NewSet returns an empty Set. rng drives every randomized placement
// decision made by FindRegion/FindAndRemove; callers that need
// deterministic output across runs must seed it themselves.
func NewSet(rng *rand.Rand, defaultMetadata map[string]any) *Set {
	return &Set{
		rng:             rng,
		tree:            btree.NewG(btreeDegree, less),
		defaultMetadata: cloneMetadata(defaultMetadata),
	}
}

// NewSeededSet returns a Set pre-populated with a single Interval covering
// [start, start+size).
func NewSeededSet(rng *rand.Rand, start, size uint64, defaultMetadata map[string]any) *Set {
	s := NewSet(rng, defaultMetadata)
	s.AddRegion(start, size, nil)
	return s
}

func (s *Set) mergedMetadata(metadata map[string]any) map[string]any {
	out := cloneMetadata(s.defaultMetadata)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

// AddRegion adds [start, start+size) with the given metadata (merged over
// the Set's default metadata), coalescing it with any adjacent interval
// that carries identical metadata. It is a no-op for size 0.
func (s *Set) AddRegion(start, size uint64, metadata map[string]any) {
	if size == 0 {
		return
	}
	iv := New(start, size, s.mergedMetadata(metadata))

	var pred Interval
	havePred := false
	s.tree.DescendLessOrEqual(Interval{Start: iv.Start}, func(item Interval) bool {
		if item.Start < iv.Start {
			pred = item
			havePred = true
		}
		return false
	})
	if havePred && iv.CanMergeWith(pred) {
		s.tree.Delete(pred)
		iv = iv.MergeWith(pred)
	}

	var succ Interval
	haveSucc := false
	s.tree.AscendGreaterOrEqual(Interval{Start: iv.Start}, func(item Interval) bool {
		succ = item
		haveSucc = true
		return false
	})
	if haveSucc && iv.CanMergeWith(succ) {
		s.tree.Delete(succ)
		iv = iv.MergeWith(succ)
	}

	s.tree.ReplaceOrInsert(iv)
}

// overlapping returns every tracked Interval that overlaps
// [start, start+size), in ascending order.
func (s *Set) overlapping(start, size uint64) []Interval {
	end := start + size
	var result []Interval

	var pred Interval
	havePred := false
	s.tree.DescendLessOrEqual(Interval{Start: start}, func(item Interval) bool {
		if item.Start < start {
			pred = item
			havePred = true
		}
		return false
	})
	if havePred && pred.End() > start {
		result = append(result, pred)
	}

	s.tree.AscendRange(Interval{Start: start}, Interval{Start: end}, func(item Interval) bool {
		result = append(result, item)
		return true
	})
	return result
}

// RemoveRegion removes [start, start+size) from the Set, splitting any
// interval it partially overlaps. It reports whether anything was removed.
func (s *Set) RemoveRegion(start, size uint64) bool {
	if size == 0 {
		return false
	}
	ovl := s.overlapping(start, size)
	if len(ovl) == 0 {
		return false
	}
	for _, iv := range ovl {
		s.tree.Delete(iv)
		switch {
		case iv.Contains(start, size):
			before, _, after, hasBefore, hasAfter := iv.SplitAt(start, size)
			if hasBefore {
				s.tree.ReplaceOrInsert(before)
			}
			if hasAfter {
				s.tree.ReplaceOrInsert(after)
			}
		case start <= iv.Start && start+size >= iv.End():
			// iv fully consumed, nothing to reinsert.
		case start <= iv.Start:
			remStart := start + size
			remSize := iv.End() - remStart
			if remSize > 0 {
				s.tree.ReplaceOrInsert(New(remStart, remSize, iv.Metadata))
			}
		default:
			remSize := start - iv.Start
			if remSize > 0 {
				s.tree.ReplaceOrInsert(New(iv.Start, remSize, iv.Metadata))
			}
		}
	}
	return true
}

type candidate struct {
	iv          Interval
	first, last uint64
}

func (s *Set) suitableIntervals(size, alignment uint64, criteria map[string]any) []candidate {
	var out []candidate
	s.tree.Ascend(func(iv Interval) bool {
		if !iv.MatchesCriteria(criteria) || iv.Size < size {
			return true
		}
		if alignment > 1 {
			first := (iv.Start + alignment - 1) &^ (alignment - 1)
			maxStart := iv.Start + iv.Size - size
			last := maxStart &^ (alignment - 1)
			if first <= last {
				out = append(out, candidate{iv, first, last})
			}
		} else {
			maxStart := iv.Start + iv.Size - size
			out = append(out, candidate{iv, iv.Start, maxStart})
		}
		return true
	})
	return out
}

func randInclusive(rng *rand.Rand, lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	span := hi - lo + 1
	return lo + uint64(rng.Int63n(int64(span)))
}

// FindRegion locates, but does not remove, a region of size bytes matching
// criteria. If alignmentBits > 0 the returned start is aligned to
// 1<<alignmentBits. Among several fitting intervals, and among several
// fitting positions within the chosen interval, the result is picked
// uniformly at random via the Set's injected rng. Returns ErrNotFound if
// no region fits.
func (s *Set) FindRegion(size uint64, alignmentBits int, criteria map[string]any) (uint64, error) {
	if size == 0 {
		return 0, ErrNotFound
	}
	alignment := uint64(1)
	if alignmentBits > 0 {
		alignment = 1 << uint(alignmentBits)
	}

	suitable := s.suitableIntervals(size, alignment, criteria)
	if len(suitable) == 0 {
		return 0, ErrNotFound
	}

	chosen := 0
	if len(suitable) > 1 {
		chosen = s.rng.Intn(len(suitable))
	}
	c := suitable[chosen]

	switch {
	case alignment > 1 && c.first != c.last:
		count := (c.last-c.first)/alignment + 1
		offset := uint64(s.rng.Int63n(int64(count))) * alignment
		return c.first + offset, nil
	case alignment <= 1:
		maxStart := c.iv.Start + c.iv.Size - size
		return randInclusive(s.rng, c.iv.Start, maxStart), nil
	default:
		return c.first, nil
	}
}

// FindAndRemove finds a region exactly as FindRegion does, then removes
// it from the Set before returning its start address.
func (s *Set) FindAndRemove(size uint64, alignmentBits int, criteria map[string]any) (uint64, error) {
	start, err := s.FindRegion(size, alignmentBits, criteria)
	if err != nil {
		return 0, err
	}
	s.RemoveRegion(start, size)
	return start, nil
}

// SplitRegion carves [start, start+size) out of whichever tracked
// Interval fully contains it and returns that carved-out piece, leaving
// any remainder(s) in the Set. Unlike RemoveRegion, the carved piece is
// returned rather than discarded.
func (s *Set) SplitRegion(start, size uint64) (Interval, error) {
	if size == 0 {
		return Interval{}, ErrNotContained
	}
	var containing Interval
	found := false
	s.tree.DescendLessOrEqual(Interval{Start: start}, func(iv Interval) bool {
		if iv.Contains(start, size) {
			containing = iv
			found = true
		}
		return false
	})
	if !found {
		return Interval{}, ErrNotContained
	}
	s.tree.Delete(containing)
	before, middle, after, hasBefore, hasAfter := containing.SplitAt(start, size)
	if hasBefore {
		s.tree.ReplaceOrInsert(before)
	}
	if hasAfter {
		s.tree.ReplaceOrInsert(after)
	}
	return middle, nil
}

// ContainsRegion reports whether [start, start+size) is fully covered by
// a single tracked Interval matching criteria.
func (s *Set) ContainsRegion(start, size uint64, criteria map[string]any) bool {
	if size == 0 {
		return true
	}
	found := false
	s.tree.DescendLessOrEqual(Interval{Start: start}, func(iv Interval) bool {
		if !iv.MatchesCriteria(criteria) {
			return false
		}
		found = iv.Contains(start, size)
		return false
	})
	return found
}

// GetIntervals returns every tracked Interval matching criteria, in
// ascending start order, with independently-owned metadata maps.
func (s *Set) GetIntervals(criteria map[string]any) []Interval {
	var out []Interval
	s.tree.Ascend(func(iv Interval) bool {
		if iv.MatchesCriteria(criteria) {
			out = append(out, New(iv.Start, iv.Size, iv.Metadata))
		}
		return true
	})
	return out
}

// GetTotalSize sums the size of every tracked Interval matching criteria.
func (s *Set) GetTotalSize(criteria map[string]any) uint64 {
	var total uint64
	s.tree.Ascend(func(iv Interval) bool {
		if iv.MatchesCriteria(criteria) {
			total += iv.Size
		}
		return true
	})
	return total
}

// UpdateMetadata merges metadata into every tracked Interval overlapping
// [start, start+size), reporting whether any interval was touched.
func (s *Set) UpdateMetadata(start, size uint64, metadata map[string]any) bool {
	if size == 0 {
		return false
	}
	ovl := s.overlapping(start, size)
	for _, iv := range ovl {
		s.tree.Delete(iv)
		merged := iv.CloneMetadata()
		for k, v := range metadata {
			merged[k] = v
		}
		s.tree.ReplaceOrInsert(New(iv.Start, iv.Size, merged))
	}
	return len(ovl) > 0
}

// Clear drops every tracked Interval.
func (s *Set) Clear() {
	s.tree.Clear(false)
}

// IsEmpty reports whether the Set tracks no Intervals.
func (s *Set) IsEmpty() bool {
	return s.tree.Len() == 0
}

// Stats summarizes the Intervals currently tracked by a Set.
type Stats struct {
	Count          int
	TotalSize      uint64
	MinSize        uint64
	MaxSize        uint64
	MetadataCounts map[string]map[any]int
}

// GetStats computes a Stats snapshot over every tracked Interval.
func (s *Set) GetStats() Stats {
	stats := Stats{MetadataCounts: map[string]map[any]int{}}
	first := true
	s.tree.Ascend(func(iv Interval) bool {
		stats.Count++
		stats.TotalSize += iv.Size
		if first || iv.Size < stats.MinSize {
			stats.MinSize = iv.Size
		}
		if first || iv.Size > stats.MaxSize {
			stats.MaxSize = iv.Size
		}
		first = false
		for k, v := range iv.Metadata {
			if stats.MetadataCounts[k] == nil {
				stats.MetadataCounts[k] = map[any]int{}
			}
			stats.MetadataCounts[k][v]++
		}
		return true
	})
	return stats
}
