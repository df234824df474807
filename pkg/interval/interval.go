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

// Package interval provides a generic half-open address-range store with
// per-range metadata. It tracks ranges only; it has no notion of
// allocation state, page sizes, or execution contexts — callers build that
// on top by keeping separate Sets for each state they care about.
package interval

import (
	"github.com/mohae/deepcopy"
)

// Interval is a half-open range [Start, Start+Size) tagged with metadata.
// Metadata values must be comparable (strings, ints, bools, enums) so two
// Intervals can be compared for merge compatibility with a plain map
// equality check.
type Interval struct {
	Start    uint64
	Size     uint64
	Metadata map[string]any
}

// New returns an Interval with a defensive copy of metadata.
func New(start, size uint64, metadata map[string]any) Interval {
	return Interval{Start: start, Size: size, Metadata: cloneMetadata(metadata)}
}

// End returns the exclusive end address of iv.
func (iv Interval) End() uint64 {
	return iv.Start + iv.Size
}

// Contains reports whether iv fully contains [start, start+size).
func (iv Interval) Contains(start, size uint64) bool {
	return iv.Start <= start && start+size <= iv.End()
}

// Overlaps reports whether iv overlaps [start, start+size).
func (iv Interval) Overlaps(start, size uint64) bool {
	return !(iv.End() <= start || iv.Start >= start+size)
}

// IsAdjacent reports whether iv and other touch with no gap.
func (iv Interval) IsAdjacent(other Interval) bool {
	return iv.End() == other.Start || other.End() == iv.Start
}

// CanMergeWith reports whether iv and other are adjacent and carry
// identical metadata, making them a single logical range.
func (iv Interval) CanMergeWith(other Interval) bool {
	return iv.IsAdjacent(other) && metadataEqual(iv.Metadata, other.Metadata)
}

// MergeWith merges iv and other into a single Interval spanning both.
// The caller must check CanMergeWith first.
func (iv Interval) MergeWith(other Interval) Interval {
	start := min(iv.Start, other.Start)
	end := max(iv.End(), other.End())
	return New(start, end-start, iv.Metadata)
}

// SplitAt splits iv at [splitStart, splitStart+splitSize), which must be
// fully contained in iv. It returns the leading remainder, the requested
// middle piece, and the trailing remainder. before/after are the zero
// Interval, with hasBefore/hasAfter false, when they would have zero size.
func (iv Interval) SplitAt(splitStart, splitSize uint64) (before, middle, after Interval, hasBefore, hasAfter bool) {
	splitEnd := splitStart + splitSize
	if splitStart > iv.Start {
		before = New(iv.Start, splitStart-iv.Start, iv.Metadata)
		hasBefore = true
	}
	middle = New(splitStart, splitSize, iv.Metadata)
	if splitEnd < iv.End() {
		after = New(splitEnd, iv.End()-splitEnd, iv.Metadata)
		hasAfter = true
	}
	return before, middle, after, hasBefore, hasAfter
}

// MatchesCriteria reports whether iv's metadata contains every key/value
// pair in criteria. An empty or nil criteria always matches.
func (iv Interval) MatchesCriteria(criteria map[string]any) bool {
	for k, v := range criteria {
		got, ok := iv.Metadata[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// CloneMetadata returns a deep copy of iv's metadata map, safe for the
// caller to mutate without affecting iv.
func (iv Interval) CloneMetadata() map[string]any {
	return cloneMetadata(iv.Metadata)
}

func cloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}

func metadataEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}
