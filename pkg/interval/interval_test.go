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

import "testing"

func TestIntervalContainsAndOverlaps(t *testing.T) {
	iv := New(0x1000, 0x1000, nil)

	if !iv.Contains(0x1000, 0x1000) {
		t.Error("Contains should be true for the exact interval")
	}
	if !iv.Contains(0x1500, 0x100) {
		t.Error("Contains should be true for a sub-range")
	}
	if iv.Contains(0x1000, 0x1001) {
		t.Error("Contains should be false when the range extends past the end")
	}
	if !iv.Overlaps(0xf00, 0x200) {
		t.Error("Overlaps should be true when the region straddles the start")
	}
	if iv.Overlaps(0x2000, 0x100) {
		t.Error("Overlaps should be false for a disjoint region")
	}
}

func TestIntervalCanMergeWith(t *testing.T) {
	a := New(0x1000, 0x1000, map[string]any{"type": "code"})
	b := New(0x2000, 0x1000, map[string]any{"type": "code"})
	c := New(0x2000, 0x1000, map[string]any{"type": "data"})
	d := New(0x3000, 0x1000, map[string]any{"type": "code"})

	if !a.CanMergeWith(b) {
		t.Error("adjacent intervals with identical metadata should merge")
	}
	if a.CanMergeWith(c) {
		t.Error("adjacent intervals with different metadata should not merge")
	}
	if a.CanMergeWith(d) {
		t.Error("non-adjacent intervals should not merge")
	}
}

func TestIntervalMergeWith(t *testing.T) {
	a := New(0x1000, 0x1000, map[string]any{"type": "code"})
	b := New(0x2000, 0x1000, map[string]any{"type": "code"})

	merged := a.MergeWith(b)
	if merged.Start != 0x1000 || merged.Size != 0x2000 {
		t.Errorf("merged = {0x%x, 0x%x}, want {0x1000, 0x2000}", merged.Start, merged.Size)
	}
}

func TestIntervalSplitAt(t *testing.T) {
	iv := New(0x1000, 0x3000, map[string]any{"type": "code"})

	before, middle, after, hasBefore, hasAfter := iv.SplitAt(0x2000, 0x1000)
	if !hasBefore || before.Start != 0x1000 || before.Size != 0x1000 {
		t.Errorf("before = %v, hasBefore = %v", before, hasBefore)
	}
	if middle.Start != 0x2000 || middle.Size != 0x1000 {
		t.Errorf("middle = %v", middle)
	}
	if !hasAfter || after.Start != 0x3000 || after.Size != 0x1000 {
		t.Errorf("after = %v, hasAfter = %v", after, hasAfter)
	}

	_, _, _, hasBefore2, hasAfter2 := iv.SplitAt(0x1000, 0x3000)
	if hasBefore2 || hasAfter2 {
		t.Errorf("splitting the whole interval should produce no remainder, got before=%v after=%v", hasBefore2, hasAfter2)
	}
}

func TestIntervalMatchesCriteria(t *testing.T) {
	iv := New(0x1000, 0x1000, map[string]any{"type": "code", "permissions": "rx"})

	if !iv.MatchesCriteria(nil) {
		t.Error("nil criteria should always match")
	}
	if !iv.MatchesCriteria(map[string]any{"type": "code"}) {
		t.Error("matching subset of metadata should match")
	}
	if iv.MatchesCriteria(map[string]any{"type": "data"}) {
		t.Error("mismatched value should not match")
	}
	if iv.MatchesCriteria(map[string]any{"cache": "none"}) {
		t.Error("missing key should not match")
	}
}
