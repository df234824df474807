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

package segment

import (
	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/page"
)

// filterCrossCoreData returns the subset of pages marked cross-core.
func filterCrossCoreData(pages []page.Page) []page.Page {
	var out []page.Page
	for _, p := range pages {
		if p.IsCrossCore {
			out = append(out, p)
		}
	}
	return out
}

type containedInterval struct {
	start, size uint64
}

// containedIntervals returns every portion of nonAllocated that overlaps
// p's VA range and is at least minSize bytes, one entry per overlapping
// source interval (mirroring the source's contained_intervals list: a
// page can straddle several non-allocated ranges, and each qualifying
// overlap is a distinct candidate, not merged into one).
func containedIntervals(nonAllocated []interval.Interval, p page.Page, minSize uint64) []containedInterval {
	var out []containedInterval
	pageEnd := p.EndVA()
	for _, iv := range nonAllocated {
		ivEnd := iv.End() - 1
		if ivEnd < p.VA || iv.Start > pageEnd {
			continue
		}
		start := maxU64(iv.Start, p.VA)
		end := minU64(ivEnd, pageEnd)
		size := end - start + 1
		if size >= minSize {
			out = append(out, containedInterval{start, size})
		}
	}
	return out
}

func alignUp(v, alignment uint64) uint64 {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
}

func alignDown(v, alignment uint64) uint64 {
	if alignment <= 1 {
		return v
	}
	return v &^ (alignment - 1)
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
