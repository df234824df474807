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

// Package pagetable implements the per-core Page Table and the
// process-wide Page-Table Manager as one package: the two are mutually
// recursive (a page table's own allocations need the manager's physical
// address space, and the manager's cross-core fan-out touches every
// page table), so splitting them into separate packages would force an
// import cycle. A PageTable never reaches into another PageTable
// directly; it always goes through its owning Manager.
//
// Neither type is safe for concurrent use. The engine is a single-writer
// planning tool run once per target image, not a live MMU driver, so no
// locking is included; a caller that shares a Manager across goroutines
// must serialize its own access.
package pagetable

import (
	"fmt"

	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/page"
)

// PageTable tracks one core's virtual address space: which ranges are
// unmapped, mapped-but-not-yet-allocated-to-a-segment, and allocated, plus
// the concrete Pages backing every mapped range.
type PageTable struct {
	mgr *Manager

	Name             string
	CoreID           string
	ExecutionContext memattr.ExecutionContext

	unmappedVA     *interval.Set
	mappedVA       *interval.Set
	nonAllocatedVA *interval.Set
	allocatedVA    *interval.Set

	pages       []page.Page
	pagesByType map[memattr.PageType][]page.Page

	attributes map[string]any
}

// IsMapped reports whether [va, va+size) is entirely mapped to physical
// memory (i.e. not part of the unmapped VA range).
func (pt *PageTable) IsMapped(va, size uint64) bool {
	return !pt.unmappedVA.ContainsRegion(va, size, nil) && pt.mappedVA.ContainsRegion(va, size, nil)
}

// IsAllocated reports whether [va, va+size) has been handed to a segment.
func (pt *PageTable) IsAllocated(va, size uint64) bool {
	return pt.allocatedVA.ContainsRegion(va, size, nil)
}

// FindAvailableRegion locates, without reserving, an unmapped VA region of
// size bytes aligned to 1<<alignmentBits.
func (pt *PageTable) FindAvailableRegion(size uint64, alignmentBits int) (uint64, error) {
	start, err := pt.unmappedVA.FindRegion(size, alignmentBits, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfVA, err)
	}
	return start, nil
}

// Pages returns every Page this table has allocated, in allocation order.
func (pt *PageTable) Pages() []page.Page {
	out := make([]page.Page, len(pt.pages))
	copy(out, pt.pages)
	return out
}

// PagesByType returns every Page of the given type this table has
// allocated, in allocation order.
func (pt *PageTable) PagesByType(t memattr.PageType) []page.Page {
	src := pt.pagesByType[t]
	out := make([]page.Page, len(src))
	copy(out, src)
	return out
}

// PageByPA returns the first allocated Page whose physical range contains
// pa, used by cross-core segment allocation to locate each page table's
// local copy of a shared cross-core page.
func (pt *PageTable) PageByPA(pa uint64) (page.Page, bool) {
	for _, p := range pt.pages {
		if p.ContainsPA(pa) {
			return p, true
		}
	}
	return page.Page{}, false
}

// NonAllocatedIntervals exposes the page table's non-allocated VA ranges
// matching criteria, for callers (pkg/segment) that need to search within
// a sub-range of already-mapped memory rather than through AllocateSegment
// directly.
func (pt *PageTable) NonAllocatedIntervals(criteria map[string]any) []interval.Interval {
	return pt.nonAllocatedVA.GetIntervals(criteria)
}

// MarkAllocated moves [va, va+size) from non-allocated to allocated on
// this page table's VA side, without touching the manager's PA side. It
// is exposed for callers (pkg/segment's cross-core path) that compute the
// PA side's bookkeeping themselves because it must happen exactly once
// across many page tables, not once per page table.
func (pt *PageTable) MarkAllocated(va, size uint64, pageType memattr.PageType) {
	meta := map[string]any{"page_type": pageType.String(), "page_table": pt.Name}
	pt.nonAllocatedVA.RemoveRegion(va, size)
	pt.allocatedVA.AddRegion(va, size, meta)
}

// SetAttribute records a custom, engine-opaque attribute on the page
// table, e.g. a board-specific boot flag.
func (pt *PageTable) SetAttribute(key string, value any) {
	if pt.attributes == nil {
		pt.attributes = map[string]any{}
	}
	pt.attributes[key] = value
}

// GetAttribute retrieves a custom attribute previously set via
// SetAttribute.
func (pt *PageTable) GetAttribute(key string) (any, bool) {
	v, ok := pt.attributes[key]
	return v, ok
}

// MemoryStats summarizes this page table's VA bookkeeping and page
// inventory.
func (pt *PageTable) MemoryStats() MemoryStats {
	byType := map[string]int{}
	for t, pages := range pt.pagesByType {
		byType[t.String()] = len(pages)
	}
	return MemoryStats{
		MappedVA:        pt.mappedVA.GetTotalSize(nil),
		UnmappedVA:      pt.unmappedVA.GetTotalSize(nil),
		AllocatedVA:     pt.allocatedVA.GetTotalSize(nil),
		NonAllocatedVA:  pt.nonAllocatedVA.GetTotalSize(nil),
		PageCount:       len(pt.pages),
		PageCountByType: byType,
	}
}

func (pt *PageTable) String() string {
	return fmt.Sprintf("PageTable(name=%s, core=%s, ctx=%s, pages=%d)",
		pt.Name, pt.CoreID, pt.ExecutionContext, len(pt.pages))
}

// AllocatePage reserves one or more (SequentialPageCount) same-sized pages
// of the given type, choosing VA and PA independently unless opts.VAEqPA
// requests an identity mapping. On any failure the page table and manager
// state are left exactly as they were before the call.
func (pt *PageTable) AllocatePage(pageType memattr.PageType, opts AllocatePageOptions) ([]page.Page, error) {
	size := pickPageSize(pt.mgr, opts.Size)
	if size == memattr.SizeGiB1 {
		return nil, fmt.Errorf("%w: 1GiB pages are not allocatable", ErrInvalidArgument)
	}
	if size != memattr.SizeKiB4 && size != memattr.SizeMiB2 {
		return nil, fmt.Errorf("%w: unsupported page size %s", ErrInvalidArgument, size)
	}

	alignmentBits := size.AlignmentBits()
	if opts.AlignmentBits != nil {
		if *opts.AlignmentBits < size.AlignmentBits() {
			return nil, fmt.Errorf("%w: alignment %d below %d-bit minimum for %s pages",
				ErrInvalidAlignment, *opts.AlignmentBits, size.AlignmentBits(), size)
		}
		alignmentBits = *opts.AlignmentBits
	}

	perms := memattr.PermReadWriteExecute
	if opts.Permissions != nil {
		perms = *opts.Permissions
	}
	cacheable := memattr.CacheWriteBack
	if opts.Cacheable != nil {
		cacheable = *opts.Cacheable
	}
	shareable := memattr.ShareNone
	if opts.Shareable != nil {
		shareable = *opts.Shareable
	}

	count := opts.SequentialPageCount
	if count <= 0 {
		count = 1
	}
	total := uint64(size) * uint64(count)

	var vaStart, paStart uint64
	var err error
	if opts.VAEqPA {
		vaStart, paStart, err = pt.findVAEqPAUnmappedRegion(total, alignmentBits)
		if err != nil {
			return nil, err
		}
		pt.mgr.mapVAToPA(pt, vaStart, paStart, total, pageType)
	} else {
		vaStart, err = pt.unmappedVA.FindAndRemove(total, alignmentBits, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutOfVA, err)
		}
		paStart, err = pt.mgr.allocatePAInterval(total, alignmentBits)
		if err != nil {
			pt.unmappedVA.AddRegion(vaStart, total, nil)
			return nil, fmt.Errorf("%w: %v", ErrOutOfPA, err)
		}
		pt.mgr.mapVAToPA(pt, vaStart, paStart, total, pageType)
	}

	pages := make([]page.Page, count)
	for i := 0; i < count; i++ {
		offset := uint64(i) * uint64(size)
		p := page.New(vaStart+offset, paStart+offset, size, pageType, perms, cacheable, shareable,
			pt.ExecutionContext, opts.CustomAttributes, false)
		pages[i] = p
		pt.pages = append(pt.pages, p)
		pt.pagesByType[pageType] = append(pt.pagesByType[pageType], p)
	}
	pt.mgr.log.Debugf("allocated %d x %s %s page(s) on %s: VA=0x%x PA=0x%x", count, size, pageType, pt.Name, vaStart, paStart)
	return pages, nil
}

func pickPageSize(mgr *Manager, requested *memattr.PageSize) memattr.PageSize {
	if requested != nil {
		return *requested
	}
	if mgr.rng.Intn(2) == 0 {
		return memattr.SizeKiB4
	}
	return memattr.SizeMiB2
}

// findVAEqPAUnmappedRegion locates a randomly chosen, alignment-satisfying
// start address where both sides' unmapped ranges overlap and VA==PA,
// per the identity-mapping search in spec component C.
func (pt *PageTable) findVAEqPAUnmappedRegion(size uint64, alignmentBits int) (uint64, uint64, error) {
	vaIntervals := pt.unmappedVA.GetIntervals(nil)
	paIntervals := pt.mgr.unmappedPA.GetIntervals(nil)

	type overlap struct{ start, size uint64 }
	var matches []overlap
	for _, va := range vaIntervals {
		for _, pa := range paIntervals {
			start := maxU64(va.Start, pa.Start)
			end := minU64(va.End(), pa.End())
			if start < end {
				sz := end - start
				if sz >= size {
					matches = append(matches, overlap{start, sz})
				}
			}
		}
	}
	if len(matches) == 0 {
		return 0, 0, fmt.Errorf("%w: no overlapping unmapped VA=PA range of size 0x%x", ErrOutOfIdentityRegion, size)
	}

	alignment := uint64(1)
	if alignmentBits > 0 {
		alignment = 1 << uint(alignmentBits)
	}

	type suitable struct{ first, last uint64 }
	var suit []suitable
	for _, m := range matches {
		first := alignUp(m.start, alignment)
		maxStart := m.start + m.size - size
		last := alignDown(maxStart, alignment)
		if first <= last {
			suit = append(suit, suitable{first, last})
		}
	}
	if len(suit) == 0 {
		return 0, 0, fmt.Errorf("%w: no aligned VA=PA range of size 0x%x", ErrOutOfIdentityRegion, size)
	}

	chosen := suit[0]
	if len(suit) > 1 {
		chosen = suit[pt.mgr.rng.Intn(len(suit))]
	}

	var start uint64
	if chosen.first == chosen.last {
		start = chosen.first
	} else {
		count := (chosen.last-chosen.first)/alignment + 1
		start = chosen.first + uint64(pt.mgr.rng.Int63n(int64(count)))*alignment
	}
	pt.unmappedVA.RemoveRegion(start, size)
	pt.mgr.unmappedPA.RemoveRegion(start, size)
	return start, start, nil
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
