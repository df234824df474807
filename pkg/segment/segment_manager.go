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
	"fmt"
	"math/rand"

	"github.com/szoharbu/memlayout/internal/mllog"
	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/pagetable"
)

// SegmentManager owns the named segments carved out of one page table. It
// is a thin layer over pagetable.Manager.AllocateSegment: every byte it
// hands out was already turned into a Page by pkg/pagetable first.
type SegmentManager struct {
	mgr *pagetable.Manager
	pt  *pagetable.PageTable
	rng *rand.Rand
	log mllog.Logger

	segments []Segment
	byName   map[string]Segment
	byType   map[memattr.MemoryType][]Segment
}

// New constructs a SegmentManager for pt, drawing its underlying pages
// and segment ranges from mgr. rng drives every randomized choice this
// manager makes (segment candidate, slot, sub-allocation offset).
func New(mgr *pagetable.Manager, pt *pagetable.PageTable, rng *rand.Rand) *SegmentManager {
	return &SegmentManager{
		mgr:    mgr,
		pt:     pt,
		rng:    rng,
		log:    mllog.Noop,
		byName: map[string]Segment{},
		byType: map[memattr.MemoryType][]Segment{},
	}
}

// SetLogger installs the Logger this manager uses.
func (sm *SegmentManager) SetLogger(l mllog.Logger) {
	if l == nil {
		l = mllog.Noop
	}
	sm.log = l
}

// AllocateMemorySegment carves a named segment of byte_size bytes and the
// given memory type out of pt's already-mapped memory, per spec component
// E. alignmentBits of 0 requests no alignment stronger than byte
// granularity; code segments always require at least 8-byte (3-bit)
// alignment regardless of what's requested.
func (sm *SegmentManager) AllocateMemorySegment(name string, size uint64, memType memattr.MemoryType, alignmentBits int, vaEqPA bool) (Segment, error) {
	if _, exists := sm.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	pageType, ok := memType.PageType()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMemoryType, memType)
	}
	if pageType == memattr.PageTypeCode && alignmentBits < 3 {
		alignmentBits = 3
	}

	alloc, err := sm.mgr.AllocateSegment(sm.pt, size, pageType, alignmentBits, vaEqPA, uint64(memattr.SizeKiB4))
	if err != nil {
		return nil, err
	}

	base := MemorySegment{
		Name:         name,
		VA:           alloc.VAStart,
		PA:           alloc.PAStart,
		Size:         alloc.Size,
		MemoryType:   memType,
		CoveredPages: alloc.CoveredPages,
	}

	var seg Segment
	switch {
	case pageType == memattr.PageTypeCode:
		seg = &CodeSegment{MemorySegment: base, Label: name + "_code_segment"}
	case memType == memattr.MemoryTypeDataPreserve:
		seg = &DataSegment{
			MemorySegment: base,
			preserve:      interval.NewSeededSet(sm.rng, alloc.VAStart, alloc.Size, nil),
		}
	default:
		seg = &DataSegment{MemorySegment: base}
	}

	sm.register(seg)
	sm.log.Debugf("allocated %s segment %q: VA=0x%x size=0x%x", memType, name, alloc.VAStart, alloc.Size)
	return seg, nil
}

func (sm *SegmentManager) register(seg Segment) {
	sm.segments = append(sm.segments, seg)
	b := seg.Base()
	sm.byName[b.Name] = seg
	sm.byType[b.MemoryType] = append(sm.byType[b.MemoryType], seg)
}

// GetSegments returns every registered segment of memType, in allocation
// order.
func (sm *SegmentManager) GetSegments(memType memattr.MemoryType) []Segment {
	src := sm.byType[memType]
	out := make([]Segment, len(src))
	copy(out, src)
	return out
}

// GetSegment looks up a previously allocated segment by name.
func (sm *SegmentManager) GetSegment(name string) (Segment, error) {
	seg, ok := sm.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return seg, nil
}

// GetStackDataStartAddress returns the VA of the sole MemoryTypeStack
// segment. It requires there to be exactly one: zero is ErrNotFound, more
// than one is ErrAmbiguous.
func (sm *SegmentManager) GetStackDataStartAddress() (uint64, error) {
	stacks := sm.byType[memattr.MemoryTypeStack]
	switch len(stacks) {
	case 0:
		return 0, fmt.Errorf("%w: no STACK segment registered on %q", ErrNotFound, sm.pt.Name)
	case 1:
		return stacks[0].Base().VA, nil
	default:
		return 0, fmt.Errorf("%w: %d STACK segments registered on %q, want exactly 1", ErrAmbiguous, len(stacks), sm.pt.Name)
	}
}

// AllocateCrossCoreDataMemorySegment allocates a 2 KiB, 16-byte-aligned
// MemoryTypeDataPreserve segment shared (by matching physical address)
// across every page table that has a cross-core Page, per spec component
// E step 6. registry must map every participating page table's name to
// its SegmentManager, including this one; the segment this call returns
// is this manager's own share, but every other manager in registry also
// gets its matching share appended to its own segment list.
func (sm *SegmentManager) AllocateCrossCoreDataMemorySegment(name string, registry map[string]*SegmentManager) (*DataSegment, error) {
	if _, exists := sm.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	const size = memattr.CrossCoreSegmentSize
	const alignmentBits = memattr.CrossCoreSegmentAlignmentBits

	crossPages := filterCrossCoreData(sm.pt.PagesByType(memattr.PageTypeData))
	if len(crossPages) == 0 {
		return nil, fmt.Errorf("%w: no cross-core DATA pages on %q", pagetable.ErrNoCrossCoreRoom, sm.pt.Name)
	}
	chosenPage := crossPages[sm.rng.Intn(len(crossPages))]

	crit := map[string]any{"page_type": memattr.PageTypeData.String()}
	candidates := containedIntervals(sm.pt.NonAllocatedIntervals(crit), chosenPage, size)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no non-allocated DATA interval of size 0x%x within the chosen cross-core page on %q",
			pagetable.ErrNoCrossCoreRoom, size, sm.pt.Name)
	}
	chosen := candidates[sm.rng.Intn(len(candidates))]

	alignment := uint64(1) << alignmentBits
	first := alignUp(chosen.start, alignment)
	last := alignDown(chosen.start+chosen.size-size, alignment)
	if first > last {
		return nil, fmt.Errorf("%w: no %d-byte aligned slot in cross-core candidate on %q", pagetable.ErrNoCrossCoreRoom, alignment, sm.pt.Name)
	}

	var chosenVA uint64
	if first == last {
		chosenVA = first
	} else {
		count := (last-first)/alignment + 1
		chosenVA = first + uint64(sm.rng.Int63n(int64(count)))*alignment
	}

	offsetInPage := chosenVA - chosenPage.VA
	sharedPA := chosenPage.PA + offsetInPage

	sm.mgr.MarkPAAllocated(sharedPA, size, memattr.PageTypeData, sm.pt.Name)

	var mine *DataSegment
	for ptName, otherSM := range registry {
		localPage, ok := otherSM.pt.PageByPA(sharedPA)
		if !ok {
			continue
		}
		localVA := localPage.VA + offsetInPage
		otherSM.pt.MarkAllocated(localVA, size, memattr.PageTypeData)

		segName := fmt.Sprintf("%s_%s", name, ptName)
		seg := &DataSegment{
			MemorySegment: MemorySegment{
				Name:        segName,
				VA:          localVA,
				PA:          sharedPA,
				Size:        size,
				MemoryType:  memattr.MemoryTypeDataPreserve,
				IsCrossCore: true,
			},
			preserve: interval.NewSeededSet(sm.rng, localVA, size, nil),
		}
		otherSM.register(seg)
		if otherSM == sm {
			mine = seg
		}
	}
	if mine == nil {
		return nil, fmt.Errorf("%w: %q has no local cross-core page at PA 0x%x", pagetable.ErrPageTableInconsistent, sm.pt.Name, sharedPA)
	}
	sm.log.Infof("allocated cross-core segment %q: PA=0x%x size=0x%x", name, sharedPA, size)
	return mine, nil
}

// AllocateDataMemory sub-allocates size bytes from a randomly chosen
// already-registered segment of memType, restricted to segments whose
// IsCrossCore matches crossCore. DATA_SHARED picks an untracked random
// offset within the whole segment; DATA_PRESERVE uses the segment's own
// interval tracker. When crossCore is true and memType is
// DATA_PRESERVE, the same sub-range is also removed from every other
// page table's matching (same PA, same size) cross-core segment.
func (sm *SegmentManager) AllocateDataMemory(name string, memType memattr.MemoryType, size uint64, crossCore bool, alignmentBits int, initValue *string, registry map[string]*SegmentManager) (uint64, error) {
	if memType != memattr.MemoryTypeDataShared && memType != memattr.MemoryTypeDataPreserve {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMemoryType, memType)
	}
	if memType == memattr.MemoryTypeDataShared && initValue != nil {
		return 0, fmt.Errorf("%w: DATA_SHARED does not support init values", ErrInvalidMemoryType)
	}

	candidates := sm.matchingDataSegments(memType, crossCore)
	if len(candidates) == 0 {
		return 0, fmt.Errorf("%w: no %s segment (cross_core=%v) registered on %q", ErrNotFound, memType, crossCore, sm.pt.Name)
	}
	seg := candidates[sm.rng.Intn(len(candidates))]

	if memType == memattr.MemoryTypeDataShared {
		if size > seg.Size {
			return 0, fmt.Errorf("%w: requested 0x%x exceeds segment %q size 0x%x", ErrNoSpace, size, seg.Name, seg.Size)
		}
		span := seg.Size - size + 1
		offset := uint64(0)
		if span > 1 {
			offset = uint64(sm.rng.Int63n(int64(span)))
		}
		return seg.VA + offset, nil
	}

	if seg.preserve == nil {
		return 0, fmt.Errorf("%w: segment %q has no interval tracker", ErrNoSpace, seg.Name)
	}
	start, err := seg.preserve.FindAndRemove(size, alignmentBits, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoSpace, err)
	}

	if crossCore {
		offsetInSeg := start - seg.VA
		for otherName, otherSM := range registry {
			if otherSM == sm {
				continue
			}
			for _, other := range otherSM.byType[memattr.MemoryTypeDataPreserve] {
				ds, ok := other.(*DataSegment)
				if !ok || !ds.IsCrossCore || ds.PA != seg.PA || ds.Size != seg.Size || ds.preserve == nil {
					continue
				}
				ds.preserve.RemoveRegion(ds.VA+offsetInSeg, size)
				sm.log.Debugf("mirrored cross-core sub-allocation onto %q on %q", ds.Name, otherName)
			}
		}
	}
	return start, nil
}

func (sm *SegmentManager) matchingDataSegments(memType memattr.MemoryType, crossCore bool) []*DataSegment {
	var out []*DataSegment
	for _, seg := range sm.byType[memType] {
		ds, ok := seg.(*DataSegment)
		if !ok || ds.IsCrossCore != crossCore {
			continue
		}
		out = append(out, ds)
	}
	return out
}

