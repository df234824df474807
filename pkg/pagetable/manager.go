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

package pagetable

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/szoharbu/memlayout/internal/mllog"
	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/page"
)

// Config fixes the physical and per-page-table virtual address ranges the
// manager carves allocations from. DefaultConfig is the compiled-in
// layout (base 2 GiB + 2 MiB, size 8 GiB, for both VA and PA);
// internal/mlconfig can load an override from a TOML file.
type Config struct {
	VABase uint64
	VASize uint64
	PABase uint64
	PASize uint64
}

// DefaultConfig returns the engine's built-in address map.
func DefaultConfig() Config {
	return Config{
		VABase: memattr.DefaultVABase,
		VASize: memattr.DefaultVASize,
		PABase: memattr.DefaultPABase,
		PASize: memattr.DefaultPASize,
	}
}

// Manager is the process-wide registry of page tables and the owner of
// the single physical address space they all draw from (spec component
// D, the Page-Table Manager).
type Manager struct {
	rng *rand.Rand
	cfg Config
	log mllog.Logger

	pageTables map[string]*PageTable
	// order preserves page-table registration order. Iterating this
	// instead of pageTables directly keeps cross-core allocation's rng
	// draw sequence deterministic: Go's map iteration order is
	// intentionally randomized per process run.
	order          []string
	corePageTables map[string][]string

	unmappedPA     *interval.Set
	mappedPA       *interval.Set
	nonAllocatedPA *interval.Set
	allocatedPA    *interval.Set

	allocations []*MemoryAllocation
}

// NewManager constructs a Manager over cfg's address ranges. rng drives
// every randomized allocation decision across every page table the
// manager creates; the same rng seed and call sequence reproduce the
// same layout.
func NewManager(rng *rand.Rand, cfg Config) *Manager {
	return &Manager{
		rng:            rng,
		cfg:            cfg,
		log:            mllog.Noop,
		pageTables:     map[string]*PageTable{},
		corePageTables: map[string][]string{},
		unmappedPA:     interval.NewSeededSet(rng, cfg.PABase, cfg.PASize, nil),
		mappedPA:       interval.NewSet(rng, nil),
		nonAllocatedPA: interval.NewSet(rng, nil),
		allocatedPA:    interval.NewSet(rng, nil),
	}
}

// SetLogger installs the Logger the manager and every page table it
// creates will use. The zero value leaves messages discarded.
func (m *Manager) SetLogger(l mllog.Logger) {
	if l == nil {
		l = mllog.Noop
	}
	m.log = l
}

// CreatePageTable registers a new, empty PageTable named name for coreID,
// with its virtual address space seeded to the manager's configured VA
// range. Returns ErrDuplicateName if name is already registered.
func (m *Manager) CreatePageTable(name, coreID string, ec memattr.ExecutionContext) (*PageTable, error) {
	if _, exists := m.pageTables[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	pt := &PageTable{
		mgr:              m,
		Name:             name,
		CoreID:           coreID,
		ExecutionContext: ec,
		unmappedVA:       interval.NewSeededSet(m.rng, m.cfg.VABase, m.cfg.VASize, nil),
		mappedVA:         interval.NewSet(m.rng, nil),
		nonAllocatedVA:   interval.NewSet(m.rng, nil),
		allocatedVA:      interval.NewSet(m.rng, nil),
		pagesByType:      map[memattr.PageType][]page.Page{},
	}
	m.pageTables[name] = pt
	m.order = append(m.order, name)
	m.corePageTables[coreID] = append(m.corePageTables[coreID], name)
	m.log.Infof("created page table %q on core %q (%s)", name, coreID, ec)
	return pt, nil
}

// GetPageTable returns the page table registered under name.
func (m *Manager) GetPageTable(name string) (*PageTable, error) {
	pt, ok := m.pageTables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return pt, nil
}

// GetAllPageTables returns every registered page table, in registration
// order.
func (m *Manager) GetAllPageTables() []*PageTable {
	out := make([]*PageTable, len(m.order))
	for i, name := range m.order {
		out[i] = m.pageTables[name]
	}
	return out
}

// GetCorePageTables returns the page tables registered against coreID, in
// registration order.
func (m *Manager) GetCorePageTables(coreID string) []*PageTable {
	names := m.corePageTables[coreID]
	out := make([]*PageTable, len(names))
	for i, name := range names {
		out[i] = m.pageTables[name]
	}
	return out
}

// NonAllocatedPAIntervals exposes the manager's non-allocated PA ranges
// matching criteria, mirroring PageTable.NonAllocatedIntervals for the
// physical side.
func (m *Manager) NonAllocatedPAIntervals(criteria map[string]any) []interval.Interval {
	return m.nonAllocatedPA.GetIntervals(criteria)
}

// MarkPAAllocated moves [pa, pa+size) from non-allocated to allocated on
// the manager's PA side. See PageTable.MarkAllocated for why this is
// exposed rather than folded into AllocateSegment: the cross-core data
// segment path performs this exactly once while marking several page
// tables' VA sides allocated.
func (m *Manager) MarkPAAllocated(pa, size uint64, pageType memattr.PageType, pageTableName string) {
	meta := map[string]any{"page_type": pageType.String(), "page_table": pageTableName}
	m.nonAllocatedPA.RemoveRegion(pa, size)
	m.allocatedPA.AddRegion(pa, size, meta)
}

func (m *Manager) allocatePAInterval(size uint64, alignmentBits int) (uint64, error) {
	start, err := m.unmappedPA.FindAndRemove(size, alignmentBits, nil)
	if err != nil {
		return 0, err
	}
	return start, nil
}

// mapVAToPA moves [va,va+size) from unmapped to mapped+non-allocated on
// both the page table's VA side and the manager's PA side, tagging each
// range with the page type it now backs. The PA side is also tagged with
// the name of the page table that mapped it (for a cross-core page, the
// last one mapped); segment allocation does not filter on that tag.
func (m *Manager) mapVAToPA(pt *PageTable, va, pa, size uint64, pageType memattr.PageType) {
	m.unmappedPA.RemoveRegion(pa, size)
	m.mappedPA.AddRegion(pa, size, nil)
	m.nonAllocatedPA.AddRegion(pa, size, map[string]any{"page_type": pageType.String(), "page_table": pt.Name})

	pt.unmappedVA.RemoveRegion(va, size)
	pt.mappedVA.AddRegion(va, size, nil)
	pt.nonAllocatedVA.AddRegion(va, size, map[string]any{"page_type": pageType.String()})
}

// AllocateCrossCorePage allocates one shared 2 MiB DATA page backed by a
// single physical range, mapped into the virtual address space of every
// currently registered page table at an independently chosen VA. It
// fails atomically: if any page table has no room, no page table's state
// changes.
//
// Allocation is two-phase: every page table's candidate VA is *found*
// before any is *committed*, so a late failure never leaves earlier page
// tables partially mapped. The underlying physical range is rolled back
// the same way if VA search fails anywhere.
func (m *Manager) AllocateCrossCorePage() ([]page.Page, error) {
	if len(m.order) == 0 {
		return nil, fmt.Errorf("%w: no page tables registered", ErrNoCrossCoreRoom)
	}

	const size = memattr.CrossCorePageSize
	alignmentBits := size.AlignmentBits()
	const pageType = memattr.PageTypeData

	paStart, err := m.allocatePAInterval(uint64(size), alignmentBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfPA, err)
	}

	candidates := make(map[string]uint64, len(m.order))
	for _, name := range m.order {
		pt := m.pageTables[name]
		va, err := pt.unmappedVA.FindRegion(uint64(size), alignmentBits, nil)
		if err != nil {
			m.unmappedPA.AddRegion(paStart, uint64(size), nil)
			return nil, fmt.Errorf("%w: page table %q: %v", ErrNoCrossCoreRoom, name, err)
		}
		candidates[name] = va
	}

	pages := make([]page.Page, 0, len(m.order))
	for _, name := range m.order {
		pt := m.pageTables[name]
		va := candidates[name]
		m.mapVAToPA(pt, va, paStart, uint64(size), pageType)
		p := page.New(va, paStart, size, pageType, memattr.PermReadWriteExecute, memattr.CacheWriteBack,
			memattr.ShareNone, pt.ExecutionContext, nil, true)
		pt.pages = append(pt.pages, p)
		pt.pagesByType[pageType] = append(pt.pagesByType[pageType], p)
		pages = append(pages, p)
	}
	m.log.Infof("allocated cross-core page PA=0x%x across %d page table(s)", paStart, len(pages))
	return pages, nil
}

// AllocateSegment carves a contiguous segment of size bytes, of the given
// page type, out of pt's already-mapped-but-not-allocated virtual range,
// per the Segment Manager's allocation algorithm (spec component D/E).
// pageSize chunks the resulting MemoryAllocation.PageMappings (it does
// not have to match the size of the pages actually backing the range).
// vaEqPA requests that the segment additionally land on an identity
// (VA==PA) range; this requires the identity range to already be
// page-covered; it is never auto-fabricated from unmapped memory, a
// deliberate simplification from the looser identity-region search the
// allocator otherwise performs for whole pages.
func (m *Manager) AllocateSegment(pt *PageTable, size uint64, pageType memattr.PageType, alignmentBits int, vaEqPA bool, pageSize uint64) (*MemoryAllocation, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: segment size must be positive", ErrInvalidArgument)
	}
	if pageSize == 0 {
		pageSize = uint64(memattr.SizeKiB4)
	}

	crit := map[string]any{"page_type": pageType.String()}

	var vaStart uint64
	var err error
	if vaEqPA {
		vaStart, err = m.findIdentitySegmentRegion(pt, size, alignmentBits, crit)
	} else {
		if len(pt.nonAllocatedVA.GetIntervals(crit)) == 0 {
			return nil, fmt.Errorf("%w: no non-allocated %s region in %q", ErrNoAvailableMappedRegion, pageType, pt.Name)
		}
		vaStart, err = pt.nonAllocatedVA.FindRegion(size, alignmentBits, crit)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrNoAvailableMappedRegion, err)
		}
	}
	if err != nil {
		return nil, err
	}

	covered, err := coveringPages(pt.pages, vaStart, size)
	if err != nil {
		return nil, err
	}
	paStart := covered[0].PA + (vaStart - covered[0].VA)

	if alignmentBits > 0 {
		alignment := uint64(1) << uint(alignmentBits)
		if paStart%alignment != 0 {
			return nil, fmt.Errorf("%w: derived PA 0x%x not aligned to %d bits for %q",
				ErrPageTableInconsistent, paStart, alignmentBits, pt.Name)
		}
	}

	meta := map[string]any{"page_type": pageType.String(), "page_table": pt.Name}
	pt.nonAllocatedVA.RemoveRegion(vaStart, size)
	pt.allocatedVA.AddRegion(vaStart, size, meta)
	m.nonAllocatedPA.RemoveRegion(paStart, size)
	m.allocatedPA.AddRegion(paStart, size, meta)

	var mappings []PageMapping
	for offset := uint64(0); offset < size; offset += pageSize {
		chunk := pageSize
		if offset+chunk > size {
			chunk = size - offset
		}
		mappings = append(mappings, PageMapping{VA: vaStart + offset, PA: paStart + offset, Size: chunk})
	}

	alloc := &MemoryAllocation{
		VAStart:      vaStart,
		PAStart:      paStart,
		Size:         size,
		PageType:     pageType,
		PageTable:    pt.Name,
		CoveredPages: covered,
		PageMappings: mappings,
	}
	m.allocations = append(m.allocations, alloc)
	m.log.Debugf("allocated %s segment on %q: VA=0x%x PA=0x%x size=0x%x", pageType, pt.Name, vaStart, paStart, size)
	return alloc, nil
}

// FreeSegment reverses AllocateSegment, returning the segment's VA and PA
// ranges to non-allocated.
func (m *Manager) FreeSegment(pt *PageTable, alloc *MemoryAllocation) {
	meta := map[string]any{"page_type": alloc.PageType.String(), "page_table": pt.Name}
	pt.allocatedVA.RemoveRegion(alloc.VAStart, alloc.Size)
	pt.nonAllocatedVA.AddRegion(alloc.VAStart, alloc.Size, map[string]any{"page_type": alloc.PageType.String()})
	m.allocatedPA.RemoveRegion(alloc.PAStart, alloc.Size)
	m.nonAllocatedPA.AddRegion(alloc.PAStart, alloc.Size, meta)

	for i, a := range m.allocations {
		if a == alloc {
			m.allocations = append(m.allocations[:i], m.allocations[i+1:]...)
			break
		}
	}
}

// findIdentitySegmentRegion searches the overlap of pt's non-allocated VA
// and the manager's non-allocated PA, both filtered to crit, for a
// VA==PA region, then requires that region already be covered by pages
// (see AllocateSegment's vaEqPA doc).
func (m *Manager) findIdentitySegmentRegion(pt *PageTable, size uint64, alignmentBits int, crit map[string]any) (uint64, error) {
	vaIntervals := pt.nonAllocatedVA.GetIntervals(crit)
	paIntervals := m.nonAllocatedPA.GetIntervals(crit)
	if len(vaIntervals) == 0 || len(paIntervals) == 0 {
		return 0, fmt.Errorf("%w: no non-allocated identity region for %q", ErrNoAvailableMappedRegion, pt.Name)
	}

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
		return 0, fmt.Errorf("%w: no overlapping identity region of size 0x%x", ErrNoAvailableMappedRegion, size)
	}

	alignment := uint64(1)
	if alignmentBits > 0 {
		alignment = 1 << uint(alignmentBits)
	}
	type suitable struct{ first, last uint64 }
	var suit []suitable
	for _, mt := range matches {
		first := alignUp(mt.start, alignment)
		maxStart := mt.start + mt.size - size
		last := alignDown(maxStart, alignment)
		if first <= last {
			suit = append(suit, suitable{first, last})
		}
	}
	if len(suit) == 0 {
		return 0, fmt.Errorf("%w: no aligned identity region of size 0x%x", ErrNoAvailableMappedRegion, size)
	}

	chosen := suit[0]
	if len(suit) > 1 {
		chosen = suit[m.rng.Intn(len(suit))]
	}
	var start uint64
	if chosen.first == chosen.last {
		start = chosen.first
	} else {
		count := (chosen.last-chosen.first)/alignment + 1
		start = chosen.first + uint64(m.rng.Int63n(int64(count)))*alignment
	}

	covered, err := coveringPages(pt.pages, start, size)
	if err != nil || covered[0].PA+(start-covered[0].VA) != start {
		return 0, fmt.Errorf("%w: identity region 0x%x is not pre-allocated as identity-mapped pages on %q", ErrNoAvailableMappedRegion, start, pt.Name)
	}
	return start, nil
}

// coveringPages returns, in VA order, the pages that together fully and
// contiguously (in both VA and PA) cover [start, start+size). It reports
// ErrPageTableInconsistent if no such contiguous run exists: gaps,
// partial coverage at either end, or a VA-contiguous but PA-discontiguous
// run all indicate the page table's own bookkeeping disagrees with what
// non_allocated_va claims is backed.
func coveringPages(pages []page.Page, start, size uint64) ([]page.Page, error) {
	end := start + size
	var overlapping []page.Page
	for _, p := range pages {
		if p.VA < end && p.EndVA()+1 > start {
			overlapping = append(overlapping, p)
		}
	}
	if len(overlapping) == 0 {
		return nil, fmt.Errorf("%w: no pages cover VA 0x%x-0x%x", ErrPageTableInconsistent, start, end-1)
	}
	sort.Slice(overlapping, func(i, j int) bool { return overlapping[i].VA < overlapping[j].VA })

	if overlapping[0].VA > start || overlapping[len(overlapping)-1].EndVA() < end-1 {
		return nil, fmt.Errorf("%w: pages do not fully cover VA 0x%x-0x%x", ErrPageTableInconsistent, start, end-1)
	}
	for i := 1; i < len(overlapping); i++ {
		prev, cur := overlapping[i-1], overlapping[i]
		if prev.EndVA()+1 != cur.VA {
			return nil, fmt.Errorf("%w: VA gap between 0x%x and 0x%x", ErrPageTableInconsistent, prev.EndVA(), cur.VA)
		}
		if prev.PA+uint64(prev.Size) != cur.PA {
			return nil, fmt.Errorf("%w: physical discontinuity backing VA 0x%x-0x%x", ErrPageTableInconsistent, prev.VA, cur.VA)
		}
	}
	return overlapping, nil
}

// MemoryStats summarizes the manager's PA bookkeeping across every
// registered page table.
func (m *Manager) MemoryStats() MemoryStats {
	return MemoryStats{
		MappedVA:       m.mappedPA.GetTotalSize(nil),
		UnmappedVA:     m.unmappedPA.GetTotalSize(nil),
		AllocatedVA:    m.allocatedPA.GetTotalSize(nil),
		NonAllocatedVA: m.nonAllocatedPA.GetTotalSize(nil),
	}
}

func (m *Manager) String() string {
	return fmt.Sprintf("Manager(page_tables=%d, allocations=%d)", len(m.order), len(m.allocations))
}
