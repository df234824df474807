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
	"errors"
	"math/rand"
	"testing"

	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/pagetable"
)

func newTestRig(seed int64, names ...string) (*pagetable.Manager, map[string]*SegmentManager) {
	rng := rand.New(rand.NewSource(seed))
	mgr := pagetable.NewManager(rng, pagetable.DefaultConfig())
	registry := map[string]*SegmentManager{}
	for _, name := range names {
		pt, err := mgr.CreatePageTable(name, name, memattr.EL1NS)
		if err != nil {
			panic(err)
		}
		registry[name] = New(mgr, pt, rng)
	}
	return mgr, registry
}

func TestAllocateMemorySegmentDuplicateName(t *testing.T) {
	mgr, registry := newTestRig(1, "core_0")
	sm := registry["core_0"]
	pt, _ := mgr.GetPageTable("core_0")
	size := memattr.SizeKiB4
	if _, err := pt.AllocatePage(memattr.PageTypeData, pagetable.AllocatePageOptions{Size: &size}); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	if _, err := sm.AllocateMemorySegment("seg0", 0x100, memattr.MemoryTypeDataShared, 0, false); err != nil {
		t.Fatalf("first AllocateMemorySegment: %v", err)
	}
	if _, err := sm.AllocateMemorySegment("seg0", 0x100, memattr.MemoryTypeDataShared, 0, false); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate AllocateMemorySegment error = %v, want ErrDuplicateName", err)
	}
}

func TestAllocateMemorySegmentInvalidMemoryType(t *testing.T) {
	_, registry := newTestRig(2, "core_0")
	sm := registry["core_0"]
	if _, err := sm.AllocateMemorySegment("bad", 0x100, memattr.MemoryType(99), 0, false); !errors.Is(err, ErrInvalidMemoryType) {
		t.Errorf("invalid memory type error = %v, want ErrInvalidMemoryType", err)
	}
}

func TestAllocateMemorySegmentEnforcesCodeAlignment(t *testing.T) {
	mgr, registry := newTestRig(3, "core_0")
	sm := registry["core_0"]
	pt, _ := mgr.GetPageTable("core_0")
	size := memattr.SizeKiB4
	if _, err := pt.AllocatePage(memattr.PageTypeCode, pagetable.AllocatePageOptions{Size: &size}); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	seg, err := sm.AllocateMemorySegment("boot", 0x100, memattr.MemoryTypeCode, 0, false)
	if err != nil {
		t.Fatalf("AllocateMemorySegment: %v", err)
	}
	if seg.Base().VA%8 != 0 {
		t.Errorf("code segment VA 0x%x not 8-byte aligned", seg.Base().VA)
	}
	if _, ok := seg.(*CodeSegment); !ok {
		t.Errorf("CODE memory type produced %T, want *CodeSegment", seg)
	}
}

func TestGetStackDataStartAddressRequiresExactlyOne(t *testing.T) {
	mgr, registry := newTestRig(4, "core_0")
	sm := registry["core_0"]
	pt, _ := mgr.GetPageTable("core_0")
	size := memattr.SizeKiB4
	if _, err := pt.AllocatePage(memattr.PageTypeData, pagetable.AllocatePageOptions{Size: &size, SequentialPageCount: 2}); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	if _, err := sm.GetStackDataStartAddress(); !errors.Is(err, ErrNotFound) {
		t.Errorf("no stack segment error = %v, want ErrNotFound", err)
	}

	if _, err := sm.AllocateMemorySegment("stack0", 0x800, memattr.MemoryTypeStack, 0, false); err != nil {
		t.Fatalf("AllocateMemorySegment stack0: %v", err)
	}
	addr, err := sm.GetStackDataStartAddress()
	if err != nil {
		t.Fatalf("GetStackDataStartAddress: %v", err)
	}
	if addr == 0 {
		t.Error("stack start address should not be zero")
	}

	if _, err := sm.AllocateMemorySegment("stack1", 0x800, memattr.MemoryTypeStack, 0, false); err != nil {
		t.Fatalf("AllocateMemorySegment stack1: %v", err)
	}
	if _, err := sm.GetStackDataStartAddress(); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("two stack segments error = %v, want ErrAmbiguous", err)
	}
}

// Scenario 4: cross-core segment.
func TestAllocateCrossCoreDataMemorySegment(t *testing.T) {
	mgr, registry := newTestRig(5, "core_0", "core_1")

	if _, err := mgr.AllocateCrossCorePage(); err != nil {
		t.Fatalf("AllocateCrossCorePage: %v", err)
	}

	seg0, err := registry["core_0"].AllocateCrossCoreDataMemorySegment("shared", registry)
	if err != nil {
		t.Fatalf("AllocateCrossCoreDataMemorySegment: %v", err)
	}

	seg1Iface, err := registry["core_1"].GetSegment("shared_core_1")
	if err != nil {
		t.Fatalf("GetSegment on core_1: %v", err)
	}
	seg1 := seg1Iface.(*DataSegment)

	if seg0.PA != seg1.PA {
		t.Errorf("cross-core segment PAs differ: 0x%x vs 0x%x", seg0.PA, seg1.PA)
	}
	if seg0.Size != memattr.CrossCoreSegmentSize || seg1.Size != memattr.CrossCoreSegmentSize {
		t.Errorf("cross-core segment sizes = %d, %d, want %d", seg0.Size, seg1.Size, memattr.CrossCoreSegmentSize)
	}
	if seg0.VA%16 != 0 || seg1.VA%16 != 0 {
		t.Errorf("cross-core segment VAs not 16-byte aligned: 0x%x, 0x%x", seg0.VA, seg1.VA)
	}
	if !seg0.IsCrossCore || !seg1.IsCrossCore {
		t.Error("cross-core segments should have IsCrossCore set")
	}
}

func TestAllocateDataMemoryPreserveSubAllocation(t *testing.T) {
	mgr, registry := newTestRig(6, "core_0")
	sm := registry["core_0"]
	pt, _ := mgr.GetPageTable("core_0")
	size := memattr.SizeMiB2
	if _, err := pt.AllocatePage(memattr.PageTypeData, pagetable.AllocatePageOptions{Size: &size}); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if _, err := sm.AllocateMemorySegment("preserve0", 0x10000, memattr.MemoryTypeDataPreserve, 0, false); err != nil {
		t.Fatalf("AllocateMemorySegment: %v", err)
	}

	addr1, err := sm.AllocateDataMemory("x", memattr.MemoryTypeDataPreserve, 0x100, false, 0, nil, registry)
	if err != nil {
		t.Fatalf("AllocateDataMemory: %v", err)
	}
	addr2, err := sm.AllocateDataMemory("y", memattr.MemoryTypeDataPreserve, 0x100, false, 0, nil, registry)
	if err != nil {
		t.Fatalf("AllocateDataMemory: %v", err)
	}
	if addr1 == addr2 {
		t.Errorf("two DATA_PRESERVE sub-allocations returned the same address 0x%x", addr1)
	}
}
