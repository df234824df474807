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
	"errors"
	"math/rand"
	"testing"

	"github.com/szoharbu/memlayout/pkg/memattr"
)

func TestAllocatePageRejects1GiB(t *testing.T) {
	m := newTestManager(10)
	pt, _ := m.CreatePageTable("core_0", "core0", memattr.EL1NS)

	size := memattr.SizeGiB1
	if _, err := pt.AllocatePage(memattr.PageTypeData, AllocatePageOptions{Size: &size}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("1GiB allocation error = %v, want ErrInvalidArgument", err)
	}
}

func TestAllocatePageRejectsWeakAlignment(t *testing.T) {
	m := newTestManager(11)
	pt, _ := m.CreatePageTable("core_0", "core0", memattr.EL1NS)

	size := memattr.SizeMiB2
	weak := 12 // below the 21-bit minimum for a 2MiB page
	if _, err := pt.AllocatePage(memattr.PageTypeData, AllocatePageOptions{Size: &size, AlignmentBits: &weak}); !errors.Is(err, ErrInvalidAlignment) {
		t.Errorf("weak-alignment allocation error = %v, want ErrInvalidAlignment", err)
	}
}

func TestAllocatePageRollsBackVAOnPAExhaustion(t *testing.T) {
	cfg := Config{VABase: 0x1000, VASize: 0x10000, PABase: 0x1000, PASize: 0x1000}
	m := NewManager(rand.New(rand.NewSource(12)), cfg)
	pt, _ := m.CreatePageTable("core_0", "core0", memattr.EL1NS)

	size := memattr.SizeKiB4
	// Exhaust the tiny PA space with one page.
	if _, err := pt.AllocatePage(memattr.PageTypeData, AllocatePageOptions{Size: &size}); err != nil {
		t.Fatalf("first AllocatePage: %v", err)
	}

	vaBefore := pt.unmappedVA.GetTotalSize(nil)
	if _, err := pt.AllocatePage(memattr.PageTypeData, AllocatePageOptions{Size: &size}); !errors.Is(err, ErrOutOfPA) {
		t.Fatalf("second AllocatePage error = %v, want ErrOutOfPA", err)
	}
	if got := pt.unmappedVA.GetTotalSize(nil); got != vaBefore {
		t.Errorf("unmapped_va total after rollback = 0x%x, want 0x%x (VA reservation not rolled back)", got, vaBefore)
	}
}

func TestPageTableAttributes(t *testing.T) {
	m := newTestManager(13)
	pt, _ := m.CreatePageTable("core_0", "core0", memattr.EL1NS)

	if _, ok := pt.GetAttribute("board"); ok {
		t.Error("unset attribute should not be found")
	}
	pt.SetAttribute("board", "rev-c")
	v, ok := pt.GetAttribute("board")
	if !ok || v != "rev-c" {
		t.Errorf("GetAttribute(board) = (%v, %v), want (rev-c, true)", v, ok)
	}
}

func TestAllocatePageSequentialRun(t *testing.T) {
	m := newTestManager(14)
	pt, _ := m.CreatePageTable("core_0", "core0", memattr.EL1NS)

	size := memattr.SizeKiB4
	pages, err := pt.AllocatePage(memattr.PageTypeData, AllocatePageOptions{Size: &size, SequentialPageCount: 4})
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if len(pages) != 4 {
		t.Fatalf("got %d pages, want 4", len(pages))
	}
	for i := 1; i < len(pages); i++ {
		if pages[i].VA != pages[i-1].VA+uint64(size) {
			t.Errorf("page %d VA=0x%x not contiguous with previous 0x%x", i, pages[i].VA, pages[i-1].VA)
		}
		if pages[i].PA != pages[i-1].PA+uint64(size) {
			t.Errorf("page %d PA=0x%x not contiguous with previous 0x%x", i, pages[i].PA, pages[i-1].PA)
		}
	}
}
