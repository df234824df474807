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

// Package segment implements named segment carving on top of an already
// page-mapped region of one page table: the engine's "give me 4 KiB of
// stack" layer above the raw page allocator in pkg/pagetable.
package segment

import (
	"fmt"

	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/page"
)

// MemorySegment is the shared shape of every named segment: a contiguous
// VA/PA range carved out of a page table's mapped memory.
type MemorySegment struct {
	Name         string
	VA           uint64
	PA           uint64
	Size         uint64
	MemoryType   memattr.MemoryType
	CoveredPages []page.Page
	IsCrossCore  bool
}

func (s MemorySegment) End() uint64 { return s.VA + s.Size }

func (s MemorySegment) String() string {
	return fmt.Sprintf("%s(VA:0x%x-0x%x, PA:0x%x-0x%x, size:0x%x, type:%s, cross_core:%v)",
		s.MemoryType, s.VA, s.End()-1, s.PA, s.PA+s.Size-1, s.Size, s.MemoryType, s.IsCrossCore)
}

// Segment is satisfied by both CodeSegment and DataSegment, letting a
// SegmentManager hold both in one ordered list.
type Segment interface {
	Base() *MemorySegment
}

// CodeSegment is a named, executable segment. Label is the entry label a
// code generator would emit at its start; the engine itself does not
// generate assembly, so it is carried only as a string.
type CodeSegment struct {
	MemorySegment
	Label string
}

// Base implements Segment.
func (s *CodeSegment) Base() *MemorySegment { return &s.MemorySegment }

// DataSegment is a named data segment. For MemoryTypeDataPreserve it owns
// a private interval.Set over its own VA range for AllocateDataMemory
// sub-allocation; for every other data memory type that field is nil. For
// MemoryTypeDataShared, AllocateDataMemory instead picks a uniformly random
// offset within the whole segment, untracked; it does not sub-allocate
// from MemoryTypeStack segments.
//
// IsCrossCore is only ever set by AllocateCrossCoreDataMemorySegment, which
// always builds a MemoryTypeDataPreserve segment; there is no exported way
// to construct a DataSegment with IsCrossCore true and a different type.
type DataSegment struct {
	MemorySegment
	InitValue *string
	preserve  *interval.Set
}

// Base implements Segment.
func (s *DataSegment) Base() *MemorySegment { return &s.MemorySegment }
