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
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/page"
)

// PageMapping is one page-granular VA->PA chunk backing a MemoryAllocation.
type PageMapping struct {
	VA, PA, Size uint64
}

// MemoryAllocation is the result of allocating a contiguous VA/PA segment
// on top of an existing page table's mapped pages (spec component D).
type MemoryAllocation struct {
	VAStart      uint64
	PAStart      uint64
	Size         uint64
	PageType     memattr.PageType
	PageTable    string
	CoveredPages []page.Page
	PageMappings []PageMapping
}

// AllocatePageOptions customizes a single AllocatePage call. A nil pointer
// field means "use the spec default for that field"; this lets a caller
// override an enum whose zero value is itself a meaningful choice (e.g.
// memattr.PageTypeCode == 0) without ambiguity.
type AllocatePageOptions struct {
	// Size defaults to a random choice between 4 KiB and 2 MiB. 1 GiB is
	// never valid and always returns ErrInvalidArgument.
	Size *memattr.PageSize

	// AlignmentBits defaults to Size's natural alignment. A supplied
	// value below that minimum returns ErrInvalidAlignment.
	AlignmentBits *int

	Permissions *memattr.Permission
	Cacheable   *memattr.Cacheability
	Shareable   *memattr.Shareability

	CustomAttributes map[string]any

	// SequentialPageCount allocates a run of this many same-sized pages
	// as one contiguous VA/PA reservation. Defaults to 1.
	SequentialPageCount int

	// VAEqPA requests an identity-mapped page (VA == PA) instead of an
	// independently chosen VA and PA.
	VAEqPA bool
}

// MemoryStats summarizes one page table's or the manager's current
// bookkeeping, mirroring interval.Stats one level up.
type MemoryStats struct {
	MappedVA       uint64
	UnmappedVA     uint64
	AllocatedVA    uint64
	NonAllocatedVA uint64
	PageCount      int
	PageCountByType map[string]int
}
