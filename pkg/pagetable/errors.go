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

import "errors"

var (
	// ErrInvalidArgument is returned for malformed allocation requests:
	// zero sizes, a 1 GiB page request, and similar caller mistakes.
	ErrInvalidArgument = errors.New("pagetable: invalid argument")

	// ErrInvalidAlignment is returned when a caller-supplied alignment is
	// weaker than the minimum its page size requires.
	ErrInvalidAlignment = errors.New("pagetable: alignment below page-size minimum")

	// ErrDuplicateName is returned by CreatePageTable for a name already
	// registered with the Manager.
	ErrDuplicateName = errors.New("pagetable: page table name already registered")

	// ErrOutOfVA is returned when a page table's virtual address space has
	// no region satisfying a request.
	ErrOutOfVA = errors.New("pagetable: no matching virtual address region available")

	// ErrOutOfPA is returned when the manager's physical address space has
	// no region satisfying a request.
	ErrOutOfPA = errors.New("pagetable: no matching physical address region available")

	// ErrOutOfIdentityRegion is returned when no VA=PA region satisfies an
	// identity-mapped page request.
	ErrOutOfIdentityRegion = errors.New("pagetable: no identity-mapped region available")

	// ErrNoAvailableMappedRegion is returned when a segment allocation
	// finds no already-mapped, not-yet-allocated region of the requested
	// page type.
	ErrNoAvailableMappedRegion = errors.New("pagetable: no available mapped region for segment")

	// ErrNoCrossCoreRoom is returned when at least one registered page
	// table has no room for a cross-core page.
	ErrNoCrossCoreRoom = errors.New("pagetable: a registered page table has no room for the cross-core page")

	// ErrPageTableInconsistent is returned when a segment's virtual range
	// is not fully and contiguously backed by pages, or the pages back it
	// with a physical range that doesn't match the expected alignment —
	// an internal bookkeeping fault, not a caller mistake.
	ErrPageTableInconsistent = errors.New("pagetable: page table inconsistent with segment request")

	// ErrNotFound is returned when a named page table isn't registered.
	ErrNotFound = errors.New("pagetable: page table not found")
)
