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

import "errors"

var (
	// ErrInvalidMemoryType is returned when a memory type has no valid
	// page-type mapping, or isn't one AllocateDataMemory accepts.
	ErrInvalidMemoryType = errors.New("segment: invalid memory type")

	// ErrDuplicateName is returned by AllocateMemorySegment for a name
	// already registered on this manager.
	ErrDuplicateName = errors.New("segment: segment name already registered")

	// ErrNotFound is returned when no segment matches a name or
	// memory-type query.
	ErrNotFound = errors.New("segment: no matching segment")

	// ErrAmbiguous is returned when a query that must resolve to exactly
	// one segment (GetStackDataStartAddress) instead matches more than
	// one.
	ErrAmbiguous = errors.New("segment: query matched more than one segment")

	// ErrNoSpace is returned when a DATA_PRESERVE segment's internal
	// interval tracker has no region satisfying an AllocateDataMemory
	// request.
	ErrNoSpace = errors.New("segment: no space available within segment")
)
