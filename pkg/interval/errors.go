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

package interval

import "errors"

// ErrNotFound is returned when a Set has no region satisfying a find
// request (size, alignment, and criteria combined).
var ErrNotFound = errors.New("interval: no suitable region found")

// ErrNotContained is returned when a requested region is not fully
// covered by a single tracked Interval (split/contains-style operations).
var ErrNotContained = errors.New("interval: region not fully contained in a single interval")

// ErrOutOfRange is returned when a requested region falls outside the
// Set's bounds entirely, where that distinction matters to the caller.
var ErrOutOfRange = errors.New("interval: region outside tracked range")
