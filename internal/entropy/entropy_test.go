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

package entropy

import "testing"

func TestSeedIsNonNegative(t *testing.T) {
	for i := 0; i < 64; i++ {
		seed, err := Seed()
		if err != nil {
			t.Fatalf("Seed: %v", err)
		}
		if seed < 0 {
			t.Fatalf("Seed returned negative value %d", seed)
		}
	}
}

func TestSeedVaries(t *testing.T) {
	a, err := Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	b, err := Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if a == b {
		t.Error("two consecutive Seed calls returned the same value; entropy source looks stuck")
	}
}
