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

// Package entropy supplies the default PRNG seed used when a caller does
// not pin one explicitly. Every randomized choice the engine makes
// afterwards flows through a single seeded math/rand.Rand, so this package
// is the only place true, non-reproducible entropy enters the program.
package entropy

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// reader returns pseudorandom bytes from the kernel's CSPRNG, preferring
// getrandom(2) and falling back to /dev/urandom on kernels that lack it.
type reader struct {
	once         sync.Once
	useGetrandom bool
}

func (r *reader) Read(p []byte) (int, error) {
	r.once.Do(func() {
		_, err := unix.Getrandom(p, 0)
		r.useGetrandom = err != unix.ENOSYS
	})
	if r.useGetrandom {
		return unix.Getrandom(p, 0)
	}
	return rand.Read(p)
}

// bufferedReader makes reader safe under concurrent Seed calls.
type bufferedReader struct {
	mu sync.Mutex
	r  *bufio.Reader
}

func (b *bufferedReader) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return io.ReadFull(b.r, p)
}

// Source is the package's default entropy source. Tests may swap it for a
// deterministic io.Reader.
var Source io.Reader = &bufferedReader{r: bufio.NewReader(&reader{})}

// Seed draws a fresh, unpredictable int64 seed from Source, suitable for
// rand.NewSource when the caller (CLI flag, config file) hasn't pinned one.
func Seed() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(Source, buf[:]); err != nil {
		return 0, err
	}
	// Mask off the sign bit: math/rand.NewSource takes an int64 but a
	// negative seed is just as deterministic as a positive one, and
	// keeping the printed seed non-negative is friendlier in logs and
	// --seed flags.
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63)), nil
}
