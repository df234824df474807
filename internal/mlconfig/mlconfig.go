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

// Package mlconfig loads the optional TOML file that overrides the engine's
// default address-map and seed constants, so a downstream integrator can
// retarget the allocator to a different SoC without recompiling. A missing
// file, or a missing key within one, falls back to the package defaults.
package mlconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/pagetable"
)

// Config is the resolved set of overridable constants, ready to build a
// pagetable.Config from.
type Config struct {
	VABase uint64 `toml:"va_base"`
	VASize uint64 `toml:"va_size"`
	PABase uint64 `toml:"pa_base"`
	PASize uint64 `toml:"pa_size"`
	Seed   int64  `toml:"seed"`
}

// Default returns the §6 configuration constants with no seed pinned (a
// Seed of 0 tells the caller to draw one from internal/entropy).
func Default() Config {
	return Config{
		VABase: memattr.DefaultVABase,
		VASize: memattr.DefaultVASize,
		PABase: memattr.DefaultPABase,
		PASize: memattr.DefaultPASize,
		Seed:   0,
	}
}

// Load reads path as TOML and merges it onto Default(); any field absent
// from the file keeps its default value. An empty path returns Default()
// unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("mlconfig: decoding %q: %w", path, err)
	}
	return cfg, nil
}

// PageTableConfig projects cfg onto a pagetable.Config.
func (c Config) PageTableConfig() pagetable.Config {
	return pagetable.Config{
		VABase: c.VABase,
		VASize: c.VASize,
		PABase: c.PABase,
		PASize: c.PASize,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("VA=[0x%x, 0x%x) PA=[0x%x, 0x%x) seed=%d",
		c.VABase, c.VABase+c.VASize, c.PABase, c.PABase+c.PASize, c.Seed)
}
