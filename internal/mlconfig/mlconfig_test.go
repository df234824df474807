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

package mlconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/szoharbu/memlayout/pkg/memattr"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want Default() = %+v", cfg, Default())
	}
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memlayout.toml")
	const body = "va_base = 0x1000\nseed = 42\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VABase != 0x1000 {
		t.Errorf("VABase = 0x%x, want 0x1000", cfg.VABase)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.VASize != memattr.DefaultVASize {
		t.Errorf("VASize = 0x%x, want default 0x%x (unset key should keep default)", cfg.VASize, memattr.DefaultVASize)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Error("Load of a missing file returned nil error")
	}
}

func TestPageTableConfigProjection(t *testing.T) {
	cfg := Default()
	ptCfg := cfg.PageTableConfig()
	if ptCfg.VABase != cfg.VABase || ptCfg.VASize != cfg.VASize || ptCfg.PABase != cfg.PABase || ptCfg.PASize != cfg.PASize {
		t.Errorf("PageTableConfig() = %+v, did not project cfg = %+v", ptCfg, cfg)
	}
}
