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

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/szoharbu/memlayout/internal/entropy"
	"github.com/szoharbu/memlayout/internal/mllog"
	"github.com/szoharbu/memlayout/internal/mlconfig"
	"github.com/szoharbu/memlayout/pkg/memattr"
	"github.com/szoharbu/memlayout/pkg/pagetable"
	"github.com/szoharbu/memlayout/pkg/segment"
)

type buildCommand struct {
	cores      int
	seed       int64
	configPath string
	verbose    bool
}

func (*buildCommand) Name() string     { return "build" }
func (*buildCommand) Synopsis() string { return "build a representative multi-core layout and print it" }
func (*buildCommand) Usage() string {
	return "build [--cores=N] [--seed=S] [--config=path] [-v]: allocate pages and segments across N cores\n"
}

func (c *buildCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.cores, "cores", 2, "number of page tables (cores) to build")
	f.Int64Var(&c.seed, "seed", 0, "PRNG seed; 0 draws a fresh one from the OS")
	f.StringVar(&c.configPath, "config", "", "optional TOML config file overriding the default address map")
	f.BoolVar(&c.verbose, "v", false, "enable debug-level logging")
}

func (c *buildCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := c.run(); err != nil {
		fmt.Fprintf(os.Stderr, "memlayout build: %v\n", err)
		os.Exit(exitCodeForError(err))
	}
	return subcommands.ExitSuccess
}

func (c *buildCommand) run() error {
	level := logrus.InfoLevel
	if c.verbose {
		level = logrus.DebugLevel
	}
	log := mllog.New(level)

	cfg, err := mlconfig.Load(c.configPath)
	if err != nil {
		return err
	}
	seed := c.seed
	if seed == 0 {
		seed = cfg.Seed
	}
	if seed == 0 {
		seed, err = entropy.Seed()
		if err != nil {
			return fmt.Errorf("drawing default seed: %w", err)
		}
	}
	log.Infof("building layout: cores=%d seed=%d %s", c.cores, seed, cfg)

	rng := rand.New(rand.NewSource(seed))
	mgr := pagetable.NewManager(rng, cfg.PageTableConfig())
	mgr.SetLogger(log)

	registry := map[string]*segment.SegmentManager{}
	for i := 0; i < c.cores; i++ {
		name := fmt.Sprintf("core_%d", i)
		pt, err := mgr.CreatePageTable(name, name, memattr.EL1NS)
		if err != nil {
			return fmt.Errorf("creating page table %q: %w", name, err)
		}

		pageSize := memattr.SizeKiB4
		if _, err := pt.AllocatePage(memattr.PageTypeCode, pagetable.AllocatePageOptions{Size: &pageSize}); err != nil {
			return fmt.Errorf("%s: allocating code page: %w", name, err)
		}
		if _, err := pt.AllocatePage(memattr.PageTypeData, pagetable.AllocatePageOptions{Size: &pageSize, SequentialPageCount: 4}); err != nil {
			return fmt.Errorf("%s: allocating data pages: %w", name, err)
		}

		sm := segment.New(mgr, pt, rng)
		sm.SetLogger(log)
		if _, err := sm.AllocateMemorySegment(name+"_code", 0x200, memattr.MemoryTypeCode, 0, false); err != nil {
			return fmt.Errorf("%s: allocating code segment: %w", name, err)
		}
		if _, err := sm.AllocateMemorySegment(name+"_stack", 0x1000, memattr.MemoryTypeStack, 0, false); err != nil {
			return fmt.Errorf("%s: allocating stack segment: %w", name, err)
		}
		registry[name] = sm
	}

	if c.cores >= 2 {
		if _, err := mgr.AllocateCrossCorePage(); err != nil {
			return fmt.Errorf("allocating cross-core page: %w", err)
		}
		first := registry["core_0"]
		if _, err := first.AllocateCrossCoreDataMemorySegment("shared", registry); err != nil {
			return fmt.Errorf("allocating cross-core segment: %w", err)
		}
	}

	printSummary(mgr, registry)
	return nil
}

func printSummary(mgr *pagetable.Manager, registry map[string]*segment.SegmentManager) {
	fmt.Println(mgr.String())
	for _, pt := range mgr.GetAllPageTables() {
		fmt.Println(pt.String())
		stats := pt.MemoryStats()
		fmt.Printf("  mapped=0x%x unmapped=0x%x allocated=0x%x non_allocated=0x%x pages=%d\n",
			stats.MappedVA, stats.UnmappedVA, stats.AllocatedVA, stats.NonAllocatedVA, stats.PageCount)
		if sm, ok := registry[pt.Name]; ok {
			for _, memType := range []memattr.MemoryType{memattr.MemoryTypeCode, memattr.MemoryTypeStack, memattr.MemoryTypeDataShared, memattr.MemoryTypeDataPreserve} {
				for _, seg := range sm.GetSegments(memType) {
					fmt.Printf("  %s\n", seg.Base())
				}
			}
		}
	}
}
