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
	"os"

	"github.com/google/subcommands"

	"github.com/szoharbu/memlayout/internal/mlconfig"
)

// summaryCommand resolves and prints configuration without allocating
// anything: a dry-run for validating a config file before a real build.
type summaryCommand struct {
	configPath string
}

func (*summaryCommand) Name() string     { return "summary" }
func (*summaryCommand) Synopsis() string { return "resolve and print configuration without allocating" }
func (*summaryCommand) Usage() string {
	return "summary [--config=path]: print the resolved address-map constants\n"
}

func (c *summaryCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "optional TOML config file overriding the default address map")
}

func (c *summaryCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := mlconfig.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memlayout summary: %v\n", err)
		os.Exit(exitCodeForError(err))
	}
	fmt.Println(cfg)
	return subcommands.ExitSuccess
}
