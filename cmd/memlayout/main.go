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

// memlayout is a demo CLI over the page-table/segment allocation engine: it
// builds a representative multi-core layout and prints a textual summary.
// It keeps no persisted state of its own.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/szoharbu/memlayout/pkg/interval"
	"github.com/szoharbu/memlayout/pkg/pagetable"
)

func registerCommands() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(buildCommand), "")
	subcommands.Register(new(summaryCommand), "")
}

func main() {
	registerCommands()
	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// exitCodeForError maps the §7 error taxonomy's non-zero-exit kinds to
// distinct process exit codes, per §6. Anything else reported by the
// library is a bug in this demo driver, not a documented exit kind, and
// gets a generic failure code.
func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pagetable.ErrNotFound):
		return 1
	case errors.Is(err, pagetable.ErrOutOfVA):
		return 2
	case errors.Is(err, pagetable.ErrOutOfPA):
		return 3
	case errors.Is(err, pagetable.ErrPageTableInconsistent):
		return 4
	case errors.Is(err, pagetable.ErrInvalidAlignment):
		return 5
	case errors.Is(err, interval.ErrNotFound):
		return 1
	default:
		return 70
	}
}
