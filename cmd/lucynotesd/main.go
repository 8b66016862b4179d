// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements lucynotesd, a daemon that watches a set of
// note directories and reacts to per-file directives: syncing a
// Markdown note against its rich-text widgets, committing changed notes
// to git, and running a handful of small text-rewriting modules.
//
// Usage:
//
//	lucynotesd [flags] <notes-dir>...
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the bootstrap CLI flags that apply before any
// per-file or config-file directive is consulted.
type GlobalFlags struct {
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		noColor     = flag.Bool("no-color", false, "Disable color output (respects NO_COLOR env var)")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential console output")
		configPath  = flag.StringP("config", "c", "config.txt", "Path to the daemon config file")
	)

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `lucynotesd watches one or more directories and drives per-file
directives embedded in the notes it finds there: syncing a Markdown
note against its rich-text widgets, committing changed notes to git,
and running banner/todo/rename/cmd/sysinfo modules.

Usage:
  lucynotesd [flags] <notes-dir>...

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  lucynotesd ~/notes
  lucynotesd -v --config ~/.lucynotesd.yaml ~/notes ~/work-notes

Most configuration (sync paths, git options, module flags) lives in
the config file or in directives embedded in individual notes; see
--config. The positional <notes-dir> arguments, when given, override
the config file's --sys-notes-dirs.
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("lucynotesd version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}

	globals := GlobalFlags{NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	ui.InitColors(globals.NoColor)
	log := ui.Logger{Debug: globals.Verbose >= 2, Quiet: globals.Quiet}

	os.Exit(run(*configPath, flag.Args(), log))
}
