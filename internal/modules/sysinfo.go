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

package modules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

// SysInfo dumps introspection blocks (module list, flag template, the
// triggering event) inline at the line carrying one of its switches.
type SysInfo struct{}

var SysInfoTemplate = args.Template{
	{Name: "--mods", Kind: args.KindBool, Default: false, Doc: "List every loaded module and its priority"},
	{Name: "--config", Kind: args.KindBool, Default: false, Doc: "Dump the merged effective configuration"},
	{Name: "--man", Kind: args.KindBool, Default: false, Doc: "Dump every flag with its full description"},
	{Name: "--help", Kind: args.KindBool, Default: false, Doc: "Dump the full flag template"},
	{Name: "--sys-event", Kind: args.KindBool, Default: false, Doc: "Dump the triggering event"},
	{Name: "--sys-separator", Kind: args.KindString, Default: "---", Doc: "Block separator line"},
}

func (SysInfo) Name() string            { return "sys" }
func (SysInfo) Priority() int           { return 0 }
func (SysInfo) Template() args.Template { return SysInfoTemplate }

func (s SysInfo) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return s.apply(ctx, sys)
}
func (s SysInfo) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return s.apply(ctx, sys)
}
func (s SysInfo) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return s.apply(ctx, sys)
}
func (s SysInfo) Deleted(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return s.apply(ctx, sys)
}

func (s SysInfo) apply(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	opts, lineNo, ok := s.activeOpts(ctx)
	if !ok {
		return nil, nil
	}

	lines, err := readFileLines(ctx.Path)
	if err != nil {
		return nil, nil
	}

	block := s.buildBlock(ctx, sys, opts)
	flags := []string{"--mods", "--config", "--man", "--help", "--sys-event"}
	updated := replaceLineWithBlock(lines, lineNo, flags, block)
	if err := writeFileLines(ctx.Path, updated); err != nil {
		return nil, err
	}
	return module.ChangeMap{ctx.Path: 1}, nil
}

// activeOpts reports which of --mods/--config/--man/--help/--sys-event fired and the
// earliest line any of them appeared on.
func (s SysInfo) activeOpts(ctx module.Context) (opts []string, lineNo int, ok bool) {
	check := func(key, label string) {
		if ctx.Config.Bool(key) {
			if n, has := firstLine(ctx.ArgLines, key); has {
				opts = append(opts, label)
				if !ok || n < lineNo {
					lineNo = n
					ok = true
				}
			}
		}
	}
	check("mods", "mods")
	check("config", "config")
	check("man", "man")
	check("help", "help")
	check("sys_event", "event")
	return opts, lineNo, ok
}

func (s SysInfo) buildBlock(ctx module.Context, sys module.System, opts []string) string {
	sep := ctx.Config.First("sys_separator")
	if sep == "" {
		sep = "---"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "sys: %s\n", strings.Join(opts, "+"))

	if contains(opts, "event") {
		fmt.Fprintf(&b, "time: %s\n", time.Now().Format(time.RFC3339))
		fmt.Fprintf(&b, "event: kind=%s path=%s is_dir=%t\n", sys.Event.Kind, sys.Event.Path(), sys.Event.IsDirectory)
	}

	if contains(opts, "mods") {
		mods := make([]module.Module, len(sys.Modules))
		copy(mods, sys.Modules)
		sort.SliceStable(mods, func(i, j int) bool { return mods[i].Priority() < mods[j].Priority() })
		for _, m := range mods {
			fmt.Fprintf(&b, "* %s (%d)\n", m.Name(), m.Priority())
		}
	}

	if contains(opts, "config") {
		keys := make([]string, 0, len(ctx.Config))
		for k := range ctx.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s = %v\n", k, ctx.Config[k])
		}
	}

	if contains(opts, "help") {
		for _, d := range sys.Template {
			fmt.Fprintf(&b, "* %s type=%s default=%v\n", d.Name, kindName(d.Kind), d.Default)
		}
	}

	if contains(opts, "man") {
		for _, d := range sys.Template {
			fmt.Fprintf(&b, "* %s type=%s default=%v\n  %s\n", d.Name, kindName(d.Kind), d.Default, d.Doc)
		}
	}

	fmt.Fprintf(&b, "%s", sep)
	return b.String()
}

func kindName(k args.Kind) string {
	switch k {
	case args.KindString:
		return "string"
	case args.KindInt:
		return "int"
	case args.KindFloat:
		return "float"
	case args.KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
