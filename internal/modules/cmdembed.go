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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

// CmdEmbed runs each --c <tokens...> directive as a subprocess (no
// shell) and replaces its originating line with a titled output block.
type CmdEmbed struct{}

var CmdEmbedTemplate = args.Template{
	{Name: "--c", Kind: args.KindString, Default: "", Doc: "Run this command and embed its output"},
	{Name: "--cmd-timeout", Kind: args.KindInt, Default: 5, Doc: "Seconds before a --c command is killed"},
	{Name: "--cmd-max-bytes", Kind: args.KindInt, Default: 20000, Doc: "Byte cap per captured stdout/stderr block"},
	{Name: "--cmd-hide-stderr", Kind: args.KindBool, Default: false, Doc: "Omit stderr from the output block"},
	{Name: "--cmd-hide-stdout", Kind: args.KindBool, Default: false, Doc: "Omit stdout from the output block"},
}

func (CmdEmbed) Name() string            { return "cmd" }
func (CmdEmbed) Priority() int           { return 50 }
func (CmdEmbed) Template() args.Template { return CmdEmbedTemplate }

func (c CmdEmbed) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return c.apply(ctx)
}
func (c CmdEmbed) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return c.apply(ctx)
}
func (c CmdEmbed) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return c.apply(ctx)
}

type cmdRun struct {
	lineNo int
	tokens []string
}

// collectRuns zips the variadic --c tokens with their line attributions,
// grouping consecutive tokens sharing the same line number into one run
// (one command per directive line).
func collectRuns(values []string, lineNos []int) []cmdRun {
	var runs []cmdRun
	for i, v := range values {
		if i >= len(lineNos) {
			break
		}
		ln := lineNos[i]
		if len(runs) > 0 && runs[len(runs)-1].lineNo == ln {
			runs[len(runs)-1].tokens = append(runs[len(runs)-1].tokens, v)
		} else {
			runs = append(runs, cmdRun{lineNo: ln, tokens: []string{v}})
		}
	}
	return runs
}

func (c CmdEmbed) apply(ctx module.Context) (module.ChangeMap, error) {
	values := ctx.Config.Strings("c")
	if len(values) == 0 {
		return nil, nil
	}
	runs := collectRuns(values, ctx.ArgLines["c"])
	if len(runs) == 0 {
		return nil, nil
	}

	timeout := time.Duration(ctx.Config.Int("cmd_timeout", 5)) * time.Second
	maxBytes := ctx.Config.Int("cmd_max_bytes", 20000)
	showStdout := !ctx.Config.Bool("cmd_hide_stdout")
	showStderr := !ctx.Config.Bool("cmd_hide_stderr")

	lines, err := readFileLines(ctx.Path)
	if err != nil {
		return nil, nil
	}

	// Process bottom-to-top so earlier replacements don't shift the line
	// numbers of runs still pending.
	sort.Slice(runs, func(i, j int) bool { return runs[i].lineNo > runs[j].lineNo })

	for _, run := range runs {
		stdout, stderr, exitNote := runCommand(filepath.Dir(ctx.Path), run.tokens, timeout)
		block := buildCmdBlock(run.tokens, stdout, stderr, exitNote, maxBytes, showStdout, showStderr)
		lines = replaceLineWithBlock(lines, run.lineNo, []string{"--c"}, block)
	}

	if err := writeFileLines(ctx.Path, lines); err != nil {
		return nil, err
	}
	return module.ChangeMap{ctx.Path: 1}, nil
}

func runCommand(dir string, tokens []string, timeout time.Duration) (stdout, stderr, note string) {
	if len(tokens) == 0 {
		return "", "", ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tokens[0], tokens[1:]...)
	cmd.Dir = dir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		note = fmt.Sprintf("TIMEOUT after %ds", int(timeout.Seconds()))
	case err != nil:
		if _, ok := err.(*exec.Error); ok {
			note = "command not found"
		} else {
			note = err.Error()
		}
	}
	return stdout, stderr, note
}

func clip(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n…(clipped)…"
}

func buildCmdBlock(tokens []string, stdout, stderr, note string, maxBytes int, showStdout, showStderr bool) string {
	title := strings.Join(tokens, " ")
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ---\n", title)

	wrote := false
	if showStdout && stdout != "" {
		b.WriteString(clip(stdout, maxBytes))
		if !strings.HasSuffix(stdout, "\n") {
			b.WriteString("\n")
		}
		wrote = true
	}
	if showStderr && stderr != "" {
		b.WriteString(clip(stderr, maxBytes))
		if !strings.HasSuffix(stderr, "\n") {
			b.WriteString("\n")
		}
		wrote = true
	}
	if note != "" {
		fmt.Fprintf(&b, "%s\n", note)
		wrote = true
	}
	if !wrote {
		b.WriteString("(empty)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
