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

// Package modules implements the small, single-purpose auxiliary
// modules: the banner inserter, checklist formatter, renamer, command
// embedder, and sys-info reporter.
package modules

import (
	"os"
	"strings"

	"github.com/kraklabs/lucynotesd/internal/args"
)

// readFileLines splits a file's content on "\n", matching
// args.ParseFileDirectives's own line numbering so a flag's attributed
// line number indexes this slice directly with no off-by-one.
func readFileLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}

func writeFileLines(path string, lines []string) error {
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

// firstLine returns the first (lowest) line number recorded for key, or
// ok=false if the key never occurred.
func firstLine(argLines map[string][]int, key string) (int, bool) {
	nums, ok := argLines[key]
	if !ok || len(nums) == 0 {
		return 0, false
	}
	n := nums[0]
	for _, x := range nums[1:] {
		if x < n {
			n = x
		}
	}
	return n, true
}

// replaceLineWithBlock replaces physical line lineNo (1-based) in lines
// with block, followed by any residual non-flag text still on that
// original line after stripping flagNames. Returns the updated slice.
func replaceLineWithBlock(lines []string, lineNo int, flagNames []string, block string) []string {
	idx := lineNo - 1
	if idx < 0 || idx >= len(lines) {
		return lines
	}
	residual := strings.TrimSpace(args.StripFlagsFromLine(lines[idx], flagNames))
	replacement := block
	if residual != "" {
		replacement = block + "\n" + residual
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, replacement)
	out = append(out, lines[idx+1:]...)
	return out
}
