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

package gitcommit

import (
	"context"
	"os"
	"strings"
)

const (
	conflictOursStart  = "<<<<<<<"
	conflictSeparator  = "======="
	conflictTheirsStop = ">>>>>>>"
)

// listConflictedPaths returns the repo-relative paths git currently
// reports as unmerged.
func listConflictedPaths(ctx context.Context, runner GitRunner, repoRoot string, env []string) ([]string, error) {
	stdout, _, err := runner.Run(ctx, repoRoot, env, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// resolveConflicts applies mode to every conflicted path, staging each
// one it successfully resolves. Returns an error if any path could not
// be resolved (mode is MergeNone, or an I/O error occurred).
func resolveConflicts(ctx context.Context, runner GitRunner, repoRoot string, env []string, mode MergeMode, paths []string) error {
	if mode == MergeNone {
		return errConflictsUnresolved
	}
	for _, p := range paths {
		if err := resolveOne(ctx, runner, repoRoot, env, mode, p); err != nil {
			return err
		}
		if _, _, err := runner.Run(ctx, repoRoot, env, "add", "--", p); err != nil {
			return err
		}
	}
	return nil
}

func resolveOne(ctx context.Context, runner GitRunner, repoRoot string, env []string, mode MergeMode, path string) error {
	switch mode {
	case MergeOurs:
		_, _, err := runner.Run(ctx, repoRoot, env, "checkout", "--ours", "--", path)
		return err
	case MergeTheirs:
		_, _, err := runner.Run(ctx, repoRoot, env, "checkout", "--theirs", "--", path)
		return err
	case MergeUnion:
		merged, err := resolveUnion(repoRoot, path)
		if err != nil || merged {
			return err
		}
		_, _, err = runner.Run(ctx, repoRoot, env, "checkout", "--ours", "--", path)
		return err
	default:
		return errConflictsUnresolved
	}
}

// resolveUnion rewrites path in place, concatenating the ours-region
// followed by the theirs-region of every conflict hunk it finds. Files
// whose conflict markers don't parse cleanly (binary files, nested
// conflicts) are left untouched and reported with merged=false, so
// resolveOne falls back to checking out our side entirely.
func resolveUnion(repoRoot, relPath string) (merged bool, err error) {
	full := repoRoot + string(os.PathSeparator) + relPath
	data, err := os.ReadFile(full)
	if err != nil {
		return false, err
	}
	text, ok := unionMergeText(string(data))
	if !ok {
		return false, nil
	}
	return true, os.WriteFile(full, []byte(text), 0o644)
}

// unionMergeText scans text for "<<<<<<<"/"======="/">>>>>>>" conflict
// hunks and replaces each with its ours-region immediately followed by
// its theirs-region (inserting a separating newline when the ours
// region doesn't already end with one). Returns ok=false if the markers
// don't form valid, non-nested hunks.
func unionMergeText(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	var out []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, conflictOursStart) {
			out = append(out, line)
			i++
			continue
		}

		var ours, theirs []string
		i++
		for i < len(lines) && !strings.HasPrefix(lines[i], conflictSeparator) {
			if strings.HasPrefix(lines[i], conflictOursStart) || strings.HasPrefix(lines[i], conflictTheirsStop) {
				return "", false
			}
			ours = append(ours, lines[i])
			i++
		}
		if i >= len(lines) {
			return "", false
		}
		i++ // past the separator
		for i < len(lines) && !strings.HasPrefix(lines[i], conflictTheirsStop) {
			if strings.HasPrefix(lines[i], conflictOursStart) || strings.HasPrefix(lines[i], conflictSeparator) {
				return "", false
			}
			theirs = append(theirs, lines[i])
			i++
		}
		if i >= len(lines) {
			return "", false
		}
		i++ // past the theirs marker line

		out = append(out, ours...)
		out = append(out, theirs...)
	}
	return strings.Join(out, "\n"), true
}

var errConflictsUnresolved = unresolvedErr{}

type unresolvedErr struct{}

func (unresolvedErr) Error() string { return "merge conflicts could not be auto-resolved" }
