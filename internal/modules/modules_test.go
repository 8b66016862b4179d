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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseDirectives(t *testing.T, path string, tmpl args.Template) (args.Parsed, args.LineMap) {
	t.Helper()
	known, lines, err := args.ParseFileDirectives(path, tmpl, false)
	require.NoError(t, err)
	return known, lines
}

func TestBannerInsertsBlockAndRemovesDirective(t *testing.T) {
	path := writeTemp(t, "note.md", "--banner hello\nrest of note\n")
	known, lines := parseDirectives(t, path, BannerTemplate)

	b := Banner{}
	cm, err := b.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "rest of note")
	assert.NotContains(t, string(data), "--banner")
}

func TestTodoConvertsBareBullets(t *testing.T) {
	path := writeTemp(t, "note.md", "--todo\n- buy milk\n- [ ] already done\nnot a bullet\n")
	known, lines := parseDirectives(t, path, TodoTemplate)

	td := Todo{}
	cm, err := td.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "- [ ] buy milk")
	assert.Equal(t, 1, countOccurrences(string(data), "[ ] buy milk"))
}

func TestTodoSkipsNonMarkdown(t *testing.T) {
	path := writeTemp(t, "note.txt", "--todo\n- buy milk\n")
	known, lines := parseDirectives(t, path, TodoTemplate)

	td := Todo{}
	cm, err := td.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Nil(t, cm)
}

func TestRenameMovesFileWithinDir(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.md")
	require.NoError(t, os.WriteFile(oldPath, []byte("--r new.md\nbody\n"), 0o644))
	known, lines := parseDirectives(t, oldPath, RenameTemplate)

	r := Rename{}
	cm, err := r.Modified(module.Context{Path: oldPath, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)

	newPath := filepath.Join(dir, "new.md")
	assert.Equal(t, 1, cm[oldPath])
	assert.Equal(t, 1, cm[newPath])
	_, err = os.Stat(newPath)
	assert.NoError(t, err)
}

func TestRenameRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.md")
	require.NoError(t, os.WriteFile(oldPath, []byte("--r new.md\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.md"), []byte("existing\n"), 0o644))
	known, lines := parseDirectives(t, oldPath, RenameTemplate)

	r := Rename{}
	cm, err := r.Modified(module.Context{Path: oldPath, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Nil(t, cm)
	_, err = os.Stat(oldPath)
	assert.NoError(t, err, "original file must remain untouched")
}

func TestCollectRunsGroupsByLine(t *testing.T) {
	runs := collectRuns([]string{"ls", "-la", "echo", "hi"}, []int{3, 3, 7, 7})
	require.Len(t, runs, 2)
	assert.Equal(t, []string{"ls", "-la"}, runs[0].tokens)
	assert.Equal(t, 7, runs[1].lineNo)
}

func TestClipTruncatesLongOutput(t *testing.T) {
	out := clip("0123456789", 4)
	assert.Contains(t, out, "0123")
	assert.Contains(t, out, "clipped")
}

func TestCmdEmbedRunsAndEmbedsOutput(t *testing.T) {
	path := writeTemp(t, "note.md", "--c echo hello\n")
	known, lines := parseDirectives(t, path, CmdEmbedTemplate)

	c := CmdEmbed{}
	cm, err := c.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "--- echo hello ---")
}

func TestSysInfoModsBlock(t *testing.T) {
	path := writeTemp(t, "note.md", "--mods\n")
	known, lines := parseDirectives(t, path, SysInfoTemplate)

	s := SysInfo{}
	sys := module.System{Modules: []module.Module{Banner{}, Todo{}}}
	cm, err := s.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, sys)
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "banner (5)")
	assert.Contains(t, string(data), "todo (10)")
}

func TestSysInfoConfigBlockDumpsMergedConfig(t *testing.T) {
	path := writeTemp(t, "note.md", "--config\n")
	known, lines := parseDirectives(t, path, SysInfoTemplate)
	known["sys_on_open_cooldown"] = []interface{}{"20"}

	s := SysInfo{}
	cm, err := s.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sys_on_open_cooldown")
}

func TestSysInfoManBlockIncludesFlagDocs(t *testing.T) {
	path := writeTemp(t, "note.md", "--man\n")
	known, lines := parseDirectives(t, path, SysInfoTemplate)

	s := SysInfo{}
	sys := module.System{Template: SysInfoTemplate}
	cm, err := s.Modified(module.Context{Path: path, Config: known, ArgLines: lines}, sys)
	require.NoError(t, err)
	assert.Contains(t, cm, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "--sys-event")
	assert.Contains(t, string(data), "Dump the triggering event")
}

func countOccurrences(s, substr string) int {
	n := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			n++
		}
	}
	return n
}
