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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/args"
)

var testTemplate = args.Template{
	{Name: "--sys-notes-dirs", Kind: args.KindString, Default: []string{}},
	{Name: "--sys-debug", Kind: args.KindBool, Default: false},
	{Name: "--sys-on-open-cooldown", Kind: args.KindInt, Default: 20},
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sys_notes_dirs:\n  - /home/user/notes\nsys_debug: true\n"), 0o644))

	known, unknown, err := Load(path, testTemplate)
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, []string{"/home/user/notes"}, known.Strings("sys_notes_dirs"))
	assert.True(t, known.Bool("sys_debug"))
}

func TestLoadFlagLineFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte("--sys-notes-dirs /home/user/notes\n--sys-on-open-cooldown 5\n"), 0o644))

	known, _, err := Load(path, testTemplate)
	require.NoError(t, err)
	assert.Equal(t, 5, known.Int("sys_on_open_cooldown", -1))
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load("/nonexistent/config.yaml", testTemplate)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LUCYNOTESD_SYS_DEBUG", "true")
	t.Setenv("LUCYNOTESD_SYS_NOTES_DIRS", "/a,/b")

	known := args.Parsed{}
	out := ApplyEnvOverrides(known, testTemplate)
	assert.True(t, out.Bool("sys_debug"))
	assert.Equal(t, []string{"/a", "/b"}, out.Strings("sys_notes_dirs"))
}
