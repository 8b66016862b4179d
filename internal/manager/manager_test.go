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

package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// recorder is a test module that records each invocation and can rewrite
// the target file on its first call, exercising the re-parse-between-
// modules contract.
type recorder struct {
	name     string
	priority int
	calls    *[]string
	rewrite  string // if non-empty, file content to write on first Modified call
	wrote    bool
	template args.Template
}

func (r *recorder) Name() string            { return r.name }
func (r *recorder) Priority() int           { return r.priority }
func (r *recorder) Template() args.Template { return r.template }

func (r *recorder) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	*r.calls = append(*r.calls, r.name+":"+todoState(ctx.Config))
	if r.rewrite != "" && !r.wrote {
		r.wrote = true
		if err := os.WriteFile(ctx.Path, []byte(r.rewrite), 0o644); err != nil {
			return nil, err
		}
		return module.ChangeMap{ctx.Path: 1}, nil
	}
	return nil, nil
}

func todoState(c args.Parsed) string {
	if c.Bool("todo") {
		return "todo"
	}
	return "notodo"
}

func TestManagerOrdersByPriority(t *testing.T) {
	var calls []string
	low := &recorder{name: "low", priority: 5, calls: &calls}
	high := &recorder{name: "high", priority: 50, calls: &calls}

	mgr, err := New([]module.Module{high, low}, nil, ui.Logger{})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	_, err = mgr.Run(path, module.Event{Kind: module.EventModified, SrcPath: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"low:notodo", "high:notodo"}, calls)
}

func TestManagerExcludeForce(t *testing.T) {
	var calls []string
	m := &recorder{name: "plasma", priority: 10, calls: &calls}

	mgr, err := New([]module.Module{m}, nil, ui.Logger{})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("--exclude plasma\nbody\n"), 0o644))

	_, err = mgr.Run(path, module.Event{Kind: module.EventModified, SrcPath: path})
	require.NoError(t, err)
	assert.Empty(t, calls)

	require.NoError(t, os.WriteFile(path, []byte("--exclude plasma --force plasma\nbody\n"), 0o644))
	_, err = mgr.Run(path, module.Event{Kind: module.EventModified, SrcPath: path})
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestManagerReparsesAfterModuleWrite(t *testing.T) {
	var calls []string
	writer := &recorder{name: "writer", priority: 1, calls: &calls, rewrite: "--todo\nbody\n",
		template: args.Template{{Name: "--todo", Kind: args.KindBool}}}
	reader := &recorder{name: "reader", priority: 2, calls: &calls}

	mgr, err := New([]module.Module{writer, reader}, nil, ui.Logger{})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("plain\n"), 0o644))

	cm, err := mgr.Run(path, module.Event{Kind: module.EventModified, SrcPath: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"writer:notodo", "reader:todo"}, calls)
	assert.Equal(t, 1, cm[path])
}

type panicker struct{}

func (panicker) Name() string            { return "boom" }
func (panicker) Priority() int           { return 1 }
func (panicker) Template() args.Template { return nil }
func (panicker) Modified(module.Context, module.System) (module.ChangeMap, error) {
	panic("handler bug")
}

func TestManagerRecoversFromPanickingModule(t *testing.T) {
	var calls []string
	after := &recorder{name: "after", priority: 2, calls: &calls}

	mgr, err := New([]module.Module{panicker{}, after}, nil, ui.Logger{})
	require.NoError(t, err)

	var failed []string
	mgr.OnModuleError = func(name string) { failed = append(failed, name) }

	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	_, err = mgr.Run(path, module.Event{Kind: module.EventModified, SrcPath: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"boom"}, failed)
	assert.Len(t, calls, 1, "modules after the panicking one still run")
}

func TestParsePriorityListRejectsMalformed(t *testing.T) {
	_, err := parsePriorityList([]string{"notanumber"})
	assert.Error(t, err)

	_, err = parsePriorityList([]string{"git=notanint"})
	assert.Error(t, err)

	p, err := parsePriorityList([]string{"git=5", "plasma=1"})
	require.NoError(t, err)
	assert.Equal(t, 5, p["git"])
}
