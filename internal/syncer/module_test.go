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

package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

func newTestModule() *Module {
	return New(ui.Logger{}, notify.New(), nil)
}

func cfgFor(md, widget, mirror string) args.Parsed {
	return args.Parsed{"plasma_markdown": []interface{}{md}, "plasma_widget": []interface{}{widget}, "plasma_mirror": []interface{}{mirror}}
}

func TestSyncerMarkdownToWidget(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "note.md")
	widget := filepath.Join(dir, "widget.html")

	require.NoError(t, os.WriteFile(md, []byte("- hello\n- **world**\n"), 0o644))

	m := newTestModule()
	ctx := module.Context{Path: md, Config: cfgFor(md, widget, "")}
	cm, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, widget)

	data, err := os.ReadFile(widget)
	require.NoError(t, err)
	assert.Contains(t, string(data), "world")
}

func TestSyncerWidgetToMarkdown(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "note.md")
	widget := filepath.Join(dir, "widget.html")

	m := newTestModule()
	html := DocToMainHTML(MarkdownToDoc("- plain item\n").Normalize(), false)
	require.NoError(t, os.WriteFile(widget, []byte(html), 0o644))

	ctx := module.Context{Path: widget, Config: cfgFor(md, widget, "")}
	cm, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, md)

	data, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plain item")
}

func TestSyncerNoopWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "note.md")
	widget := filepath.Join(dir, "widget.html")
	require.NoError(t, os.WriteFile(md, []byte("hello\n"), 0o644))

	m := newTestModule()
	ctx := module.Context{Path: md, Config: cfgFor(md, widget, "")}
	_, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)

	cm, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)
	assert.Empty(t, cm)
}

func TestSyncerMirrorEditRewritesWidgetAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "note.md")
	widget := filepath.Join(dir, "widget.html")
	mirror := filepath.Join(dir, "mirror.html")

	original := "- [ ] **A**\n- regular\n**B**"
	require.NoError(t, os.WriteFile(md, []byte(original), 0o644))
	doc := MarkdownToDoc(original).Normalize()
	require.NoError(t, os.WriteFile(widget, []byte(DocToMainHTML(doc, false)), 0o644))
	require.NoError(t, os.WriteFile(mirror, []byte(DocToMirrorHTML([]string{"A2", "B2"})), 0o644))

	m := newTestModule()
	ctx := module.Context{Path: mirror, Config: cfgFor(md, widget, mirror)}
	cm, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)
	assert.Contains(t, cm, widget)
	assert.Contains(t, cm, md)

	data, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Equal(t, "- [ ] **A2**\n- regular\n**B2**", string(data))
}

func TestSyncerMissingPathsIsNoop(t *testing.T) {
	m := newTestModule()
	ctx := module.Context{Path: "/tmp/x.md", Config: args.Parsed{}}
	cm, err := m.Modified(ctx, module.System{})
	require.NoError(t, err)
	assert.Nil(t, cm)
}
