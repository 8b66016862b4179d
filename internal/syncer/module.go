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
	"sync"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/errors"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Template is the synchronizer module's flag declaration: the three
// on-disk paths (markdown is required, the widget is required, the bold
// mirror is optional) plus the checkbox-marker CSS toggle.
var Template = args.Template{
	{Name: "--plasma-markdown", Kind: args.KindString, Default: "", Doc: "Path to the canonical Markdown note"},
	{Name: "--plasma-widget", Kind: args.KindString, Default: "", Doc: "Path to the main rich-text HTML widget"},
	{Name: "--plasma-mirror", Kind: args.KindString, Default: "", Doc: "Optional path to the bold-only mirror HTML widget"},
	{Name: "--plasma-checkbox-markers", Kind: args.KindBool, Default: false, Doc: "Render ☐/☒ list-marker CSS in the main widget"},
}

// state is the process-wide agreement point between direction handlers
// (spec.md §3/§9: "process-wide sync state... single initialization
// guarded by an idempotent init-from-disk routine").
type state struct {
	mu                   sync.Mutex
	initialized          bool
	docHash              string
	mainBoldHash         string
	mirrorHash           string
	checkboxApplied      bool
	checkboxAppliedKnown bool
}

// Module is the Plasma/Markdown Synchronizer (spec.md §4.E) wired into
// the pipeline as a Module Interface implementor. One Module instance
// owns exactly one state, matching the "initialized at most once per
// process" invariant.
type Module struct {
	log      ui.Logger
	notifier *notify.Notifier
	onWrite  func(target string) // metrics hook; nil is fine

	st state
}

// New returns a synchronizer Module. onWrite, if non-nil, is invoked
// once per file actually written with "markdown", "widget", or "mirror".
func New(log ui.Logger, notifier *notify.Notifier, onWrite func(target string)) *Module {
	return &Module{log: log, notifier: notifier, onWrite: onWrite}
}

func (m *Module) Name() string            { return "plasma" }
func (m *Module) Priority() int           { return 30 }
func (m *Module) Template() args.Template { return Template }

// paths resolves the module's configured, symlink-resolved absolute
// paths from ctx.Config. Reports ok=false if markdown or widget is
// unset: spec.md §7 classifies a missing required sync path as a
// startup-fatal configuration error, but because paths are read
// per-event (they may be set via per-file directives, not just startup
// flags) this module instead treats an unconfigured event as a no-op
// skip rather than aborting the daemon.
func (m *Module) paths(cfg args.Parsed) (md, widget, mirror string, ok bool) {
	md = cfg.First("plasma_markdown")
	widget = cfg.First("plasma_widget")
	mirror = cfg.First("plasma_mirror")
	if md == "" || widget == "" {
		return "", "", "", false
	}
	return resolveConfigured(md), resolveConfigured(widget), resolveConfigured(mirror), true
}

func resolveConfigured(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Created, Modified, Moved, and Deleted all funnel into run: the
// synchronizer's reaction depends only on which configured path the
// event landed on, not on the event kind (spec.md §4.E direction
// handlers are keyed purely by path identity). Deleted is still routed
// through run so a deleted mirror/widget doesn't wedge the hash state;
// run's direction handlers tolerate a missing file by treating it as
// empty content.
func (m *Module) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.run(ctx)
}
func (m *Module) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.run(ctx)
}
func (m *Module) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.run(ctx)
}
func (m *Module) Deleted(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.run(ctx)
}

func (m *Module) run(ctx module.Context) (module.ChangeMap, error) {
	md, widget, mirror, ok := m.paths(ctx.Config)
	if !ok {
		return nil, nil
	}

	checkboxMarkers := ctx.Config.Bool("plasma_checkbox_markers")

	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	if !m.st.initialized {
		m.initLocked(md, widget, ctx.Path)
	}

	switch ctx.Path {
	case md:
		return m.fromMarkdownLocked(md, widget, mirror, checkboxMarkers)
	case widget:
		return m.fromWidgetLocked(md, widget, mirror, checkboxMarkers)
	case mirror:
		if mirror == "" {
			return nil, nil
		}
		return m.fromMirrorLocked(md, widget, mirror, checkboxMarkers)
	default:
		return nil, nil
	}
}

// initLocked implements "initialize state on first use: prefer Markdown
// if present, else main HTML, else empty" (spec.md §4.E). The file that
// triggered the first event is not read: its new content is compared
// against the other file's state, so the first edit is propagated rather
// than taken as the baseline.
func (m *Module) initLocked(md, widget, trigger string) {
	m.st.initialized = true

	if data, err := os.ReadFile(md); err == nil && md != trigger {
		doc := MarkdownToDoc(string(data)).Normalize()
		m.st.docHash = doc.Hash()
		m.st.mainBoldHash = ItemsHash(doc.BoldItems())
		return
	}
	if data, err := os.ReadFile(widget); err == nil && widget != trigger {
		if doc, err := ParseMainHTML(string(data)); err == nil {
			doc = doc.Normalize()
			m.st.docHash = doc.Hash()
			m.st.mainBoldHash = ItemsHash(doc.BoldItems())
			return
		}
	}
	m.st.docHash = Doc{}.Hash()
	m.st.mainBoldHash = ItemsHash(nil)
}

func (m *Module) readOrEmpty(path, what string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Error("read %s %s: %v", what, path, err)
			m.notifier.Throttled("syncread:"+path, "Failed to read "+what+":\n"+path)
		}
		return ""
	}
	return string(data)
}

func (m *Module) writeIfChanged(path, content string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// applyCheckboxToggleLocked enforces the CSS toggle on the main widget
// independently of semantic content changes. Returns whether it wrote.
func (m *Module) applyCheckboxToggleLocked(widget string, enabled bool) bool {
	if !m.st.checkboxAppliedKnown || m.st.checkboxApplied != enabled {
		current := m.readOrEmpty(widget, "widget")
		if current != "" {
			updated := SetCheckboxMarkerCSS(current, enabled)
			if updated != current {
				if err := os.WriteFile(widget, []byte(updated), 0o644); err != nil {
					m.log.Error("write widget %s: %v", widget, err)
					m.notifier.Throttled("syncwrite:"+widget, "Failed to write widget:\n"+widget)
					return false
				}
				m.st.checkboxAppliedKnown = true
				m.st.checkboxApplied = enabled
				return true
			}
		}
		m.st.checkboxAppliedKnown = true
		m.st.checkboxApplied = enabled
	}
	return false
}

func (m *Module) fromMarkdownLocked(md, widget, mirror string, checkboxMarkers bool) (module.ChangeMap, error) {
	cm := module.ChangeMap{}
	text := m.readOrEmpty(md, "markdown")
	doc := MarkdownToDoc(text).Normalize()
	h := doc.Hash()

	if h == m.st.docHash {
		if m.applyCheckboxToggleLocked(widget, checkboxMarkers) {
			cm[widget] = 1
			m.onWriteNotify("widget")
		}
		return nonEmpty(cm), nil
	}
	m.st.docHash = h

	mainHTML := DocToMainHTML(doc, checkboxMarkers)
	wrote, err := m.writeIfChanged(widget, mainHTML)
	if err != nil {
		m.log.Error("write widget %s: %v", widget, err)
		m.notifier.Throttled("syncwrite:"+widget, "Failed to write widget:\n"+widget)
	} else if wrote {
		cm[widget] = 1
		m.st.checkboxAppliedKnown = true
		m.st.checkboxApplied = checkboxMarkers
		m.onWriteNotify("widget")
	}

	if mirror != "" {
		items := doc.BoldItems()
		ih := ItemsHash(items)
		if ih != m.st.mainBoldHash {
			m.st.mainBoldHash = ih
			mirrorHTML := DocToMirrorHTML(items)
			wroteMirror, err := m.writeIfChanged(mirror, mirrorHTML)
			if err != nil {
				m.log.Error("write mirror %s: %v", mirror, err)
				m.notifier.Throttled("syncwrite:"+mirror, "Failed to write mirror:\n"+mirror)
			} else if wroteMirror {
				cm[mirror] = 1
				m.st.mirrorHash = ih
				m.onWriteNotify("mirror")
			}
		}
	}

	return nonEmpty(cm), nil
}

func (m *Module) fromWidgetLocked(md, widget, mirror string, checkboxMarkers bool) (module.ChangeMap, error) {
	cm := module.ChangeMap{}
	text := m.readOrEmpty(widget, "widget")
	if text == "" {
		return nil, nil
	}

	doc, err := ParseMainHTML(text)
	if err != nil {
		if err == ErrPartialHTML {
			m.log.Debugf("skipping partial widget document: %s", widget)
			return nil, nil
		}
		return nil, err
	}
	doc = doc.Normalize()
	h := doc.Hash()

	if m.applyCheckboxToggleLocked(widget, checkboxMarkers) {
		cm[widget] = 1
		m.onWriteNotify("widget")
	}

	if h != m.st.docHash {
		m.st.docHash = h
		mdText := DocToMarkdown(doc)
		wrote, err := m.writeIfChanged(md, mdText)
		if err != nil {
			m.log.Error("write markdown %s: %v", md, err)
			m.notifier.Throttled("syncwrite:"+md, "Failed to write markdown:\n"+md)
		} else if wrote {
			cm[md] = 1
			m.onWriteNotify("markdown")
		}
	}

	if mirror != "" {
		items := doc.BoldItems()
		ih := ItemsHash(items)
		if ih != m.st.mainBoldHash {
			m.st.mainBoldHash = ih
			mirrorHTML := DocToMirrorHTML(items)
			wrote, err := m.writeIfChanged(mirror, mirrorHTML)
			if err != nil {
				m.log.Error("write mirror %s: %v", mirror, err)
				m.notifier.Throttled("syncwrite:"+mirror, "Failed to write mirror:\n"+mirror)
			} else if wrote {
				cm[mirror] = 1
				m.st.mirrorHash = ih
				m.onWriteNotify("mirror")
			}
		}
	}

	return nonEmpty(cm), nil
}

func (m *Module) fromMirrorLocked(md, widget, mirror string, checkboxMarkers bool) (module.ChangeMap, error) {
	cm := module.ChangeMap{}
	text := m.readOrEmpty(mirror, "mirror")
	items, err := ParseMirrorItems(text)
	if err != nil {
		if err == ErrPartialHTML {
			m.log.Debugf("skipping partial mirror document: %s", mirror)
			return nil, nil
		}
		return nil, err
	}
	ih := ItemsHash(items)
	if ih == m.st.mirrorHash {
		return nil, nil
	}
	m.st.mirrorHash = ih

	widgetText := m.readOrEmpty(widget, "widget")
	mainDoc, err := ParseMainHTML(widgetText)
	if err != nil {
		if err == ErrPartialHTML {
			m.log.Debugf("skipping partial widget document: %s", widget)
			return nil, nil
		}
		return nil, err
	}
	mainDoc = mainDoc.Normalize()

	updated := ReplaceBoldItemsInLines(mainDoc, items).Normalize()
	h := updated.Hash()
	m.st.docHash = h
	m.st.mainBoldHash = ItemsHash(updated.BoldItems())

	mainHTML := DocToMainHTML(updated, checkboxMarkers)
	wrote, err := m.writeIfChanged(widget, mainHTML)
	if err != nil {
		m.log.Error("write widget %s: %v", widget, err)
		m.notifier.Throttled("syncwrite:"+widget, "Failed to write widget:\n"+widget)
	} else if wrote {
		cm[widget] = 1
		m.st.checkboxAppliedKnown = true
		m.st.checkboxApplied = checkboxMarkers
		m.onWriteNotify("widget")
	}

	mdText := DocToMarkdown(updated)
	wroteMd, err := m.writeIfChanged(md, mdText)
	if err != nil {
		m.log.Error("write markdown %s: %v", md, err)
		m.notifier.Throttled("syncwrite:"+md, "Failed to write markdown:\n"+md)
	} else if wroteMd {
		cm[md] = 1
		m.onWriteNotify("markdown")
	}

	canonicalMirror := DocToMirrorHTML(items)
	wroteMirror, err := m.writeIfChanged(mirror, canonicalMirror)
	if err != nil {
		m.log.Error("write mirror %s: %v", mirror, err)
		m.notifier.Throttled("syncwrite:"+mirror, "Failed to write mirror:\n"+mirror)
	} else if wroteMirror {
		cm[mirror] = 1
		m.onWriteNotify("mirror")
	}

	return nonEmpty(cm), nil
}

func (m *Module) onWriteNotify(target string) {
	if m.onWrite != nil {
		m.onWrite(target)
	}
}

func nonEmpty(cm module.ChangeMap) module.ChangeMap {
	if len(cm) == 0 {
		return nil
	}
	return cm
}

// ErrRequiredPathMissing is returned by CheckRequiredPaths when the
// daemon is started with --plasma-markdown or --plasma-widget unset at
// the system level - a missing required file is a startup failure,
// checked once at daemon construction rather than per-event.
var ErrRequiredPathMissing = errors.NewConfigError(
	"Missing synchronizer path",
	"--plasma-markdown and --plasma-widget must both be set for the plasma module to run",
	"Pass both flags on the command line, in the config file, or exclude the plasma module with --exclude plasma",
	nil,
)

// CheckRequiredPaths reports ErrRequiredPathMissing if the startup config
// lacks either required path. Callers only invoke this when the plasma
// module is not excluded; a missing startup value is then fatal even
// though a file's own directives could still supply the paths per event.
func CheckRequiredPaths(cfg args.Parsed) error {
	if cfg.First("plasma_markdown") == "" || cfg.First("plasma_widget") == "" {
		return ErrRequiredPathMissing
	}
	return nil
}
