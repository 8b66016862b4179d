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

// Package manager implements the Module Manager: it owns the ordered
// module set, merges per-event directives over the startup configuration,
// applies exclude/force policy, and dispatches events to modules in
// priority order.
package manager

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/errors"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Manager owns the ordered module set and dispatches events to it.
type Manager struct {
	modules  []module.Module
	template args.Template
	startup  args.Parsed
	log      ui.Logger

	// OnModuleError, if set, is invoked with the module's name whenever a
	// handler returns an error (the pipeline continues regardless).
	OnModuleError func(name string)
}

// New builds the global template from SystemTemplate and every module's
// own template, parses rawTokens (the unknown leftovers from startup CLI
// parsing) against it to produce the startup config, and orders modules
// by --sys-priority overrides or their own declared priority.
//
// Construction fails if two flags collide across the merged template, or
// if --sys-priority contains a malformed "name=int" entry.
func New(mods []module.Module, rawTokens []string, log ui.Logger) (*Manager, error) {
	tmpl, err := MergedTemplate(mods)
	if err != nil {
		return nil, err
	}
	startup, _ := args.Parse(rawTokens, tmpl)
	return NewFromParsed(mods, tmpl, startup, log)
}

// MergedTemplate builds the global template from SystemTemplate and every
// module's own template, without parsing any startup tokens. Callers that
// need the template before they have a startup config (e.g. to load a
// config file with the right flag set) use this directly.
func MergedTemplate(mods []module.Module) (args.Template, error) {
	tmpl := args.MergeTemplates(SystemTemplate)
	seen := map[string]bool{}
	for _, d := range tmpl {
		seen[d.Name] = true
	}
	for _, m := range mods {
		for _, d := range m.Template() {
			if seen[d.Name] {
				return nil, errors.NewValidationError(
					"Duplicate flag across modules",
					fmt.Sprintf("flag %s is declared by more than one module", d.Name),
					"Rename the conflicting flag in one of the modules",
					nil,
				)
			}
			seen[d.Name] = true
			tmpl = append(tmpl, d)
		}
	}
	return tmpl, nil
}

// NewFromParsed builds a Manager from an already-merged startup config
// (e.g. config file values overridden by CLI tokens), skipping the
// rawTokens parsing step New performs.
func NewFromParsed(mods []module.Module, tmpl args.Template, startup args.Parsed, log ui.Logger) (*Manager, error) {
	priorities, err := parsePriorityList(startup.Strings("sys_priority"))
	if err != nil {
		return nil, err
	}

	ordered := make([]module.Module, len(mods))
	copy(ordered, mods)
	sort.SliceStable(ordered, func(i, j int) bool {
		return effectivePriority(ordered[i], priorities) < effectivePriority(ordered[j], priorities)
	})

	return &Manager{modules: ordered, template: tmpl, startup: startup, log: log}, nil
}

// Template returns the manager's merged global template.
func (m *Manager) Template() args.Template { return m.template }

// Modules returns the ordered module set.
func (m *Manager) Modules() []module.Module { return m.modules }

func effectivePriority(m module.Module, overrides map[string]int) int {
	if p, ok := overrides[m.Name()]; ok {
		return p
	}
	if m.Priority() != 0 {
		return m.Priority()
	}
	return module.DefaultPriority
}

func parsePriorityList(entries []string) (map[string]int, error) {
	out := map[string]int{}
	for _, e := range entries {
		eq := strings.IndexByte(e, '=')
		if eq <= 0 || eq == len(e)-1 {
			return nil, errors.NewValidationError(
				"Invalid --sys-priority entry",
				fmt.Sprintf("expected name=int, got %q", e),
				`Use the form "module-name=<integer>"`,
				nil,
			)
		}
		name := e[:eq]
		n, err := strconv.Atoi(e[eq+1:])
		if err != nil {
			return nil, errors.NewValidationError(
				"Invalid --sys-priority entry",
				fmt.Sprintf("priority for %q is not an integer: %q", name, e[eq+1:]),
				`Use the form "module-name=<integer>"`,
				err,
			)
		}
		out[name] = n
	}
	return out, nil
}

// Run dispatches one event through the pipeline at path, re-reading the
// file's own directives after every module write so that later modules
// observe the fresh file state.
func (mgr *Manager) Run(path string, ev module.Event) (module.ChangeMap, error) {
	onlyFirstLine := mgr.startup.Bool("sys_use_only_first_line")

	fileKnown, argLines, err := args.ParseFileDirectives(path, mgr.template, onlyFirstLine)
	if err != nil {
		// Missing/unreadable file at dispatch time: nothing to do, not
		// an error (e.g. deleted events race with reads of a gone file).
		fileKnown, argLines = args.Parsed{}, args.LineMap{}
	}
	config := args.Merge(mgr.startup, fileKnown)

	var aggregated module.ChangeMap

	for _, mod := range mgr.modules {
		exclude := config.Strings("exclude")
		force := config.Strings("force")
		if contains(exclude, mod.Name()) && !contains(force, mod.Name()) {
			continue
		}

		cm, ran, err := dispatch(mod, ev.Kind, module.Context{Path: path, Config: config, ArgLines: argLines},
			module.System{Event: ev, Template: mgr.template, Modules: mgr.modules})
		if !ran {
			continue
		}
		if err != nil {
			mgr.log.Error("module %s failed on %s: %v", mod.Name(), path, err)
			if mgr.OnModuleError != nil {
				mgr.OnModuleError(mod.Name())
			}
			continue
		}
		if len(cm) == 0 {
			continue
		}

		aggregated = aggregated.Add(cm)

		fileKnown, argLines, err = args.ParseFileDirectives(path, mgr.template, onlyFirstLine)
		if err != nil {
			fileKnown, argLines = args.Parsed{}, args.LineMap{}
		}
		config = args.Merge(mgr.startup, fileKnown)
	}

	return aggregated, nil
}

func dispatch(mod module.Module, kind module.EventKind, ctx module.Context, sys module.System) (cm module.ChangeMap, ran bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			cm, ran = nil, true
			err = fmt.Errorf("module panicked: %v\n%s", r, debug.Stack())
		}
	}()
	switch kind {
	case module.EventCreated:
		if h, ok := mod.(module.CreatedHandler); ok {
			cm, err := h.Created(ctx, sys)
			return cm, true, err
		}
	case module.EventModified:
		if h, ok := mod.(module.ModifiedHandler); ok {
			cm, err := h.Modified(ctx, sys)
			return cm, true, err
		}
	case module.EventMoved:
		if h, ok := mod.(module.MovedHandler); ok {
			cm, err := h.Moved(ctx, sys)
			return cm, true, err
		}
	case module.EventDeleted:
		if h, ok := mod.(module.DeletedHandler); ok {
			cm, err := h.Deleted(ctx, sys)
			return cm, true, err
		}
	case module.EventOpened:
		if h, ok := mod.(module.OpenedHandler); ok {
			cm, err := h.Opened(ctx, sys)
			return cm, true, err
		}
	}
	return nil, false, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
