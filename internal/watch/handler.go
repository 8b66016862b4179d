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

package watch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/lucynotesd/internal/metrics"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Runner is the subset of *manager.Manager the handler depends on, kept
// narrow so tests can fake it.
type Runner interface {
	Run(path string, ev module.Event) (module.ChangeMap, error)
}

// Handler is the File Event Handler: it filters raw events, consults the
// ignore ledger and open throttle, and forwards survivors to a Runner.
type Handler struct {
	Runner   Runner
	Ledger   *IgnoreLedger
	Throttle *OpenThrottle
	Log      ui.Logger
	Now      func() time.Time
	Metrics  *metrics.Registry // optional
}

// NewHandler builds a Handler with sensible defaults.
func NewHandler(runner Runner, cooldown time.Duration, log ui.Logger) *Handler {
	return &Handler{
		Runner:   runner,
		Ledger:   NewIgnoreLedger(),
		Throttle: NewOpenThrottle(cooldown),
		Log:      log,
		Now:      time.Now,
	}
}

// HandleEvent is the File Event Handler's on_event operation.
func (h *Handler) HandleEvent(ev module.Event) {
	if ev.IsDirectory {
		return
	}
	defer h.publishGauges()

	effective := ev.Path()
	if strings.HasPrefix(filepath.Base(effective), ".") {
		return
	}

	resolved := resolvePath(effective)
	if containsGitComponent(resolved) {
		return
	}

	if ev.Kind == module.EventMoved {
		src := resolvePath(ev.SrcPath)
		dst := resolvePath(ev.DestPath)
		srcIgnored := h.Ledger.CheckAndDecrement(src)
		dstIgnored := h.Ledger.CheckAndDecrement(dst)
		if srcIgnored || dstIgnored {
			return
		}
	} else {
		if h.Ledger.CheckAndDecrement(resolved) {
			return
		}
	}

	if ev.Kind == module.EventOpened {
		if !h.Throttle.Allow(resolved, h.Now()) {
			return
		}
	}

	ev.SrcPath = resolvePath(ev.SrcPath)
	if ev.DestPath != "" {
		ev.DestPath = resolvePath(ev.DestPath)
	}

	if h.Metrics != nil {
		h.Metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	}

	cm, err := h.Runner.Run(resolved, ev)
	if err != nil {
		h.Log.Error("pipeline run failed for %s: %v", resolved, err)
		return
	}
	for path, n := range cm {
		h.Ledger.Mark(path, n)
	}
}

// publishGauges keeps the ledger/throttle size gauges current after every
// event, including ones the filters dropped (a self-write drop still
// decrements the ledger).
func (h *Handler) publishGauges() {
	if h.Metrics == nil {
		return
	}
	h.Metrics.IgnoreLedgerSize.Set(float64(h.Ledger.Len()))
	h.Metrics.OpenThrottleSize.Set(float64(h.Throttle.Len()))
}

func containsGitComponent(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".git" {
			return true
		}
	}
	return false
}

// resolvePath makes path absolute and resolves symlinks, falling back to
// the absolute (unresolved) path if either step fails - e.g. the file was
// deleted between the event firing and this call.
func resolvePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}
