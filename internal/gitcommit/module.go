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
	"strconv"
	"time"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/metrics"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// Template declares the git module's flags. --gmsg/--tsmsg/--tsfmt/--gkey
// carry forward modules/git.py's surface; the --git-* flags are new,
// configuring the safe-pull-merge behavior spec.md §4.F adds with no
// precedent in that original.
var Template = args.Template{
	{Name: "--gmsg", Kind: args.KindString, Default: "auto", Doc: "Base commit message"},
	{Name: "--tsmsg", Kind: args.KindBool, Default: false, Doc: "Append a timestamp to the commit message"},
	{Name: "--tsfmt", Kind: args.KindString, Default: time.RFC3339, Doc: "Go time layout for --tsmsg"},
	{Name: "--gkey", Kind: args.KindString, Default: "", Doc: "SSH private key path for git push/pull"},
	{Name: "--git-auto-pull", Kind: args.KindBool, Default: false, Doc: "Safe pull-merge on file-opened events"},
	{Name: "--git-merge-mode", Kind: args.KindString, Default: "none", Doc: "Conflict auto-resolution: none, ours, theirs, union"},
	{Name: "--git-auto-merge-on-push", Kind: args.KindBool, Default: false, Doc: "Safe pull-merge and retry once on a rejected push"},
	{Name: "--git-debounce-seconds", Kind: args.KindFloat, Default: 0.8, Doc: "Quiet window before a repo's batch is flushed"},
	{Name: "--git-add-timeout", Kind: args.KindInt, Default: 8, Doc: "Timeout in seconds for add/status/commit"},
	{Name: "--git-push-timeout", Kind: args.KindInt, Default: 20, Doc: "Timeout in seconds for push"},
	{Name: "--git-pull-timeout", Kind: args.KindInt, Default: 30, Doc: "Timeout in seconds for pull"},
	{Name: "--git-push-backoff-start", Kind: args.KindInt, Default: 5, Doc: "Initial push-retry backoff in seconds"},
	{Name: "--git-push-backoff-max", Kind: args.KindInt, Default: 120, Doc: "Maximum push-retry backoff in seconds"},
}

// Module is the batched git committer wired into the pipeline. It never
// writes observable note files; every handler enqueues work onto the
// background Worker and returns an empty change map.
type Module struct {
	worker *Worker
}

// New constructs a Module and starts its background worker. Callers must
// call Stop at shutdown.
func New(runner GitRunner, notifier *notify.Notifier, log ui.Logger, reg *metrics.Registry) *Module {
	w := NewWorker(runner, notifier, log, reg)
	w.Start()
	return &Module{worker: w}
}

// Stop signals the background worker to exit and waits for it to drain.
func (m *Module) Stop() { m.worker.Stop() }

func (m *Module) Name() string            { return "git" }
func (m *Module) Priority() int           { return 50 }
func (m *Module) Template() args.Template { return Template }

func optionsFrom(cfg args.Parsed) Options {
	o := DefaultOptions()
	if v := cfg.First("gmsg"); v != "" {
		o.BaseMsg = v
	}
	o.Timestamp = cfg.Bool("tsmsg")
	if v := cfg.First("tsfmt"); v != "" {
		o.TimestampFormat = v
	}
	o.SSHKeyPath = cfg.First("gkey")
	o.AutoPull = cfg.Bool("git_auto_pull")
	o.AutoMergeOnPush = cfg.Bool("git_auto_merge_on_push")
	if v := cfg.First("git_merge_mode"); v != "" {
		o.MergeMode = MergeMode(v)
	}
	if v := cfg.First("git_debounce_seconds"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			o.DebounceSeconds = f
		}
	}

	if n := cfg.Int("git_add_timeout", -1); n > 0 {
		o.AddTimeout = time.Duration(n) * time.Second
	}
	if n := cfg.Int("git_push_timeout", -1); n > 0 {
		o.PushTimeout = time.Duration(n) * time.Second
	}
	if n := cfg.Int("git_pull_timeout", -1); n > 0 {
		o.PullTimeout = time.Duration(n) * time.Second
	}
	if n := cfg.Int("git_push_backoff_start", -1); n > 0 {
		o.PushBackoffStart = time.Duration(n) * time.Second
	}
	if n := cfg.Int("git_push_backoff_max", -1); n > 0 {
		o.PushBackoffMax = time.Duration(n) * time.Second
	}
	return o
}

func (m *Module) handle(ctx module.Context, kind string) (module.ChangeMap, error) {
	if pathIsInsideGitDir(ctx.Path) {
		return nil, nil
	}
	root, ok := findRepoRoot(ctx.Path)
	if !ok {
		return nil, nil
	}
	m.worker.Enqueue(root, kind, ctx.Path, optionsFrom(ctx.Config))
	return nil, nil
}

func (m *Module) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.handle(ctx, "created")
}
func (m *Module) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.handle(ctx, "modified")
}
func (m *Module) Deleted(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.handle(ctx, "deleted")
}
func (m *Module) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.handle(ctx, "moved")
}
func (m *Module) Opened(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return m.handle(ctx, "opened")
}
