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
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/lucynotesd/internal/metrics"
	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// pollInterval is how often the worker wakes up to check for batches
// whose debounce window has elapsed, mirroring the original's
// queue.get(timeout=0.2) poll cadence.
const pollInterval = 200 * time.Millisecond

var pushRejectPhrases = []string{
	"non-fast-forward",
	"fetch first",
	"failed to push some refs",
	"rejected",
	"remote contains work",
	"updates were rejected",
}

// Worker owns the single background goroutine that drains enqueued
// events into per-repository batches and flushes them once each batch
// has been quiet for its configured debounce window.
type Worker struct {
	runner   GitRunner
	notifier *notify.Notifier
	log      ui.Logger
	metrics  *metrics.Registry

	queue chan event

	mu      sync.Mutex
	pending map[string]*repoBatch
	backoff map[string]*pushBackoff

	stop chan struct{}
	done chan struct{}
}

// NewWorker constructs a Worker. metrics may be nil.
func NewWorker(runner GitRunner, notifier *notify.Notifier, log ui.Logger, reg *metrics.Registry) *Worker {
	return &Worker{
		runner:   runner,
		notifier: notifier,
		log:      log,
		metrics:  reg,
		queue:    make(chan event, 256),
		pending:  map[string]*repoBatch{},
		backoff:  map[string]*pushBackoff{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start spawns the background worker goroutine. Must be called once.
func (w *Worker) Start() {
	go w.loop()
}

// Stop signals the worker to exit at its next loop tick and blocks
// until it has done so (spec.md §5's shutdown ordering: "signal the git
// worker to exit at the next loop tick... the process exits only after
// join").
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

// Enqueue submits one event for batching. Never blocks the caller for
// longer than it takes to push onto a buffered channel.
func (w *Worker) Enqueue(repoRoot, kind, path string, opts Options) {
	w.queue <- event{repoRoot: repoRoot, kind: kind, path: path, opts: opts, at: time.Now()}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case ev := <-w.queue:
			w.ingest(ev)
		case <-time.After(pollInterval):
			w.flushDue()
		}
	}
}

func (w *Worker) ingest(ev event) {
	w.mu.Lock()
	b, ok := w.pending[ev.repoRoot]
	if !ok {
		b = newRepoBatch(ev.repoRoot)
		w.pending[ev.repoRoot] = b
	}
	b.absorb(ev)
	w.mu.Unlock()
}

func (w *Worker) flushDue() {
	now := time.Now()
	var due []*repoBatch

	w.mu.Lock()
	for root, b := range w.pending {
		if now.Sub(b.lastEventAt) >= b.opts.debounce() {
			due = append(due, b)
			delete(w.pending, root)
		}
	}
	w.mu.Unlock()

	for _, b := range due {
		w.processBatch(b)
	}
}

func (w *Worker) backoffFor(repoRoot string) *pushBackoff {
	w.mu.Lock()
	defer w.mu.Unlock()
	pb, ok := w.backoff[repoRoot]
	if !ok {
		pb = &pushBackoff{}
		w.backoff[repoRoot] = pb
	}
	return pb
}

func (w *Worker) processBatch(b *repoBatch) {
	ctx := context.Background()
	env := defaultEnv()
	if b.opts.SSHKeyPath != "" {
		if e := sshEnv(b.opts.SSHKeyPath); e != nil {
			env = e
		} else {
			w.notifier.Throttled("gkey-missing:"+b.repoRoot, "SSH key not found:\n"+b.opts.SSHKeyPath)
		}
	}

	if w.mergeInProgress(b.repoRoot) {
		if !w.resolveInProgressMerge(ctx, b, env) {
			return
		}
	}

	if b.onlyOpened() {
		if b.opts.AutoPull {
			w.safePullMerge(ctx, b, env)
		}
		return
	}

	w.stageAndCommit(ctx, b, env)

	if b.wantsPull {
		w.safePullMerge(ctx, b, env)
	}

	w.attemptPush(ctx, b, env, true)
}

func (w *Worker) mergeInProgress(repoRoot string) bool {
	_, err := os.Stat(filepath.Join(repoRoot, ".git", "MERGE_HEAD"))
	return err == nil
}

// resolveInProgressMerge handles a merge left in a conflicted state by
// a prior pull. Returns false if the batch should stop processing.
func (w *Worker) resolveInProgressMerge(ctx context.Context, b *repoBatch, env []string) bool {
	cctx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	defer cancel()
	conflicted, err := listConflictedPaths(cctx, w.runner, b.repoRoot, env)
	if err != nil {
		w.notifier.Throttled("git-merge-status:"+b.repoRoot, "Failed to inspect merge conflicts:\n"+b.repoRoot)
		return false
	}
	if len(conflicted) > 0 {
		if err := resolveConflicts(cctx, w.runner, b.repoRoot, env, b.opts.MergeMode, conflicted); err != nil {
			w.abortMerge(cctx, b.repoRoot, env)
			w.notifier.Throttled("git-conflict:"+b.repoRoot, "Could not auto-resolve merge conflicts in:\n"+b.repoRoot)
			return false
		}
	}
	if _, _, err := w.runner.Run(cctx, b.repoRoot, env, "commit", "--no-edit"); err != nil {
		w.log.Debugf("git commit (merge completion) in %s: %v", b.repoRoot, err)
	}
	return true
}

func (w *Worker) abortMerge(ctx context.Context, repoRoot string, env []string) {
	_, _, _ = w.runner.Run(ctx, repoRoot, env, "merge", "--abort")
}

func (w *Worker) stageAndCommit(ctx context.Context, b *repoBatch, env []string) {
	addCtx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	_, _, err := w.runner.Run(addCtx, b.repoRoot, env, "add", "-A")
	cancel()
	if err != nil {
		w.notifier.Throttled("git-add:"+b.repoRoot, "git add failed in:\n"+b.repoRoot)
		return
	}

	statCtx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	status, _, err := w.runner.Run(statCtx, b.repoRoot, env, "status", "--porcelain")
	cancel()
	if err != nil {
		w.notifier.Throttled("git-status:"+b.repoRoot, "git status failed in:\n"+b.repoRoot)
		return
	}
	if strings.TrimSpace(status) == "" {
		return
	}

	msg := b.commitMessage()
	commitCtx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	_, stderr, err := w.runner.Run(commitCtx, b.repoRoot, env, "commit", "-m", msg)
	cancel()
	if err != nil && !strings.Contains(strings.ToLower(stderr), "nothing to commit") {
		w.notifier.Throttled("git-commit:"+b.repoRoot, "git commit failed in:\n"+b.repoRoot)
		return
	}
	if w.metrics != nil {
		w.metrics.GitCommits.Inc()
	}
}

// safePullMerge performs a non-rebase, non-force pull and resolves any
// resulting conflict per the configured merge mode.
func (w *Worker) safePullMerge(ctx context.Context, b *repoBatch, env []string) bool {
	upCtx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	_, _, err := w.runner.Run(upCtx, b.repoRoot, env, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	cancel()
	if err != nil {
		w.notifier.Throttled("git-no-upstream:"+b.repoRoot, "No upstream configured for:\n"+b.repoRoot)
		return false
	}

	pullCtx, cancel := withTimeout(ctx, b.opts.PullTimeout)
	_, stderr, err := w.runner.Run(pullCtx, b.repoRoot, env, "pull", "--no-rebase", "--no-edit")
	cancel()
	if err == nil {
		return true
	}

	conflicted, listErr := listConflictedPaths(ctx, w.runner, b.repoRoot, env)
	if listErr != nil || len(conflicted) == 0 {
		w.notifier.Throttled("git-pull:"+b.repoRoot, "git pull failed in:\n"+b.repoRoot+"\n"+stderr)
		return false
	}

	if err := resolveConflicts(ctx, w.runner, b.repoRoot, env, b.opts.MergeMode, conflicted); err != nil {
		w.abortMerge(ctx, b.repoRoot, env)
		w.notifier.Throttled("git-conflict:"+b.repoRoot, "Could not auto-resolve merge conflicts in:\n"+b.repoRoot)
		return false
	}

	commitCtx, cancel := withTimeout(ctx, b.opts.AddTimeout)
	_, _, _ = w.runner.Run(commitCtx, b.repoRoot, env, "commit", "--no-edit")
	cancel()
	return true
}

func (w *Worker) attemptPush(ctx context.Context, b *repoBatch, env []string, allowMergeRetry bool) {
	pb := w.backoffFor(b.repoRoot)
	now := time.Now()
	if pb.blocked(now) {
		return
	}

	pushCtx, cancel := withTimeout(ctx, b.opts.PushTimeout)
	_, stderr, err := w.runner.Run(pushCtx, b.repoRoot, env, "push")
	cancel()

	if err == nil {
		pb.registerSuccess(b.opts)
		if w.metrics != nil {
			w.metrics.GitPushBackoff.Set(pb.current.Seconds())
		}
		w.recordPush("ok")
		return
	}

	if allowMergeRetry && b.opts.AutoMergeOnPush && containsAny(stderr, pushRejectPhrases) {
		if w.safePullMerge(ctx, b, env) {
			w.attemptPush(ctx, b, env, false)
			return
		}
	}

	pb.registerFailure(now, b.opts)
	if w.metrics != nil {
		w.metrics.GitPushBackoff.Set(pb.current.Seconds())
	}
	w.recordPush("rejected")
	w.notifier.Throttled("git-push:"+b.repoRoot, "git push failed in:\n"+b.repoRoot)
}

func (w *Worker) recordPush(outcome string) {
	if w.metrics != nil {
		w.metrics.GitPushes.WithLabelValues(outcome).Inc()
	}
}

func containsAny(s string, phrases []string) bool {
	lower := strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
