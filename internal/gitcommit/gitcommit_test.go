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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// fakeRunner records every invocation and serves canned responses keyed
// by the joined subcommand ("add", "status", "push", ...).
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	stub  map[string]fakeResult
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{stub: map[string]fakeResult{}}
}

func (f *fakeRunner) on(subcommand string, r fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stub[subcommand] = r
}

func (f *fakeRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(args, " "))
	if r, ok := f.stub[args[0]]; ok {
		return r.stdout, r.stderr, r.err
	}
	return "", "", nil
}

func (f *fakeRunner) called(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func newTestWorker(runner GitRunner) *Worker {
	return NewWorker(runner, notify.New(), ui.Logger{}, nil)
}

func TestFindRepoRootWalksUpward(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, ok := findRepoRoot(filepath.Join(nested, "note.md"))
	require.True(t, ok)
	assert.Equal(t, dir, root)
}

func TestFindRepoRootNotFound(t *testing.T) {
	dir := t.TempDir()
	_, ok := findRepoRoot(filepath.Join(dir, "note.md"))
	assert.False(t, ok)
}

func TestPathIsInsideGitDir(t *testing.T) {
	assert.True(t, pathIsInsideGitDir("/repo/.git/index"))
	assert.False(t, pathIsInsideGitDir("/repo/notes/.gitignore"))
}

func TestCommitMessageFormat(t *testing.T) {
	b := newRepoBatch("/repo")
	b.opts = Options{BaseMsg: "auto"}
	b.eventTypes["modified"] = struct{}{}
	b.eventTypes["created"] = struct{}{}
	b.hintedPaths["/repo/a.md"] = struct{}{}
	b.hintedPaths["/repo/b.md"] = struct{}{}

	msg := b.commitMessage()
	assert.Equal(t, "auto: created+modified a.md, b.md", msg)
}

func TestCommitMessageCapsBasenamesAt8(t *testing.T) {
	b := newRepoBatch("/repo")
	b.opts = Options{BaseMsg: "auto"}
	b.eventTypes["modified"] = struct{}{}
	for i := 0; i < 10; i++ {
		b.hintedPaths[filepath.Join("/repo", string(rune('a'+i))+".md")] = struct{}{}
	}
	msg := b.commitMessage()
	assert.Contains(t, msg, "+2 more")
}

func TestPushBackoffDoublesAndCaps(t *testing.T) {
	pb := &pushBackoff{}
	opts := Options{PushBackoffStart: 5 * time.Second, PushBackoffMax: 20 * time.Second}
	now := time.Now()

	pb.registerFailure(now, opts)
	assert.Equal(t, 10*time.Second, pb.current)

	pb.registerFailure(now, opts)
	assert.Equal(t, 20*time.Second, pb.current)

	pb.registerFailure(now, opts)
	assert.Equal(t, 20*time.Second, pb.current, "must cap at max")

	pb.registerSuccess(opts)
	assert.Equal(t, opts.PushBackoffStart, pb.current, "success resets to the start value")
	assert.True(t, pb.nextAllowed.IsZero())

	pb.registerFailure(now, opts)
	assert.Equal(t, 10*time.Second, pb.current, "first failure after a success doubles from start")
}

func TestUnionMergeText(t *testing.T) {
	text := "before\n<<<<<<< HEAD\nmine\n=======\ntheirs\n>>>>>>> branch\nafter\n"
	merged, ok := unionMergeText(text)
	require.True(t, ok)
	assert.Equal(t, "before\nmine\ntheirs\nafter\n", merged)
}

func TestUnionMergeTextUnparseable(t *testing.T) {
	_, ok := unionMergeText("<<<<<<< HEAD\nmine\n<<<<<<< nested\n")
	assert.False(t, ok)
}

func TestProcessBatchCommitsWhenDirty(t *testing.T) {
	runner := newFakeRunner()
	runner.on("status", fakeResult{stdout: " M a.md\n"})
	w := newTestWorker(runner)

	b := newRepoBatch("/repo")
	b.opts = DefaultOptions()
	b.eventTypes["modified"] = struct{}{}
	b.hintedPaths["/repo/a.md"] = struct{}{}

	w.processBatch(b)

	assert.True(t, runner.called("add -A"))
	assert.True(t, runner.called("commit -m"))
	assert.True(t, runner.called("push"))
}

func TestProcessBatchSkipsCommitWhenClean(t *testing.T) {
	runner := newFakeRunner()
	runner.on("status", fakeResult{stdout: ""})
	w := newTestWorker(runner)

	b := newRepoBatch("/repo")
	b.opts = DefaultOptions()
	b.eventTypes["modified"] = struct{}{}

	w.processBatch(b)

	assert.False(t, runner.called("commit -m"))
	assert.True(t, runner.called("push"), "still attempts a push even with nothing new to commit")
}

func TestProcessBatchRegistersPushFailureBackoff(t *testing.T) {
	runner := newFakeRunner()
	runner.on("status", fakeResult{stdout: " M a.md\n"})
	runner.on("push", fakeResult{err: assertErr{}, stderr: "! [rejected] updates were rejected"})
	w := newTestWorker(runner)

	b := newRepoBatch("/repo")
	b.opts = DefaultOptions()
	b.opts.AutoMergeOnPush = false
	b.eventTypes["modified"] = struct{}{}

	w.processBatch(b)

	pb := w.backoffFor("/repo")
	assert.True(t, pb.current > 0)
	assert.False(t, pb.nextAllowed.IsZero())
}

func TestOnlyOpenedTriggersAutoPullNotCommit(t *testing.T) {
	runner := newFakeRunner()
	runner.on("rev-parse", fakeResult{err: assertErr{}}) // no upstream -> safePullMerge bails
	w := newTestWorker(runner)

	b := newRepoBatch("/repo")
	b.opts = DefaultOptions()
	b.opts.AutoPull = true
	b.eventTypes["opened"] = struct{}{}
	b.wantsPull = true

	w.processBatch(b)

	assert.True(t, runner.called("rev-parse"))
	assert.False(t, runner.called("commit"))
	assert.False(t, runner.called("add -A"))
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated git failure" }
