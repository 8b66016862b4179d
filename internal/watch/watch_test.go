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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

func TestIgnoreLedgerDecrementToZeroRemovesKey(t *testing.T) {
	l := NewIgnoreLedger()
	l.Mark("/a", 2)
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.CheckAndDecrement("/a"))
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.CheckAndDecrement("/a"))
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.CheckAndDecrement("/a"))
}

func TestOpenThrottleCooldown(t *testing.T) {
	th := NewOpenThrottle(5 * time.Second)
	base := time.Unix(1000, 0)

	assert.True(t, th.Allow("/a", base))
	assert.False(t, th.Allow("/a", base.Add(1*time.Second)))
	assert.True(t, th.Allow("/a", base.Add(6*time.Second)))
}

func TestOpenThrottleEvictsOldestEveryW(t *testing.T) {
	th := NewOpenThrottle(0)
	th.everyN = 4
	th.removeN = 2
	base := time.Unix(0, 0)

	th.Allow("/a", base)
	th.Allow("/b", base.Add(time.Second))
	th.Allow("/c", base.Add(2*time.Second))
	th.Allow("/d", base.Add(3*time.Second)) // 4th accepted -> evict 2 oldest (/a, /b)

	assert.Equal(t, 2, th.Len())
	th.mu.Lock()
	_, aStillThere := th.lastOpen["/a"]
	_, dStillThere := th.lastOpen["/d"]
	th.mu.Unlock()
	assert.False(t, aStillThere)
	assert.True(t, dStillThere)
}

type fakeRunner struct {
	calls []string
	cm    module.ChangeMap
}

func (f *fakeRunner) Run(path string, ev module.Event) (module.ChangeMap, error) {
	f.calls = append(f.calls, path)
	return f.cm, nil
}

func TestHandlerIgnoresDotfilesAndGitPaths(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, 0, ui.Logger{})

	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: "/notes/.hidden"})
	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: "/notes/.git/HEAD"})
	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: "/notes/sub", IsDirectory: true})

	assert.Empty(t, runner.calls)
}

func TestHandlerDropsSelfWriteEcho(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	runner := &fakeRunner{}
	h := NewHandler(runner, 0, ui.Logger{})
	h.Ledger.Mark(path, 1)

	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: path})
	assert.Empty(t, runner.calls)

	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: path})
	assert.Len(t, runner.calls, 1)
}

func TestDispatcherDeliversSeriallyAndDrainsOnStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	runner := &fakeRunner{}
	h := NewHandler(runner, 0, ui.Logger{})
	d := NewDispatcher(h)

	for i := 0; i < 5; i++ {
		d.Post(module.Event{Kind: module.EventModified, SrcPath: path})
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		d.Run(stop)
		close(done)
	}()
	close(stop)
	<-done

	// fakeRunner.calls is appended without locking: five posts surviving
	// as five ordered entries is only possible if Run delivered them from
	// one goroutine.
	assert.Len(t, runner.calls, 5)
}

func TestHandlerMarksLedgerFromChangeMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	runner := &fakeRunner{cm: module.ChangeMap{path: 2}}
	h := NewHandler(runner, 0, ui.Logger{})

	h.HandleEvent(module.Event{Kind: module.EventModified, SrcPath: path})
	assert.Equal(t, 1, h.Ledger.Len())
	assert.True(t, h.Ledger.CheckAndDecrement(path))
	assert.True(t, h.Ledger.CheckAndDecrement(path))
	assert.False(t, h.Ledger.CheckAndDecrement(path))
}
