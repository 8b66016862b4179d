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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// watchSkipDirs are never registered for recursive watching.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".cie": true,
}

// renamePairWindow is how long a bare Rename op waits for a matching
// Create on a different path before it is reported as a Delete. fsnotify
// does not correlate rename-away/rename-into pairs the way the OS's raw
// inotify cookie does, so this is an approximation of watchdog's
// on_moved semantics.
const renamePairWindow = 75 * time.Millisecond

// Source is the recursive fsnotify-backed watch subsystem. It discovers
// directories under the configured roots, registers them, and translates
// raw fsnotify events into module.Event values posted to a Sink.
type Source struct {
	roots   []string
	watcher *fsnotify.Watcher
	sink    Sink
	log     ui.Logger

	mu           sync.Mutex
	pendingFrom  string
	pendingTimer *time.Timer
}

// NewSource creates a watcher rooted at each of roots (recursively
// registering every non-skipped subdirectory).
func NewSource(roots []string, sink Sink, log ui.Logger) (*Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	s := &Source{roots: roots, watcher: w, sink: sink, log: log}
	for _, root := range roots {
		s.addTree(root)
	}
	return s, nil
}

func (s *Source) addTree(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && path != root) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			s.log.Warn("watch add %s: %v", path, err)
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

// Run blocks, translating fsnotify events onto the Sink until stop is
// closed or the watcher errors out irrecoverably.
func (s *Source) Run(stop <-chan struct{}) {
	defer s.watcher.Close()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.onFsEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("fsnotify error: %v", err)
		}
	}
}

func (s *Source) onFsEvent(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") && !watchSkipDirs[filepath.Base(ev.Name)] {
				s.addTree(ev.Name)
			}
			return
		}
		s.resolvePendingRenameOrEmit(ev.Name, func() {
			s.sink.Post(module.Event{Kind: module.EventCreated, SrcPath: ev.Name})
		})
	case ev.Op&fsnotify.Write != 0:
		s.sink.Post(module.Event{Kind: module.EventModified, SrcPath: ev.Name})
	case ev.Op&fsnotify.Remove != 0:
		s.sink.Post(module.Event{Kind: module.EventDeleted, SrcPath: ev.Name})
	case ev.Op&fsnotify.Rename != 0:
		s.startPendingRename(ev.Name)
	}
}

// startPendingRename arms the short correlation window for a Rename op
// observed on name: if a Create fires on a different path before the
// window lapses, the pair is reported as Moved; otherwise name is
// reported as Deleted.
func (s *Source) startPendingRename(name string) {
	s.mu.Lock()
	var stale string
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		stale = s.takePendingLocked()
	}
	s.pendingFrom = name
	s.pendingTimer = time.AfterFunc(renamePairWindow, func() {
		s.mu.Lock()
		from := s.takePendingLocked()
		s.mu.Unlock()
		if from != "" {
			s.sink.Post(module.Event{Kind: module.EventDeleted, SrcPath: from})
		}
	})
	s.mu.Unlock()

	if stale != "" {
		s.sink.Post(module.Event{Kind: module.EventDeleted, SrcPath: stale})
	}
}

// takePendingLocked clears the armed rename state and returns the path
// it held, if any. Callers post the resulting event after releasing the
// mutex so a full sink never blocks the timer while the lock is held.
func (s *Source) takePendingLocked() string {
	from := s.pendingFrom
	s.pendingFrom = ""
	s.pendingTimer = nil
	return from
}

func (s *Source) resolvePendingRenameOrEmit(createdName string, emitCreated func()) {
	s.mu.Lock()
	if s.pendingFrom != "" && s.pendingFrom != createdName {
		from := s.pendingFrom
		s.pendingFrom = ""
		if s.pendingTimer != nil {
			s.pendingTimer.Stop()
			s.pendingTimer = nil
		}
		s.mu.Unlock()
		s.sink.Post(module.Event{Kind: module.EventMoved, SrcPath: from, DestPath: createdName})
		return
	}
	s.mu.Unlock()
	emitCreated()
}

// Close releases the underlying fsnotify watcher.
func (s *Source) Close() error { return s.watcher.Close() }
