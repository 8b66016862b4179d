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

// Package watch implements the File Event Handler: the fsnotify-backed
// event source, the self-write ignore ledger, and the open-event throttle
// cache, all feeding the Module Manager.
package watch

import "sync"

// IgnoreLedger is the per-path counter of expected self-writes. It is
// single-threaded by contract (spec.md §5): only the dispatch goroutine
// touches it. The mutex exists purely so tests and the metrics gauge can
// read its size concurrently without racing the detector.
type IgnoreLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewIgnoreLedger returns an empty ledger.
func NewIgnoreLedger() *IgnoreLedger {
	return &IgnoreLedger{counts: map[string]int{}}
}

// Mark increments the counter for path by n (n <= 0 is a no-op).
func (l *IgnoreLedger) Mark(path string, n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[path] += n
}

// CheckAndDecrement reports whether path currently has a positive
// counter; if so it decrements by one, deleting the entry if that
// reaches zero, and returns true (meaning: this event is a self-write
// echo and should be dropped).
func (l *IgnoreLedger) CheckAndDecrement(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.counts[path]
	if !ok || n <= 0 {
		return false
	}
	if n <= 1 {
		delete(l.counts, path)
	} else {
		l.counts[path] = n - 1
	}
	return true
}

// Len reports the number of paths currently tracked (for metrics).
func (l *IgnoreLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}
