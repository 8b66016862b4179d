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
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MergeMode is the configured conflict auto-resolution strategy for a
// safe pull-merge.
type MergeMode string

const (
	MergeNone   MergeMode = "none"
	MergeOurs   MergeMode = "ours"
	MergeTheirs MergeMode = "theirs"
	MergeUnion  MergeMode = "union"
)

// Options is the per-event configuration snapshot a batch carries; the
// latest enqueued event's options always win for the next flush.
type Options struct {
	BaseMsg         string
	Timestamp       bool
	TimestampFormat string
	SSHKeyPath      string
	AutoPull        bool
	AutoMergeOnPush bool
	MergeMode       MergeMode

	DebounceSeconds  float64
	AddTimeout       time.Duration
	PushTimeout      time.Duration
	PullTimeout      time.Duration
	PushBackoffStart time.Duration
	PushBackoffMax   time.Duration
}

// DefaultOptions matches spec.md §4.F's stated defaults.
func DefaultOptions() Options {
	return Options{
		BaseMsg:          "auto",
		TimestampFormat:  time.RFC3339,
		MergeMode:        MergeNone,
		DebounceSeconds:  0.8,
		AddTimeout:       8 * time.Second,
		PushTimeout:      20 * time.Second,
		PullTimeout:      30 * time.Second,
		PushBackoffStart: 5 * time.Second,
		PushBackoffMax:   120 * time.Second,
	}
}

func (d Options) debounce() time.Duration {
	return time.Duration(d.DebounceSeconds * float64(time.Second))
}

// repoBatch accumulates events for one repository between flushes.
type repoBatch struct {
	repoRoot     string
	opts         Options
	lastEventAt  time.Time
	eventTypes   map[string]struct{}
	hintedPaths  map[string]struct{}
	wantsPull    bool
}

func newRepoBatch(repoRoot string) *repoBatch {
	return &repoBatch{
		repoRoot:    repoRoot,
		eventTypes:  map[string]struct{}{},
		hintedPaths: map[string]struct{}{},
	}
}

func (b *repoBatch) absorb(ev event) {
	b.opts = ev.opts
	b.lastEventAt = ev.at
	b.eventTypes[ev.kind] = struct{}{}
	if ev.path != "" {
		b.hintedPaths[ev.path] = struct{}{}
	}
	if ev.kind == "opened" {
		b.wantsPull = true
	}
}

// onlyOpened reports whether every event type absorbed so far is
// "opened" - the trigger for the opened-batch's pull-only shortcut.
func (b *repoBatch) onlyOpened() bool {
	if len(b.eventTypes) == 0 {
		return false
	}
	for k := range b.eventTypes {
		if k != "opened" {
			return false
		}
	}
	return true
}

// commitMessage builds "{base}: {types}+{types} {basenames, cap 8} [{ts}]"
// per spec.md §4.F.3.
func (b *repoBatch) commitMessage() string {
	types := make([]string, 0, len(b.eventTypes))
	for k := range b.eventTypes {
		types = append(types, k)
	}
	sort.Strings(types)

	names := make([]string, 0, len(b.hintedPaths))
	for p := range b.hintedPaths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)

	const cap8 = 8
	extra := 0
	if len(names) > cap8 {
		extra = len(names) - cap8
		names = names[:cap8]
	}
	nameList := strings.Join(names, ", ")
	if extra > 0 {
		nameList = fmt.Sprintf("%s, +%d more", nameList, extra)
	}

	msg := fmt.Sprintf("%s: %s %s", b.opts.BaseMsg, strings.Join(types, "+"), nameList)
	if b.opts.Timestamp {
		ts := time.Now()
		format := b.opts.TimestampFormat
		if format == "" {
			format = time.RFC3339
		}
		msg = fmt.Sprintf("%s [%s]", msg, ts.Format(format))
	}
	return msg
}

// pushBackoff tracks the per-repo push retry window.
type pushBackoff struct {
	current     time.Duration
	nextAllowed time.Time
}

func (pb *pushBackoff) registerFailure(now time.Time, opts Options) {
	start := opts.PushBackoffStart
	max := opts.PushBackoffMax
	if pb.current < start {
		pb.current = start
	}
	pb.current *= 2
	if pb.current > max {
		pb.current = max
	}
	pb.nextAllowed = now.Add(pb.current)
}

// registerSuccess resets the window to the configured start value and
// clears the next-allowed gate, so the first failure after a success
// doubles from start rather than continuing where the last streak ended.
func (pb *pushBackoff) registerSuccess(opts Options) {
	pb.current = opts.PushBackoffStart
	pb.nextAllowed = time.Time{}
}

func (pb *pushBackoff) blocked(now time.Time) bool {
	return !pb.nextAllowed.IsZero() && now.Before(pb.nextAllowed)
}

// event is one unit of work enqueued by a module handler.
type event struct {
	repoRoot string
	kind     string
	path     string
	opts     Options
	at       time.Time
}
