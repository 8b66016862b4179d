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

// Package notify sends rate-limited desktop notifications via notify-send.
package notify

import (
	"os/exec"
	"sync"
	"time"
)

const minInterval = 10 * time.Second

const defaultTitle = "Lucy Notes Manager"

// maxBodyBytes bounds the notification body; subprocess error output can
// run to many kilobytes and desktop notifiers truncate badly on their own.
const maxBodyBytes = 1200

// Notifier throttles notify-send calls by a dedup key.
type Notifier struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// New returns a Notifier ready to use.
func New() *Notifier {
	return &Notifier{last: make(map[string]time.Time), now: time.Now}
}

// Throttled sends message under the default title, keyed by key, unless a call with the
// same key fired within the last 10 seconds.
func (n *Notifier) Throttled(key, message string) {
	n.mu.Lock()
	now := n.now()
	last, ok := n.last[key]
	if ok && now.Sub(last) < minInterval {
		n.mu.Unlock()
		return
	}
	n.last[key] = now
	n.mu.Unlock()

	if len(message) > maxBodyBytes {
		message = message[:maxBodyBytes] + "…"
	}
	n.send(defaultTitle, message)
}

func (n *Notifier) send(title, message string) {
	cmd := exec.Command("notify-send", title, message)
	_ = cmd.Run() // fire-and-forget: notification failures must never affect the pipeline
}
