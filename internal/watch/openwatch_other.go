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

//go:build !linux

package watch

import "github.com/kraklabs/lucynotesd/internal/ui"

// OpenWatcher is a no-op outside Linux: there is no portable filesystem
// open-event notification, matching watchdog's own platform limitation.
type OpenWatcher struct{}

// NewOpenWatcher returns a no-op watcher; opened events are simply never
// produced on non-Linux platforms.
func NewOpenWatcher(roots []string, sink Sink, log ui.Logger) (*OpenWatcher, error) {
	log.Debugf("opened-event watching is only available on Linux; skipping")
	return &OpenWatcher{}, nil
}

// Run is a no-op.
func (ow *OpenWatcher) Run(stop <-chan struct{}) { <-stop }
