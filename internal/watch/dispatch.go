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

import "github.com/kraklabs/lucynotesd/internal/module"

// Sink accepts translated watch events for dispatch. Every watcher
// backend posts into the same Dispatcher so the Handler only ever runs
// on a single goroutine: the pipeline contract is one callback at a
// time, and the Handler, the Module Manager, and the modules' process-
// wide state all depend on it.
type Sink interface {
	Post(ev module.Event)
}

// Dispatcher is the single serial consumer between the watcher
// goroutines (fsnotify, the Linux open-watcher, rename timers) and the
// Handler.
type Dispatcher struct {
	handler *Handler
	events  chan module.Event
}

// NewDispatcher wraps handler in a buffered mailbox. Callers must run
// exactly one Run goroutine before the watchers start posting.
func NewDispatcher(handler *Handler) *Dispatcher {
	return &Dispatcher{handler: handler, events: make(chan module.Event, 256)}
}

// Post enqueues one event. Blocks only while the mailbox is full, which
// bounds watcher memory instead of dropping events.
func (d *Dispatcher) Post(ev module.Event) {
	d.events <- ev
}

// Run delivers posted events to the Handler one at a time until stop is
// closed, then flushes whatever is already queued before returning.
// Callers must stop every posting watcher before closing stop.
func (d *Dispatcher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			for {
				select {
				case ev := <-d.events:
					d.handler.HandleEvent(ev)
				default:
					return
				}
			}
		case ev := <-d.events:
			d.handler.HandleEvent(ev)
		}
	}
}
