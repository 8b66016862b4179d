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

// Package module defines the contract every pipeline module implements,
// and the read-only views (Context, System) the Module Manager hands to
// them on every event.
package module

import "github.com/kraklabs/lucynotesd/internal/args"

// EventKind is the tagged-variant discriminator for a filesystem event.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventMoved    EventKind = "moved"
	EventDeleted  EventKind = "deleted"
	EventOpened   EventKind = "opened"
)

// Event describes a single filesystem event as delivered to the pipeline.
// SrcPath and DestPath are absolute and symlink-resolved; DestPath is only
// meaningful for Moved events.
type Event struct {
	Kind        EventKind
	SrcPath     string
	DestPath    string
	IsDirectory bool
}

// Path returns the effective path for the event: DestPath for a move,
// SrcPath otherwise.
func (e Event) Path() string {
	if e.Kind == EventMoved && e.DestPath != "" {
		return e.DestPath
	}
	return e.SrcPath
}

// ChangeMap is a module's report of its own imminent self-writes: absolute
// path -> count of watch events the module expects those writes to
// generate. A nil or empty map means "no self-write".
type ChangeMap map[string]int

// Add merges src into dst, summing counters per path, and returns dst
// (creating it if nil).
func (dst ChangeMap) Add(src ChangeMap) ChangeMap {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = ChangeMap{}
	}
	for path, n := range src {
		dst[path] += n
	}
	return dst
}

// Context is the immutable, per-call input every module handler receives.
type Context struct {
	// Path is the absolute triggering path (destination path for moved
	// events).
	Path string
	// Config is the merged configuration for this call: startup config
	// overridden by the file's own directives.
	Config args.Parsed
	// ArgLines is the line-attribution map produced alongside Config by
	// the per-file directive parse.
	ArgLines args.LineMap
}

// System is the read-only, process-wide view a module receives alongside
// Context: the triggering event, the full merged flag template, and the
// ordered module set (for introspection, e.g. the sys-info module).
type System struct {
	Event    Event
	Template args.Template
	Modules  []Module
}

// Module is the interface every pipeline component implements. Priority
// defaults to 15 when a module reports 0; the zero value of Template is a
// module that declares no flags of its own.
type Module interface {
	Name() string
	Priority() int
	Template() args.Template
}

// Handlers is implemented by modules that want a callback for the
// corresponding event kind. A module is free to implement any subset;
// the manager type-asserts for each kind before invoking.
type (
	CreatedHandler  interface{ Created(Context, System) (ChangeMap, error) }
	ModifiedHandler interface{ Modified(Context, System) (ChangeMap, error) }
	MovedHandler    interface{ Moved(Context, System) (ChangeMap, error) }
	DeletedHandler  interface{ Deleted(Context, System) (ChangeMap, error) }
	OpenedHandler   interface{ Opened(Context, System) (ChangeMap, error) }
)

// DefaultPriority is applied to modules whose Priority() returns 0.
const DefaultPriority = 15
