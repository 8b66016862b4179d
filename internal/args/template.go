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

// Package args implements the flag template and three-source directive
// parser shared by every module: CLI tokens at startup, config-file lines,
// and per-file directive lines embedded in watched notes.
package args

import (
	"strings"
)

// Kind is the value type a flag's variadic values are coerced to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// FlagDef is one flag template entry: a name (with the "--" prefix), its
// value kind, a default, and a human-readable description. Boolean flags
// are switches - presence means true, they take no values. All other
// kinds are variadic: one or more whitespace-separated values.
type FlagDef struct {
	Name    string
	Kind    Kind
	Default interface{}
	Doc     string
}

// Template is an ordered sequence of flag definitions. Flag names must be
// unique; Manager construction enforces this across the merged system and
// module templates.
type Template []FlagDef

// Key derives the destination key for a flag name by stripping the leading
// dashes and replacing remaining dashes with underscores, e.g.
// "--sys-notes-dirs" -> "sys_notes_dirs".
func Key(flagName string) string {
	trimmed := strings.TrimLeft(flagName, "-")
	return strings.ReplaceAll(trimmed, "-", "_")
}

// Lookup returns the FlagDef matching flagName (with or without the "--"
// prefix) and whether it was found.
func (t Template) Lookup(flagName string) (FlagDef, bool) {
	name := flagName
	if !strings.HasPrefix(name, "--") {
		name = "--" + name
	}
	for _, d := range t {
		if d.Name == name {
			return d, true
		}
	}
	return FlagDef{}, false
}

// MergeTemplates concatenates templates. Callers (the Module Manager) are
// responsible for rejecting duplicate names across the result.
func MergeTemplates(templates ...Template) Template {
	var out Template
	for _, t := range templates {
		out = append(out, t...)
	}
	return out
}

// Names returns the flag set as a lookup-by-name set, keyed by the full
// flag name with its leading dashes (Key's destination-key convention is
// not used here - this is purely presence checking by full flag name).
func (t Template) Names() map[string]bool {
	out := make(map[string]bool, len(t))
	for _, d := range t {
		out[d.Name] = true
	}
	return out
}

// isValidFlagToken reports whether tok looks like "--name" or
// "--name=value", where name matches a letter followed by zero or more of
// {letters, digits, '_', '-'}.
func isValidFlagToken(tok string) bool {
	if !strings.HasPrefix(tok, "--") {
		return false
	}
	body := tok[2:]
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		body = body[:eq]
	}
	if body == "" {
		return false
	}
	first := body[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}
	for i := 1; i < len(body); i++ {
		c := body[i]
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '_' || c == '-'
		if !ok {
			return false
		}
	}
	return true
}

// isFlagLikeToken is the broader class used by strip-flags-from-line: any
// token beginning with "--"+letter, or "-"+non-digit-non-dot, so that
// negative numeric values like "-1.5" are preserved as values rather than
// mistaken for flags.
func isFlagLikeToken(tok string) bool {
	if isValidFlagToken(tok) {
		return true
	}
	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		c := tok[1]
		if c == '-' {
			return false
		}
		if (c >= '0' && c <= '9') || c == '.' {
			return false
		}
		return true
	}
	return false
}
