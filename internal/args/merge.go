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

package args

import "strings"

// Merge overlays overrides on top of defaults: an override value wins
// unless it is unset/empty (nil, empty string, or empty variadic slice),
// in which case the default is kept. Variadic values are replaced
// wholesale, never concatenated - concatenation only happens within a
// single parse pass across repeated directive lines (see parser.go).
func Merge(defaults, overrides Parsed) Parsed {
	out := make(Parsed, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		if isEmptyValue(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// StripFlagsFromLine removes every occurrence of any flag named in
// flagNames (with or without "--" prefix) from line, together with its
// value run, and returns the rejoined line. The original line ending
// (\r\n, \n, or none) is preserved.
func StripFlagsFromLine(line string, flagNames []string) string {
	set := make(map[string]bool, len(flagNames))
	for _, n := range flagNames {
		if !strings.HasPrefix(n, "--") {
			n = "--" + n
		}
		set[n] = true
	}

	ending := ""
	body := line
	switch {
	case strings.HasSuffix(body, "\r\n"):
		ending = "\r\n"
		body = body[:len(body)-2]
	case strings.HasSuffix(body, "\n"):
		ending = "\n"
		body = body[:len(body)-1]
	}

	toks := Tokenize(body)
	var kept []string
	i := 0
	for i < len(toks) {
		tok := toks[i]
		if isFlagLikeToken(tok) {
			name, _, _ := splitFlagToken(tok)
			if set[name] {
				i++
				for i < len(toks) && !isFlagLikeToken(toks[i]) {
					i++
				}
				continue
			}
		}
		kept = append(kept, tok)
		i++
	}

	return strings.Join(kept, " ") + ending
}
