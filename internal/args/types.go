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

import "strconv"

// Parsed is a destination-key -> value mapping. Variadic (string/int/float)
// flags carry an ordered []interface{}; switches carry a plain bool.
type Parsed map[string]interface{}

// LineMap is the line-attribution side mapping produced alongside a
// Parsed map when parsing per-file directives: destination key -> ordered
// 1-based line numbers, one per contributed value (or one per occurrence
// for switches). UnknownKey collects the count of values that failed to
// bind to any known flag.
type LineMap map[string][]int

// UnknownKey is the reserved LineMap/Parsed key for directive values that
// did not match any template flag.
const UnknownKey = "__unknown__"

// Strings returns the variadic string values for key, converting any
// stored ints/floats to their string form. Missing or non-variadic keys
// yield nil.
func (p Parsed) Strings(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, toStr(it))
	}
	return out
}

// First returns the first variadic value for key as a string, or "".
func (p Parsed) First(key string) string {
	ss := p.Strings(key)
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// Int returns the first variadic value for key parsed as an int, or def.
func (p Parsed) Int(key string, def int) int {
	s := p.First(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the switch value for key, or false if absent/not a bool.
func (p Parsed) Bool(key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Has reports whether key has any value at all (non-empty).
func (p Parsed) Has(key string) bool {
	return !isEmptyValue(p[key])
}

func toStr(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case bool:
		return false
	default:
		return false
	}
}

func convertValues(kind Kind, raw []string) []interface{} {
	out := make([]interface{}, 0, len(raw))
	for _, s := range raw {
		switch kind {
		case KindInt:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				out = append(out, s)
				continue
			}
			out = append(out, n)
		case KindFloat:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				out = append(out, s)
				continue
			}
			out = append(out, f)
		default:
			out = append(out, s)
		}
	}
	return out
}
