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

package syncer

import "strings"

// ReplaceBoldItemsInLines walks main's lines in order together with items
// (as produced by a mirror edit). Each line carrying a bold segment
// consumes the next unconsumed item, replacing its segments with a
// single bold segment holding that item's text while preserving the
// line's Kind/State. Lines without a bold segment are left untouched.
// Items left over once every line has been visited become new,
// trailing all-bold paragraphs; bold lines left over once items run out
// are left untouched rather than dropped, so no existing content is
// ever lost to a short mirror edit.
func ReplaceBoldItemsInLines(main Doc, items []string) Doc {
	out := make([]Line, len(main.Lines))
	copy(out, main.Lines)

	idx := 0
	for i, l := range out {
		if !l.HasBold() {
			continue
		}
		if idx >= len(items) {
			continue
		}
		out[i] = Line{
			Kind:     l.Kind,
			State:    l.State,
			Segments: []Segment{{Text: strings.TrimSpace(items[idx]), Bold: true}},
		}
		idx++
	}

	for ; idx < len(items); idx++ {
		t := strings.TrimSpace(items[idx])
		if t == "" {
			continue
		}
		out = append(out, Line{
			Kind:     Paragraph,
			Segments: []Segment{{Text: t, Bold: true}},
		})
	}

	return Doc{Lines: out}
}
