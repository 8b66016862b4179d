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

// DocToMarkdown serializes d to its canonical Markdown form: bold
// segments wrapped in "**...**" with asterisks and backslashes escaped,
// list items prefixed with "- ", "- [ ] ", or "- [x] ". Lines are joined
// with "\n" with no trailing newline.
func DocToMarkdown(d Doc) string {
	lines := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, lineToMarkdown(l))
	}
	return strings.Join(lines, "\n")
}

func lineToMarkdown(l Line) string {
	var sb strings.Builder
	switch l.Kind {
	case ListItem:
		switch l.State {
		case Unchecked:
			sb.WriteString("- [ ] ")
		case Checked:
			sb.WriteString("- [x] ")
		default:
			sb.WriteString("- ")
		}
	}
	for _, s := range l.Segments {
		text := escapeMarkdown(s.Text)
		if s.Bold && text != "" {
			sb.WriteString("**")
			sb.WriteString(text)
			sb.WriteString("**")
		} else {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

func escapeMarkdown(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '*' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// MarkdownToDoc parses canonical Markdown text (as produced by
// DocToMarkdown, or hand-authored in the same dialect) into a Doc.
func MarkdownToDoc(text string) Doc {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		lines = append(lines, parseMarkdownLine(raw))
	}
	return Doc{Lines: lines}
}

func parseMarkdownLine(raw string) Line {
	line := Line{Kind: Paragraph, State: NoState}
	body := raw

	if rest, ok := stripPrefix(body, "- [ ] "); ok {
		line.Kind = ListItem
		line.State = Unchecked
		body = rest
	} else if rest, ok := stripPrefix(body, "- [x] "); ok {
		line.Kind = ListItem
		line.State = Checked
		body = rest
	} else if rest, ok := stripPrefix(body, "- [X] "); ok {
		line.Kind = ListItem
		line.State = Checked
		body = rest
	} else if rest, ok := stripPrefix(body, "- "); ok {
		line.Kind = ListItem
		line.State = NoState
		body = rest
	}

	line.Segments = mergeAdjacentSameBold(parseInlineBold(body))
	return line
}

func stripPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

// parseInlineBold splits body into segments at unescaped "**" markers.
func parseInlineBold(body string) []Segment {
	var segs []Segment
	var cur strings.Builder
	bold := false
	runes := []rune(body)

	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, Segment{Text: cur.String(), Bold: bold})
			cur.Reset()
		}
	}

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			cur.WriteRune(runes[i+1])
			i += 2
		case r == '*' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			bold = !bold
			i += 2
		default:
			cur.WriteRune(r)
			i++
		}
	}
	flush()
	return segs
}
