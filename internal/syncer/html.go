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

import (
	"fmt"
	"strconv"
	"strings"
)

const baseParagraphStyle = " margin-top:0px; margin-bottom:0px; margin-left:0px; margin-right:0px; -qt-block-indent:0; text-indent:0px;"

const checkboxMarkerCSS = `
li.unchecked::marker { content: "\2610"; }
li.checked::marker { content: "\2612"; }`

const docType = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.0//EN" "http://www.w3.org/TR/REC-html40/strict.dtd">`

func htmlSkeletonHead(checkboxMarkers bool) string {
	markers := ""
	if checkboxMarkers {
		markers = checkboxMarkerCSS
	}
	return fmt.Sprintf(`%s
<html><head><meta name="qrichtext" content="1" />
<style type="text/css">
p, li { white-space: pre-wrap; }
hr { height: 1px; border-width: 0; }%s
</style></head>
<body style=" font-family:'Noto Sans'; font-size:10pt; font-weight:400; font-style:normal;">`, docType, markers)
}

const htmlSkeletonFoot = `</body></html>`

// DocToMainHTML serializes d into the main widget's fixed HTML dialect,
// with the checkbox-marker CSS rules included iff checkboxMarkers is set.
func DocToMainHTML(d Doc, checkboxMarkers bool) string {
	var body strings.Builder
	openList := false
	for _, l := range d.Lines {
		if l.Kind == ListItem {
			if !openList {
				body.WriteString("<ul>\n")
				openList = true
			}
			class := ""
			switch l.State {
			case Unchecked:
				class = ` class="unchecked"`
			case Checked:
				class = ` class="checked"`
			}
			body.WriteString(fmt.Sprintf("<li%s><p style=\"%s\">%s</p></li>\n", class, baseParagraphStyle, inlineToHTML(l.Segments)))
			continue
		}
		if openList {
			body.WriteString("</ul>\n")
			openList = false
		}
		if strings.TrimSpace(l.PlainText()) == "" {
			body.WriteString(fmt.Sprintf("<p style=\"-qt-paragraph-type:empty;%s\"><br /></p>\n", baseParagraphStyle))
			continue
		}
		body.WriteString(fmt.Sprintf("<p style=\"%s\">%s</p>\n", baseParagraphStyle, inlineToHTML(l.Segments)))
	}
	if openList {
		body.WriteString("</ul>\n")
	}

	return htmlSkeletonHead(checkboxMarkers) + "\n" + body.String() + htmlSkeletonFoot
}

// DocToMirrorHTML renders one all-bold paragraph per non-empty item.
func DocToMirrorHTML(items []string) string {
	var body strings.Builder
	for _, it := range items {
		t := strings.TrimSpace(it)
		if t == "" {
			continue
		}
		body.WriteString(fmt.Sprintf("<p style=\"%s\"><span style=\" font-weight:600;\">%s</span></p>\n", baseParagraphStyle, escapeHTML(t)))
	}
	return htmlSkeletonHead(false) + "\n" + body.String() + htmlSkeletonFoot
}

func inlineToHTML(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		if s.Text == "" {
			continue
		}
		escaped := escapeHTML(s.Text)
		if s.Bold {
			sb.WriteString(`<span style=" font-weight:600;">`)
			sb.WriteString(escaped)
			sb.WriteString(`</span>`)
		} else {
			sb.WriteString(escaped)
		}
	}
	return sb.String()
}

// StyleIsBold reports whether a CSS style attribute value marks its
// element bold: either the literal substring "font-weight:bold" or a
// numeric "font-weight:N" with N >= 600, matching case/space
// insensitively.
func StyleIsBold(style string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(normalized, "font-weight:bold") {
		return true
	}
	idx := strings.Index(normalized, "font-weight:")
	if idx < 0 {
		return false
	}
	rest := normalized[idx+len("font-weight:"):]
	end := 0
	for end < len(rest) && (rest[end] >= '0' && rest[end] <= '9') {
		end++
	}
	if end == 0 {
		return false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return false
	}
	return n >= 600
}

var boldAwareTags = map[string]bool{"b": true, "strong": true, "span": true, "font": true, "p": true, "li": true}

// ErrPartialHTML is returned by ParseMainHTML/ParseMirrorItems when the
// document lacks both <body> and </body>, indicating a file captured
// mid-write by the rich-text editor; callers should skip the event.
var ErrPartialHTML = fmt.Errorf("partial HTML document: missing <body>/</body>")

// ParseMainHTML parses the main widget's HTML dialect into a Doc.
func ParseMainHTML(htmlText string) (Doc, error) {
	lower := strings.ToLower(htmlText)
	if !strings.Contains(lower, "<body") || !strings.Contains(lower, "</body>") {
		return Doc{}, ErrPartialHTML
	}

	toks := tokenizeHTML(htmlText)

	var lines []Line
	var boldStack []bool // true = this stack frame's tag contributed bold

	curBold := func() bool {
		for _, b := range boldStack {
			if b {
				return true
			}
		}
		return false
	}

	var cur *Line
	startLine := func(kind LineKind, state CheckState) {
		lines = append(lines, Line{Kind: kind, State: state})
		cur = &lines[len(lines)-1]
	}
	appendText := func(text string) {
		if cur == nil {
			startLine(Paragraph, NoState)
		}
		if text == "" {
			return
		}
		cur.Segments = append(cur.Segments, Segment{Text: text, Bold: curBold()})
	}

	inBody := false
	liDepth := 0

	for _, t := range toks {
		switch t.kind {
		case tokStart:
			switch t.name {
			case "body":
				inBody = true
			case "li":
				liDepth++
				state := NoState
				switch strings.ToLower(t.attrs["class"]) {
				case "checked":
					state = Checked
				case "unchecked":
					state = Unchecked
				}
				startLine(ListItem, state)
				boldStack = append(boldStack, StyleIsBold(t.attrs["style"]))
			case "p":
				if liDepth == 0 {
					startLine(Paragraph, NoState)
				}
				boldStack = append(boldStack, StyleIsBold(t.attrs["style"]))
			case "ul":
				// structural only
			case "span", "font":
				boldStack = append(boldStack, StyleIsBold(t.attrs["style"]))
			case "b", "strong":
				boldStack = append(boldStack, true)
			}
		case tokEnd:
			if boldAwareTags[t.name] && len(boldStack) > 0 {
				boldStack = boldStack[:len(boldStack)-1]
			}
			if t.name == "p" && liDepth == 0 {
				cur = nil
			}
			if t.name == "li" {
				liDepth--
				cur = nil
			}
			if t.name == "body" {
				inBody = false
			}
		case tokSelfClose:
			if t.name == "br" {
				if cur != nil && len(cur.Segments) > 0 {
					startLine(Paragraph, NoState)
				}
			}
		case tokText:
			if !inBody {
				continue
			}
			if strings.TrimSpace(t.text) == "" && (cur == nil || len(cur.Segments) == 0) {
				continue
			}
			appendText(t.text)
		}
	}

	for i := range lines {
		lines[i].Segments = mergeAdjacentSameBold(lines[i].Segments)
	}
	return Doc{Lines: lines}, nil
}

// ParseMirrorItems reads the bold-mirror widget file's HTML and returns
// one item per non-empty line's plain text (ignoring formatting, per
// spec.md's "read the mirror plain text" direction handler).
func ParseMirrorItems(htmlText string) ([]string, error) {
	doc, err := ParseMainHTML(htmlText)
	if err != nil {
		return nil, err
	}
	var items []string
	for _, l := range doc.Lines {
		t := strings.TrimSpace(l.PlainText())
		if t != "" {
			items = append(items, t)
		}
	}
	return items, nil
}

// HasCheckboxMarkerCSS reports whether html's style block already
// contains the checkbox marker rules.
func HasCheckboxMarkerCSS(html string) bool {
	return strings.Contains(html, "li.unchecked::marker") && strings.Contains(html, "li.checked::marker")
}

// SetCheckboxMarkerCSS rewrites only the <style>...</style> block of html
// to include or exclude the checkbox marker rules, leaving the body
// untouched. If html has no recognizable style block, it is returned
// unchanged.
func SetCheckboxMarkerCSS(html string, enabled bool) string {
	start := strings.Index(html, "<style")
	if start < 0 {
		return html
	}
	openEnd := strings.IndexByte(html[start:], '>')
	if openEnd < 0 {
		return html
	}
	openEnd += start + 1
	closeStart := strings.Index(html[openEnd:], "</style>")
	if closeStart < 0 {
		return html
	}
	closeStart += openEnd

	body := "\np, li { white-space: pre-wrap; }\nhr { height: 1px; border-width: 0; }"
	if enabled {
		body += checkboxMarkerCSS
	}
	body += "\n"

	return html[:openEnd] + body + html[closeStart:]
}
