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

// htmlToken is one SAX-style event from the narrow widget-dialect tokenizer
// below. The dialect is fixed (see html.go skeleton writers), so this is a
// small hand-rolled scanner rather than a general HTML5 parser - there is
// no general-purpose HTML parser in the retrieved example pack to ground
// a heavier dependency on; see DESIGN.md.
type htmlToken struct {
	kind  tokenKind
	name  string
	attrs map[string]string
	text  string
}

type tokenKind int

const (
	tokStart tokenKind = iota
	tokEnd
	tokSelfClose
	tokText
)

func tokenizeHTML(s string) []htmlToken {
	var toks []htmlToken
	i := 0
	n := len(s)
	for i < n {
		lt := strings.IndexByte(s[i:], '<')
		if lt < 0 {
			if txt := unescapeHTML(s[i:]); txt != "" {
				toks = append(toks, htmlToken{kind: tokText, text: txt})
			}
			break
		}
		if lt > 0 {
			if txt := unescapeHTML(s[i : i+lt]); txt != "" {
				toks = append(toks, htmlToken{kind: tokText, text: txt})
			}
			i += lt
		}
		gt := strings.IndexByte(s[i:], '>')
		if gt < 0 {
			break
		}
		tag := s[i+1 : i+gt]
		i += gt + 1

		if strings.HasPrefix(tag, "!") {
			continue // DOCTYPE / comment
		}
		selfClose := strings.HasSuffix(tag, "/")
		isEnd := strings.HasPrefix(tag, "/")
		body := strings.TrimSuffix(strings.TrimPrefix(tag, "/"), "/")
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}

		name, attrs := splitTagBody(body)
		switch {
		case isEnd:
			toks = append(toks, htmlToken{kind: tokEnd, name: name})
		case selfClose || isVoidElement(name):
			toks = append(toks, htmlToken{kind: tokSelfClose, name: name, attrs: attrs})
		default:
			toks = append(toks, htmlToken{kind: tokStart, name: name, attrs: attrs})
		}
	}
	return toks
}

func isVoidElement(name string) bool {
	switch strings.ToLower(name) {
	case "br", "meta", "hr", "img", "input", "link":
		return true
	}
	return false
}

func splitTagBody(body string) (string, map[string]string) {
	fields := splitTagFields(body)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	attrs := map[string]string{}
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			attrs[strings.ToLower(f)] = ""
			continue
		}
		key := strings.ToLower(f[:eq])
		val := strings.Trim(f[eq+1:], `"'`)
		attrs[key] = val
	}
	return name, attrs
}

// splitTagFields splits an opening-tag body into name/attr tokens,
// respecting quoted attribute values that may themselves contain spaces
// (e.g. style="...; ...").
func splitTagFields(body string) []string {
	var fields []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

func unescapeHTML(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&#39;", "'",
		"&apos;", "'",
	)
	return r.Replace(s)
}

func escapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
