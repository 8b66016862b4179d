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

import (
	"bufio"
	"os"
	"strings"
)

// Parse consumes tokens against template, returning the bound known
// values and the unbound leftover tokens in original order. It never
// panics outward: an internal failure is recovered and reported as
// ({}, tokens), matching the Python original's SystemExit-catching
// behavior for a misbehaving parser.
func Parse(tokens []string, tmpl Template) (known Parsed, unknown []string) {
	defer func() {
		if recover() != nil {
			known = Parsed{}
			unknown = tokens
		}
	}()
	return parse(tokens, tmpl, nil, 0)
}

// parse is the shared engine behind Parse and per-line directive parsing.
// When lines is non-nil, every value consumed for a known flag is also
// recorded in lines at lineNo.
func parse(tokens []string, tmpl Template, lines LineMap, lineNo int) (Parsed, []string) {
	known := Parsed{}
	var unknown []string

	record := func(key string, n int) {
		if lines == nil || n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			lines[key] = append(lines[key], lineNo)
		}
	}

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if !isValidFlagToken(tok) {
			unknown = append(unknown, tok)
			i++
			continue
		}

		name, inline, hasInline := splitFlagToken(tok)
		def, ok := tmpl.Lookup(name)
		if !ok {
			unknown = append(unknown, tok)
			i++
			consumed := 0
			for i < len(tokens) && !isValidFlagToken(tokens[i]) {
				unknown = append(unknown, tokens[i])
				consumed++
				i++
			}
			if consumed == 0 {
				consumed = 1
			}
			record(UnknownKey, consumed)
			continue
		}

		key := Key(def.Name)
		if def.Kind == KindBool {
			known[key] = true
			record(key, 1)
			i++
			continue
		}

		var raw []string
		if hasInline {
			raw = append(raw, inline)
		}
		i++
		for i < len(tokens) && !isValidFlagToken(tokens[i]) {
			raw = append(raw, tokens[i])
			i++
		}

		converted := convertValues(def.Kind, raw)
		if existing, ok := known[key]; ok {
			if existingSlice, ok := existing.([]interface{}); ok {
				known[key] = append(existingSlice, converted...)
			} else {
				known[key] = converted
			}
		} else {
			known[key] = converted
		}
		record(key, len(converted))
	}

	return known, unknown
}

// splitFlagToken separates "--name" / "--name=value" into its name (with
// "--" prefix) and optional inline value.
func splitFlagToken(tok string) (name, value string, hasValue bool) {
	if eq := strings.IndexByte(tok, '='); eq >= 0 {
		return tok[:eq], tok[eq+1:], true
	}
	return tok, "", false
}

// ParseConfigFile reads a config file: blank lines and '#' comments are
// ignored, remaining lines are shell-tokenized and concatenated before a
// single Parse call. A missing file is reported as an error so callers can
// apply the "warn and continue CLI-only" disposition from spec.md §7.
func ParseConfigFile(path string, tmpl Template) (Parsed, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return Parsed{}, nil, err
	}
	defer f.Close()

	var all []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		all = append(all, Tokenize(line)...)
	}
	if err := sc.Err(); err != nil {
		return Parsed{}, nil, err
	}

	known, unknown := Parse(all, tmpl)
	return known, unknown, nil
}

// ParseFileDirectives scans a watched file for directive lines: any line
// whose first whitespace-separated token is a valid flag token. Prose
// lines (that do not start with one) are ignored. When onlyFirstLine is
// true, only physical line 1 is examined. Returns the bound known values
// and the parallel line-attribution map.
func ParseFileDirectives(path string, tmpl Template, onlyFirstLine bool) (Parsed, LineMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parsed{}, LineMap{}, err
	}

	known := Parsed{}
	lines := LineMap{}

	rawLines := strings.Split(string(data), "\n")
	for idx, raw := range rawLines {
		lineNo := idx + 1
		if onlyFirstLine && lineNo > 1 {
			break
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		toks := Tokenize(trimmed)
		if len(toks) == 0 || !isValidFlagToken(toks[0]) {
			continue
		}

		lineKnown, _ := parse(toks, tmpl, lines, lineNo)
		for k, v := range lineKnown {
			if existing, ok := known[k]; ok {
				if es, ok := existing.([]interface{}); ok {
					if ns, ok := v.([]interface{}); ok {
						known[k] = append(es, ns...)
						continue
					}
				}
			}
			known[k] = v
		}
	}

	return known, lines, nil
}

// GetArgsFromFirstLine is a convenience wrapper mirroring the original's
// get_args_from_first_file_line: directives from physical line 1 only.
func GetArgsFromFirstLine(path string, tmpl Template) (Parsed, LineMap, error) {
	return ParseFileDirectives(path, tmpl, true)
}
