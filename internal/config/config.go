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

// Package config loads the daemon's startup configuration from the file
// named by the --config/-c command-line flag. Two on-disk formats are accepted: a YAML mapping of
// flag destination keys to values (the daemon's native format, following
// the cie CLI's LoadConfig/applyEnvOverrides convention), and the
// flag-line format of spec.md §6 for backward compatibility with the
// original tool's config.txt.
package config

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/errors"
)

// envPrefix is the namespace for environment-variable overrides, applied
// after the config file so LUCYNOTESD_SYS_DEBUG=1 always wins regardless
// of which file format was loaded.
const envPrefix = "LUCYNOTESD_"

// Load reads path and parses it against tmpl, returning the known values
// and raw unknown leftovers. A file with a ".yaml"/".yml" extension is
// parsed as a flat key -> value(s) mapping; the content is not inspected
// to detect YAML, so any other file name is parsed with args.ParseConfigFile's flag-line format. A missing file
// is reported as an error so the caller can apply the "warn and continue
// CLI-only" disposition from spec.md §7.
func Load(path string, tmpl args.Template) (args.Parsed, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	if isYAMLPath(path) {
		known, unknown, err := loadYAML(data, tmpl)
		if err != nil {
			return nil, nil, err
		}
		return known, unknown, nil
	}

	return args.ParseConfigFile(path, tmpl)
}

func isYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

func loadYAML(data []byte, tmpl args.Template) (args.Parsed, []string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed in the config file",
			"Fix the YAML syntax, or point --config at a flag-line config.txt file instead",
			err,
		)
	}

	tokens := tokensFromYAML(raw)
	known, unknown := args.Parse(tokens, tmpl)
	return known, unknown, nil
}

// tokensFromYAML flattens a YAML mapping into the same CLI-token shape
// args.Parse expects: each key becomes a "--key" flag (underscores
// rewritten to dashes, matching args.Key's inverse), booleans become bare
// switches when true (and are omitted when false), sequences become a
// variadic value run, and scalars become a single value. Keys are sorted
// for deterministic token order across runs.
func tokensFromYAML(raw map[string]interface{}) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokens []string
	for _, k := range keys {
		flag := "--" + strings.ReplaceAll(k, "_", "-")
		switch v := raw[k].(type) {
		case bool:
			if v {
				tokens = append(tokens, flag)
			}
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			tokens = append(tokens, flag)
			for _, item := range v {
				tokens = append(tokens, scalarToToken(item))
			}
		case nil:
			// absent value: skip
		default:
			tokens = append(tokens, flag, scalarToToken(v))
		}
	}
	return tokens
}

func scalarToToken(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// ApplyEnvOverrides scans tmpl for LUCYNOTESD_<DEST_KEY> environment
// variables and, when set, overrides the corresponding entry in known -
// mirroring the cie CLI's applyEnvOverrides convention of "env beats
// file". Variadic values are split on commas; booleans accept any of
// "1"/"true"/"yes"/"on" (case-insensitive) as true.
func ApplyEnvOverrides(known args.Parsed, tmpl args.Template) args.Parsed {
	out := make(args.Parsed, len(known))
	for k, v := range known {
		out[k] = v
	}
	for _, def := range tmpl {
		key := args.Key(def.Name)
		envVal, ok := os.LookupEnv(envPrefix + strings.ToUpper(key))
		if !ok {
			continue
		}
		if def.Kind == args.KindBool {
			out[key] = isTruthyEnv(envVal)
			continue
		}
		parts := strings.Split(envVal, ",")
		vals := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			vals = append(vals, strings.TrimSpace(p))
		}
		out[key] = vals
	}
	return out
}

func isTruthyEnv(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
