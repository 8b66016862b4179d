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

package manager

import "github.com/kraklabs/lucynotesd/internal/args"

// SystemTemplate is the fixed set of flags every event source (CLI,
// config file, per-file directive) may supply, independent of which
// modules are loaded. It is always the first segment of the Manager's
// global template.
var SystemTemplate = args.Template{
	{Name: "--force", Kind: args.KindString, Default: []string{}, Doc: "Module names to force-enable even if excluded"},
	{Name: "--exclude", Kind: args.KindString, Default: []string{}, Doc: "Module names to disable"},
	{Name: "--sys-priority", Kind: args.KindString, Default: []string{}, Doc: `Items "name=int" overriding module priorities`},
	{Name: "--sys-use-only-first-line", Kind: args.KindBool, Default: false, Doc: "Restrict per-file directive parsing to line 1"},
	{Name: "--sys-config-path", Kind: args.KindString, Default: "config.txt", Doc: "Path to config file"},
	{Name: "--sys-debug", Kind: args.KindBool, Default: false, Doc: "Enable debug logging"},
	{Name: "--sys-logging-format", Kind: args.KindString, Default: "time level file line msg", Doc: "Log record format"},
	{Name: "--sys-notes-dirs", Kind: args.KindString, Default: []string{}, Doc: "Directories to watch recursively"},
	{Name: "--sys-on-open-cooldown", Kind: args.KindInt, Default: 20, Doc: "Seconds between accepted open events per file"},
	{Name: "--sys-metrics-addr", Kind: args.KindString, Default: "", Doc: "Optional host:port to expose Prometheus metrics on"},
}
