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

package modules

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

// Todo rewrites plain "- X" list lines in a Markdown file to "- [ ] X"
// checklist items whenever --todo is present.
type Todo struct{}

var TodoTemplate = args.Template{
	{Name: "--todo", Kind: args.KindBool, Default: false, Doc: "Convert plain list lines to checklist items"},
}

var plainBulletLine = regexp.MustCompile(`^(\s*)-\s+(.+)$`)
var alreadyChecklist = regexp.MustCompile(`^\[[ xX]\]\s`)

func (Todo) Name() string            { return "todo" }
func (Todo) Priority() int           { return 10 }
func (Todo) Template() args.Template { return TodoTemplate }

func (t Todo) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return t.apply(ctx)
}
func (t Todo) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return t.apply(ctx)
}
func (t Todo) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return t.apply(ctx)
}

func (t Todo) apply(ctx module.Context) (module.ChangeMap, error) {
	if !ctx.Config.Bool("todo") {
		return nil, nil
	}
	if strings.ToLower(filepath.Ext(ctx.Path)) != ".md" {
		return nil, nil
	}

	data, err := os.ReadFile(ctx.Path)
	if err != nil {
		return nil, nil
	}
	text := string(data)

	rawLines := strings.Split(text, "\n")
	changed := false
	for i, raw := range rawLines {
		line := strings.TrimSuffix(raw, "\r")
		hadCR := line != raw

		m := plainBulletLine.FindStringSubmatch(line)
		if m == nil || alreadyChecklist.MatchString(m[2]) {
			continue
		}
		newLine := m[1] + "- [ ] " + m[2]
		if hadCR {
			newLine += "\r"
		}
		rawLines[i] = newLine
		changed = true
	}

	if !changed {
		return nil, nil
	}

	out := strings.Join(rawLines, "\n")
	if err := os.WriteFile(ctx.Path, []byte(out), 0o644); err != nil {
		return nil, err
	}
	return module.ChangeMap{ctx.Path: 1}, nil
}
