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
	"strings"
	"time"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

// Banner inserts a rendered ASCII-art banner block at the line carrying
// a --banner directive. pyfiglet (used by the original banner_inserter.py)
// is an external CLI/font collaborator out of scope for this module's
// in-process rendering, so the banner is a boxed-text block instead; see
// DESIGN.md.
type Banner struct{}

var BannerTemplate = args.Template{
	{Name: "--banner", Kind: args.KindString, Default: "", Doc: `Insert an ASCII banner here; "date" substitutes today's date`},
}

func (Banner) Name() string            { return "banner" }
func (Banner) Priority() int           { return 5 }
func (Banner) Template() args.Template { return BannerTemplate }

func (b Banner) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	text := ctx.Config.First("banner")
	if text == "" {
		return nil, nil
	}
	lineNo, ok := firstLine(ctx.ArgLines, "banner")
	if !ok {
		return nil, nil
	}
	if text == "date" {
		text = time.Now().Format("2006-01-02")
	}

	lines, err := readFileLines(ctx.Path)
	if err != nil {
		return nil, nil
	}

	block := renderBanner(text)
	updated := replaceLineWithBlock(lines, lineNo, []string{"--banner"}, block)
	if err := writeFileLines(ctx.Path, updated); err != nil {
		return nil, err
	}
	return module.ChangeMap{ctx.Path: 1}, nil
}

// renderBanner draws text inside an ASCII box sized to the text (four
// columns wider than the text, at least 12).
func renderBanner(text string) string {
	width := len(text) + 4
	if width < 12 {
		width = 12
	}
	border := "+" + strings.Repeat("-", width-2) + "+"
	pad := width - 2 - len(text)
	left := pad / 2
	right := pad - left
	middle := "|" + strings.Repeat(" ", left) + text + strings.Repeat(" ", right) + "|"
	return strings.Join([]string{border, middle, border}, "\n")
}
