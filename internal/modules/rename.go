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
	"strings"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/module"
)

// Rename renames a file within its own directory when --r <newname> is
// present. It marks both the old and new path as expected self-writes
// (two-line ignore-ledger parity), matching modules/renamer.py.
type Rename struct{}

var RenameTemplate = args.Template{
	{Name: "--r", Kind: args.KindString, Default: "", Doc: "Rename this file, within the same directory"},
}

func (Rename) Name() string            { return "renamer" }
func (Rename) Priority() int           { return 20 }
func (Rename) Template() args.Template { return RenameTemplate }

func (r Rename) Created(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return r.apply(ctx, sys)
}
func (r Rename) Modified(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return r.apply(ctx, sys)
}
func (r Rename) Moved(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	return r.apply(ctx, sys)
}

func (r Rename) apply(ctx module.Context, sys module.System) (module.ChangeMap, error) {
	if sys.Event.IsDirectory {
		return nil, nil
	}
	newName := strings.TrimSpace(ctx.Config.First("r"))
	if newName == "" {
		return nil, nil
	}

	oldPath := ctx.Path
	newPath, err := filepath.Abs(filepath.Join(filepath.Dir(oldPath), newName))
	if err != nil {
		return nil, nil
	}
	if newPath == oldPath {
		return nil, nil
	}
	if _, err := os.Stat(newPath); err == nil {
		return nil, nil // refuse: destination already exists
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	return module.ChangeMap{oldPath: 1, newPath: 1}, nil
}
