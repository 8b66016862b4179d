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

// Package ui provides colored console logging for the daemon, gated by
// verbosity flags, NO_COLOR, and whether stderr is a terminal.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	debugColor = color.New(color.FgHiBlack)
)

// InitColors configures whether color.New(...) sprint functions emit ANSI
// escapes. It must be called once at startup after flags are parsed.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}

// Logger gates message emission on verbosity/quiet flags, matching the
// daemon's --sys-debug/--verbose/--quiet CLI surface.
type Logger struct {
	Debug      bool // --sys-debug or -vv
	Quiet      bool // --quiet
	Timestamps bool // --sys-logging-format mentions "time"
}

// WantsTimestamps reports whether a --sys-logging-format value asks for a
// time component in each record.
func WantsTimestamps(format string) bool {
	return strings.Contains(strings.ToLower(format), "time")
}

func (l Logger) prefix(level string) string {
	if l.Timestamps {
		return time.Now().Format("15:04:05") + " [" + level + "] "
	}
	return "[" + level + "] "
}

func (l Logger) Info(format string, args ...interface{}) {
	if l.Quiet {
		return
	}
	fmt.Fprintln(os.Stderr, infoColor.Sprintf(l.prefix("INFO")+format, args...))
}

func (l Logger) Debugf(format string, args ...interface{}) {
	if !l.Debug {
		return
	}
	fmt.Fprintln(os.Stderr, debugColor.Sprintf(l.prefix("DEBUG")+format, args...))
}

func (l Logger) Warn(format string, args ...interface{}) {
	if l.Quiet {
		return
	}
	fmt.Fprintln(os.Stderr, warnColor.Sprintf(l.prefix("WARN")+format, args...))
}

func (l Logger) Error(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errColor.Sprintf(l.prefix("ERROR")+format, args...))
}
