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

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/lucynotesd/internal/args"
	"github.com/kraklabs/lucynotesd/internal/config"
	"github.com/kraklabs/lucynotesd/internal/errors"
	"github.com/kraklabs/lucynotesd/internal/gitcommit"
	"github.com/kraklabs/lucynotesd/internal/manager"
	"github.com/kraklabs/lucynotesd/internal/metrics"
	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/modules"
	"github.com/kraklabs/lucynotesd/internal/notify"
	"github.com/kraklabs/lucynotesd/internal/syncer"
	"github.com/kraklabs/lucynotesd/internal/ui"
	"github.com/kraklabs/lucynotesd/internal/watch"
)

// run builds the pipeline, starts watching, and blocks until a shutdown
// signal arrives. It returns the process exit code.
func run(configPath string, posDirs []string, log ui.Logger) int {
	notifier := notify.New()
	reg := metrics.New()
	gitMod := gitcommit.New(gitcommit.ExecRunner{}, notifier, log, reg)

	syncMod := syncer.New(log, notifier, func(target string) {
		reg.SyncWrites.WithLabelValues(target).Inc()
	})

	mods := []module.Module{syncMod, gitMod}
	mods = append(mods, modules.Auxiliary()...)

	tmpl, err := manager.MergedTemplate(mods)
	if err != nil {
		logFatal(log, err)
		return 1
	}

	startup, err := loadStartupConfig(configPath, tmpl, log)
	if err != nil {
		logFatal(log, err)
		return 1
	}
	startup = config.ApplyEnvOverrides(startup, tmpl)

	if len(posDirs) > 0 {
		vals := make([]interface{}, len(posDirs))
		for i, d := range posDirs {
			vals[i] = d
		}
		startup[args.Key("--sys-notes-dirs")] = vals
	}

	if !log.Debug {
		log.Debug = startup.Bool("sys_debug")
	}
	logFormat := startup.First("sys_logging_format")
	if logFormat == "" {
		if def, ok := manager.SystemTemplate.Lookup("--sys-logging-format"); ok {
			logFormat, _ = def.Default.(string)
		}
	}
	log.Timestamps = ui.WantsTimestamps(logFormat)

	excluded := startup.Strings("exclude")
	if !contains(excluded, "plasma") {
		if err := syncer.CheckRequiredPaths(startup); err != nil {
			logFatal(log, err)
			return 1
		}
	}

	notesDirs := existingDirs(startup.Strings("sys_notes_dirs"), log)
	if len(notesDirs) == 0 {
		logFatal(log, errors.NewConfigError(
			"No notes directories configured",
			"--sys-notes-dirs is empty and no existing directory was passed on the command line",
			"Pass at least one directory on the command line or set sys_notes_dirs in the config file",
			nil,
		))
		return 1
	}

	mgr, err := manager.NewFromParsed(mods, tmpl, startup, log)
	if err != nil {
		logFatal(log, err)
		return 1
	}
	mgr.OnModuleError = func(name string) {
		reg.ModuleErrors.WithLabelValues(name).Inc()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := startup.First("sys_metrics_addr"); addr != "" {
		go reg.Serve(ctx, addr, log)
	}

	cooldown := time.Duration(startup.Int("sys_on_open_cooldown", 20)) * time.Second
	handler := watch.NewHandler(mgr, cooldown, log)
	handler.Metrics = reg

	// Both watcher backends post into one Dispatcher, whose single Run
	// goroutine is the only caller of handler.HandleEvent - the watch
	// subsystem delivers events to the pipeline serially.
	dispatcher := watch.NewDispatcher(handler)

	scanInitial(notesDirs, log)

	source, err := watch.NewSource(notesDirs, dispatcher, log)
	if err != nil {
		logFatal(log, err)
		gitMod.Stop()
		return 1
	}
	openWatcher, err := watch.NewOpenWatcher(notesDirs, dispatcher, log)
	if err != nil {
		log.Warn("opened-event watching unavailable: %v", err)
		openWatcher = nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	dispatchStop := make(chan struct{})
	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(dispatchStop)
		close(dispatchDone)
	}()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		source.Run(stop)
		close(done)
	}()

	var openDone chan struct{}
	if openWatcher != nil {
		openDone = make(chan struct{})
		go func() {
			openWatcher.Run(stop)
			close(openDone)
		}()
	}

	// Shutdown order: stop the watch sources first so nothing new is
	// posted, drain the dispatcher's in-flight pipeline calls, and only
	// then signal the git worker to exit.
	sig := <-sigCh
	log.Info("received %s, shutting down", sig)
	cancel()
	close(stop)
	<-done
	if openDone != nil {
		<-openDone
	}
	close(dispatchStop)
	<-dispatchDone
	gitMod.Stop()
	return 0
}

// loadStartupConfig reads the config file, tolerating a missing file as
// the "CLI-only" disposition rather than a fatal error.
func loadStartupConfig(path string, tmpl args.Template, log ui.Logger) (args.Parsed, error) {
	known, _, err := config.Load(path, tmpl)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("config file %s not found, continuing with command-line configuration only", path)
			return args.Parsed{}, nil
		}
		return nil, err
	}
	return known, nil
}

func existingDirs(dirs []string, log ui.Logger) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		info, err := os.Stat(d)
		if err != nil {
			log.Warn("notes directory %s is not accessible, skipping: %v", d, err)
			continue
		}
		if !info.IsDir() {
			log.Warn("notes directory %s is not a directory, skipping", d)
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			abs = d
		}
		out = append(out, abs)
	}
	return out
}

// scanInitial walks every root once at startup purely to report how many
// files are present before the watch subsystem registers its directory
// watches; it does not feed any synthetic events into the pipeline, so it
// has no effect on synchronizer state, git commits, or any other module.
// The progress bar mirrors cmd/cie/index.go's currentBar, shown only when
// debug logging and a terminal are both present so piped output stays
// clean.
func scanInitial(roots []string, log ui.Logger) {
	if !log.Debug || !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}

	var count int64
	for _, root := range roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if strings.HasPrefix(filepath.Base(path), ".") {
				return nil
			}
			count++
			return nil
		})
	}
	if count == 0 {
		return
	}

	bar := progressbar.Default(count, "initial scan")
	_ = bar.Set64(count)
	_ = bar.Finish()
	log.Debugf("found %d existing note files under %d root(s)", count, len(roots))
}

func logFatal(log ui.Logger, err error) {
	log.Error("%v", err)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
