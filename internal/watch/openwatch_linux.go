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

package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kraklabs/lucynotesd/internal/module"
	"github.com/kraklabs/lucynotesd/internal/ui"
)

// OpenWatcher reports Opened events via raw inotify IN_OPEN watches.
// fsnotify does not expose open events in its portable API, so this
// mirrors fsnotify's own inotify backend (unix.InotifyInit1 plus
// unix.InotifyAddWatch) narrowed to the one extra mask bit the daemon
// needs.
type OpenWatcher struct {
	fd   int
	sink Sink
	log  ui.Logger

	mu   sync.Mutex
	wds  map[int32]string
	stop chan struct{}
}

// NewOpenWatcher creates an inotify instance and registers IN_OPEN on
// every directory under roots (files within are covered automatically:
// inotify reports opens of files inside a watched directory as events
// named by the directory watch descriptor plus the file's base name).
func NewOpenWatcher(roots []string, sink Sink, log ui.Logger) (*OpenWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, err
	}
	ow := &OpenWatcher{fd: fd, sink: sink, log: log, wds: map[int32]string{}, stop: make(chan struct{})}
	for _, root := range roots {
		ow.addTree(root)
	}
	return ow, nil
}

func (ow *OpenWatcher) addTree(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && path != root) {
			return filepath.SkipDir
		}
		wd, err := unix.InotifyAddWatch(ow.fd, path, unix.IN_OPEN|unix.IN_ONLYDIR)
		if err != nil {
			ow.log.Warn("inotify add %s: %v", path, err)
			return nil
		}
		ow.mu.Lock()
		ow.wds[int32(wd)] = path
		ow.mu.Unlock()
		return nil
	})
}

// Run polls the inotify fd until stop is closed.
func (ow *OpenWatcher) Run(stop <-chan struct{}) {
	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.PathMax+1))
	for {
		select {
		case <-stop:
			unix.Close(ow.fd)
			return
		default:
		}

		n, err := unix.Read(ow.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			ow.log.Warn("inotify read: %v", err)
			return
		}
		ow.handleRaw(buf[:n])
	}
}

func (ow *OpenWatcher) handleRaw(buf []byte) {
	off := 0
	for off+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
		nameLen := int(raw.Len)
		var name string
		if nameLen > 0 {
			nameBytes := buf[off+unix.SizeofInotifyEvent : off+unix.SizeofInotifyEvent+nameLen]
			name = strings.TrimRight(string(nameBytes), "\x00")
		}
		off += unix.SizeofInotifyEvent + nameLen

		ow.mu.Lock()
		dir, ok := ow.wds[raw.Wd]
		ow.mu.Unlock()
		if !ok || name == "" {
			continue
		}
		full := filepath.Join(dir, name)
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			continue
		}
		ow.sink.Post(module.Event{Kind: module.EventOpened, SrcPath: full})
	}
}
