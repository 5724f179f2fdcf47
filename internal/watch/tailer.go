// Copyright 2026 The Plangate Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peg/plangate/internal/audit"
)

const defaultTailPoll = 250 * time.Millisecond

type tailerEvent struct {
	event audit.Event
	err   error
}

// fileTailer follows the newest audit file in a directory. When a hook
// writes the first event of a new day, the tailer switches to that file.
type fileTailer struct {
	dir        string
	path       string
	newWatcher func() (*fsnotify.Watcher, error)
	pollEvery  time.Duration
}

func newFileTailer(dir string) *fileTailer {
	if strings.TrimSpace(dir) != "" {
		dir = filepath.Clean(dir)
	}
	return &fileTailer{
		dir:        dir,
		newWatcher: fsnotify.NewWatcher,
		pollEvery:  defaultTailPoll,
	}
}

// latestFile returns the newest audit file in dir, or "" when there is none.
func latestFile(dir string) string {
	files, err := audit.ListFiles(dir)
	if err != nil || len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

func isAuditFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, audit.FilePrefix) && strings.HasSuffix(base, audit.FileSuffix)
}

// start begins tailing. When fromEnd is set, events already in the newest
// file are skipped.
func (t *fileTailer) start(ctx context.Context, fromEnd bool) <-chan tailerEvent {
	out := make(chan tailerEvent, 128)

	go func() {
		defer close(out)
		if strings.TrimSpace(t.dir) == "" {
			out <- tailerEvent{err: errors.New("watch: audit directory is empty")}
			return
		}
		if err := os.MkdirAll(t.dir, 0o700); err != nil {
			out <- tailerEvent{err: fmt.Errorf("watch: create audit directory: %w", err)}
			return
		}

		watcher, err := t.newWatcher()
		if err != nil {
			out <- tailerEvent{err: fmt.Errorf("watch: create file watcher: %w", err)}
			return
		}
		defer watcher.Close()

		if err := watcher.Add(t.dir); err != nil {
			out <- tailerEvent{err: fmt.Errorf("watch: watch audit directory %s: %w", t.dir, err)}
			return
		}

		t.path = latestFile(t.dir)
		offset := int64(0)
		if fromEnd && t.path != "" {
			if info, err := os.Stat(t.path); err == nil {
				offset = info.Size()
			}
		}
		offset = t.publishAvailable(ctx, out, offset)

		ticker := time.NewTicker(t.pollEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if latest := latestFile(t.dir); latest != "" && latest != t.path {
					offset = t.publishAvailable(ctx, out, offset)
					t.path = latest
					offset = 0
				}
				offset = t.publishAvailable(ctx, out, offset)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Clean(evt.Name)
				if !isAuditFile(name) {
					continue
				}

				// A newer day's file: drain the old one, then switch.
				if evt.Has(fsnotify.Create) && name != t.path && name > t.path {
					offset = t.publishAvailable(ctx, out, offset)
					t.path = name
					offset = 0
				}
				if name != t.path {
					continue
				}
				if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
					offset = 0
					continue
				}
				if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) {
					offset = t.publishAvailable(ctx, out, offset)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					continue
				}
				out <- tailerEvent{err: fmt.Errorf("watch: watcher error: %w", err)}
			}
		}
	}()

	return out
}

func (t *fileTailer) publishAvailable(ctx context.Context, out chan<- tailerEvent, offset int64) int64 {
	if t.path == "" {
		return 0
	}
	newEvents, newOffset, err := audit.ReadEventsFromOffset(t.path, offset)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		select {
		case out <- tailerEvent{err: err}:
		case <-ctx.Done():
		}
		return offset
	}

	for _, event := range newEvents {
		select {
		case out <- tailerEvent{event: event}:
		case <-ctx.Done():
			return newOffset
		}
	}

	return newOffset
}
