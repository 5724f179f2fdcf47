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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peg/plangate/internal/plan"
)

const (
	defaultPlanDebounce = 150 * time.Millisecond
	defaultPlanPoll     = 2 * time.Second
)

// PlanSnapshot is the state of the plan tree at one point in time.
type PlanSnapshot struct {
	Taken    time.Time
	Result   plan.Result
	Progress map[string]plan.Progress
}

// TakeSnapshot resolves the plan root and reads the progress of every
// valid sub-plan. Unreadable plan documents are left out of Progress.
func TakeSnapshot(r *plan.Resolver) PlanSnapshot {
	snap := PlanSnapshot{
		Taken:    time.Now(),
		Result:   r.Resolve(),
		Progress: map[string]plan.Progress{},
	}
	for _, p := range snap.Result.Plans {
		if !p.Present[plan.DocPlan] {
			continue
		}
		if prog, err := plan.ReadProgress(p); err == nil {
			snap.Progress[p.Name] = prog
		}
	}
	return snap
}

// signature summarizes a snapshot so unchanged trees are not re-emitted.
func (s PlanSnapshot) signature() string {
	sig := ""
	if s.Result.Err != nil {
		sig = "err:" + s.Result.Err.Error()
	}
	for _, p := range s.Result.Plans {
		prog := s.Progress[p.Name]
		sig += fmt.Sprintf("|%s:%v:%t:%d/%d", p.Name, p.Missing(), p.IsActive(), prog.Done, prog.Total)
	}
	return sig
}

type planEvent struct {
	snapshot PlanSnapshot
	err      error
}

// planWatcher emits a snapshot whenever the plan tree changes. Sub-plan
// directories are added to the watch as they appear. A slow poll covers
// the case where the plan root itself does not exist yet.
type planWatcher struct {
	resolver   *plan.Resolver
	newWatcher func() (*fsnotify.Watcher, error)
	debounce   time.Duration
	pollEvery  time.Duration
}

func newPlanWatcher(root string) *planWatcher {
	return &planWatcher{
		resolver:   plan.NewResolver(root),
		newWatcher: fsnotify.NewWatcher,
		debounce:   defaultPlanDebounce,
		pollEvery:  defaultPlanPoll,
	}
}

func (w *planWatcher) start(ctx context.Context) <-chan planEvent {
	out := make(chan planEvent, 16)

	go func() {
		defer close(out)
		root := w.resolver.Root()

		watcher, err := w.newWatcher()
		if err != nil {
			out <- planEvent{err: fmt.Errorf("watch: create plan watcher: %w", err)}
			return
		}
		defer watcher.Close()

		watched := map[string]bool{}
		addTree := func() {
			if !watched[root] {
				if err := watcher.Add(root); err == nil {
					watched[root] = true
				}
			}
			entries, err := os.ReadDir(root)
			if err != nil {
				return
			}
			for _, e := range entries {
				dir := filepath.Join(root, e.Name())
				if !e.IsDir() || watched[dir] {
					continue
				}
				if err := watcher.Add(dir); err == nil {
					watched[dir] = true
				}
			}
		}

		last := ""
		emit := func() {
			addTree()
			snap := TakeSnapshot(w.resolver)
			sig := snap.signature()
			if sig == last {
				return
			}
			last = sig
			select {
			case out <- planEvent{snapshot: snap}:
			case <-ctx.Done():
			}
		}
		emit()

		poll := time.NewTicker(w.pollEvery)
		defer poll.Stop()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				emit()
			case <-debounce:
				debounce = nil
				emit()
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
					delete(watched, filepath.Clean(evt.Name))
				}
				if debounce == nil {
					debounce = time.After(w.debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					continue
				}
				out <- planEvent{err: fmt.Errorf("watch: plan watcher error: %w", err)}
			}
		}
	}()

	return out
}
