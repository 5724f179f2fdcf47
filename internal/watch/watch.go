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

// Package watch follows plangate activity live: gate decisions as they are
// appended to the audit trail, and the plan tree as sub-plans are created
// and checked off.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/peg/plangate/internal/audit"
)

// Config holds settings for a watch run.
type Config struct {
	// AuditDir is the audit directory to follow.
	AuditDir string

	// PlanRoot is the plan tree to follow. Empty disables plan output.
	PlanRoot string

	Action  string // Filter: only show this action (allow/block/warn).
	Tool    string // Filter: only show this tool name.
	Session string // Filter: only show this session.

	// History replays the events already in today's file before following.
	History bool

	// Color enables styled output.
	Color bool

	// Width caps the length of event lines. Default: 120.
	Width int

	Out io.Writer
}

// Stats tracks running totals of decisions.
type Stats struct {
	Total int
	Allow int
	Block int
	Warn  int
}

func (s *Stats) add(event audit.Event) {
	s.Total++
	switch strings.ToLower(strings.TrimSpace(event.Decision.Action)) {
	case "allow":
		s.Allow++
	case "block":
		s.Block++
	case "warn":
		s.Warn++
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d events: %d allow, %d block, %d warn", s.Total, s.Allow, s.Block, s.Warn)
}

// Watcher renders audit and plan activity to an output stream.
type Watcher struct {
	cfg    Config
	styles Styles
	stats  Stats
	now    func() time.Time
}

// New creates a watcher.
func New(cfg Config) *Watcher {
	if cfg.Width <= 0 {
		cfg.Width = 120
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	return &Watcher{cfg: cfg, styles: NewStyles(cfg.Color), now: time.Now}
}

// Stats returns the totals of the events counted so far. Filtered events
// are counted too.
func (w *Watcher) Stats() Stats {
	return w.stats
}

// matches applies the configured filters.
func (w *Watcher) matches(event audit.Event) bool {
	if w.cfg.Action != "" && !strings.EqualFold(w.cfg.Action, event.Decision.Action) {
		return false
	}
	if w.cfg.Tool != "" && !strings.EqualFold(w.cfg.Tool, event.Tool) {
		return false
	}
	if w.cfg.Session != "" && w.cfg.Session != event.Session {
		return false
	}
	return true
}

// HandleEvent counts an event and prints it when it passes the filters.
func (w *Watcher) HandleEvent(event audit.Event) {
	w.stats.add(event)
	if !w.matches(event) {
		return
	}
	line := FormatEvent(event, w.cfg.Width)
	fmt.Fprintln(w.cfg.Out, w.styles.forAction(event.Decision.Action).Render(line))
}

// HandleSnapshot prints the plan tree state.
func (w *Watcher) HandleSnapshot(snap PlanSnapshot) {
	fmt.Fprint(w.cfg.Out, FormatSnapshot(snap, w.styles, w.now()))
}

func (w *Watcher) handleError(err error) {
	fmt.Fprintln(w.cfg.Out, w.styles.Muted.Render("watch: "+err.Error()))
}

// Run follows the audit trail and the plan tree until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if strings.TrimSpace(w.cfg.AuditDir) == "" {
		return errors.New("watch: audit directory is required")
	}

	events := newFileTailer(w.cfg.AuditDir).start(ctx, !w.cfg.History)
	var plans <-chan planEvent
	if w.cfg.PlanRoot != "" {
		plans = newPlanWatcher(w.cfg.PlanRoot).start(ctx)
	}

	fmt.Fprintln(w.cfg.Out, w.styles.Header.Render("plangate watch: "+w.cfg.AuditDir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.err != nil {
				w.handleError(evt.err)
				continue
			}
			w.HandleEvent(evt.event)
		case pe, ok := <-plans:
			if !ok {
				plans = nil
				continue
			}
			if pe.err != nil {
				w.handleError(pe.err)
				continue
			}
			w.HandleSnapshot(pe.snapshot)
		}
	}
}

// Run starts a watcher with cfg.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	w := New(cfg)
	err := w.Run(ctx)
	return w.Stats(), err
}
