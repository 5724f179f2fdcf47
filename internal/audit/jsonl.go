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

package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONLSink appends events to the per-day JSONL file in a directory.
//
// Each Write opens the day's file with O_APPEND and writes one complete
// line, so several hook processes may append to the same file.
type JSONLSink struct {
	mu     sync.Mutex
	dir    string
	fsync  bool
	now    func() time.Time
	logger *slog.Logger
}

// NewJSONLSink creates a JSONL-backed audit sink in dir.
func NewJSONLSink(dir string, opts ...SinkOption) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: sink dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create sink dir: %w", err)
	}

	cfg := defaultSinkConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JSONLSink{
		dir:    dir,
		fsync:  cfg.fsync,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}, nil
}

// Dir returns the audit directory.
func (s *JSONLSink) Dir() string {
	return s.dir
}

// Write appends a single event. Missing ID and timestamp are filled in.
func (s *JSONLSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	line = append(line, '\n')

	path := filepath.Join(s.dir, FileName(event.Timestamp))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open jsonl file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if s.fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("audit: fsync event: %w", err)
		}
	}

	s.logger.Debug("audit: wrote event",
		"event_id", event.ID,
		"file", path,
	)
	return nil
}

// DiscardSink drops every event. Used when auditing is disabled.
type DiscardSink struct{}

// Write implements Sink.
func (DiscardSink) Write(Event) error { return nil }
