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

// Package reminder stores one-shot, session-scoped reminder markers.
//
// A marker for (session, topic) records that the agent was already shown
// the reminder for topic in that session. Markers are only ever created;
// clearing them is left to the host or to test harnesses.
package reminder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the reminder marker store used by the decision engine.
type Store interface {
	// ShouldRemind reports whether no marker exists for (session, topic).
	ShouldRemind(session, topic string) bool

	// MarkReminded records the marker. It is idempotent and never fails
	// the caller; if the marker cannot be stored the reminder repeats.
	MarkReminded(session, topic string)
}

// DefaultDirName is the marker directory created under the system temp dir.
const DefaultDirName = "plangate_reminders"

// DefaultDir returns the shared marker location used when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// FileStore keeps one empty file per (session, topic) under a directory.
// Concurrent hook processes may create the same marker; creation of an
// existing marker is a no-op.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir
// selects DefaultDir.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger}
}

// Dir returns the marker directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// ShouldRemind reports whether the marker is absent. Any stat error other
// than "exists" counts as absent.
func (s *FileStore) ShouldRemind(session, topic string) bool {
	_, err := os.Stat(s.markerPath(session, topic))
	return err != nil
}

// MarkReminded creates the marker file.
func (s *FileStore) MarkReminded(session, topic string) {
	if err := s.mark(session, topic); err != nil {
		s.logger.Warn("reminder: marker not stored; reminder will repeat",
			"session", session,
			"topic", topic,
			"error", err,
		)
	}
}

func (s *FileStore) mark(session, topic string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("reminder: create dir %s: %w", s.dir, err)
	}
	f, err := os.OpenFile(s.markerPath(session, topic), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reminder: create marker: %w", err)
	}
	return f.Close()
}

func (s *FileStore) markerPath(session, topic string) string {
	return filepath.Join(s.dir, escapeName(session)+"_"+escapeName(topic))
}

// escapeName maps a session id or topic to a file-name component.
// Letters, digits and '-' pass through; every other byte becomes %XX, so
// distinct inputs never share a marker and no component is "." or "..".
func escapeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// MemoryStore is an in-process Store. Markers live as long as the value.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// ShouldRemind reports whether no marker exists for (session, topic).
func (m *MemoryStore) ShouldRemind(session, topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[session+"\x00"+topic]
	return !ok
}

// MarkReminded records the marker.
func (m *MemoryStore) MarkReminded(session, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[session+"\x00"+topic] = struct{}{}
}
