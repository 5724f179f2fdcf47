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

// Package audit records gate decisions as an append-only JSONL trail.
//
// Every hook invocation appends one Event to a per-day file in the audit
// directory. Hook invocations are separate processes, so the trail is the
// only place decisions from one agent session can be seen together; the
// log, watch and metrics commands all read it.
package audit

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a single audited gate decision.
type Event struct {
	// ID is a ULID: time-ordered, lexicographically sortable, globally unique.
	ID string `json:"id"`

	// Timestamp is when the request was evaluated (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Session is the agent session id supplied by the host.
	Session string `json:"session"`

	// HookEvent is the host hook event name (e.g. "PreToolUse").
	HookEvent string `json:"hook_event,omitempty"`

	// Tool is the host tool name (e.g. "Edit", "Bash").
	Tool string `json:"tool"`

	// Kind is the engine request kind the tool mapped to.
	Kind string `json:"kind"`

	// Gate is the gate the hook was invoked for, or "all".
	Gate string `json:"gate"`

	// Mode is the enforcement mode (enforce, monitor, audit).
	Mode string `json:"mode"`

	// Request holds the request target: path, paths, command or task
	// subject.
	Request map[string]any `json:"request,omitempty"`

	// Decision records the verdict.
	Decision EventDecision `json:"decision"`
}

// EventDecision is the recorded verdict.
type EventDecision struct {
	// Action is the effective action after the mode was applied:
	// "allow", "block" or "warn".
	Action string `json:"action"`

	// Verdict is the engine's own verdict when the mode changed it.
	Verdict string `json:"verdict,omitempty"`

	// Gates lists the gates that did not allow.
	Gates []string `json:"gates,omitempty"`

	// EvalTimeUS is the evaluation duration in microseconds.
	EvalTimeUS int64 `json:"evaluation_time_us"`

	// Message is the text shown to the agent.
	Message string `json:"message,omitempty"`
}

// FilePrefix and FileSuffix frame the per-day audit file name.
const (
	FilePrefix = "audit-hook-"
	FileSuffix = ".jsonl"
)

// FileName returns the audit file name for the day containing t (UTC).
func FileName(t time.Time) string {
	return FilePrefix + t.UTC().Format("2006-01-02") + FileSuffix
}

// DefaultDir returns ~/.plangate/audit, or a directory under the system
// temp dir when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "plangate", "audit")
	}
	return filepath.Join(home, ".plangate", "audit")
}

// NewEventID returns a new ULID event identifier.
func NewEventID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err == nil {
		return id.String()
	}

	slog.Error("audit: generate event id", "error", err)
	return ulid.Make().String()
}

// EventTime returns the time encoded in an event ID, or the zero time when
// the ID is not a ULID.
func EventTime(id string) time.Time {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(parsed.Time()).UTC()
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s %s", e.Timestamp.Format(time.RFC3339), e.Decision.Action, e.Tool, e.Session)
}
