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

// Package engine implements plangate's decision engine.
//
// The engine receives one tool request from a coding agent (a file edit,
// a file write, a shell command or a task-lifecycle event) and decides
// whether it may proceed. Decisions combine heuristic classification of the
// request target with project state read from disk: the work-plan tree and
// the per-session reminder markers.
//
// Evaluation follows a block-wins model: when several gates run for the same
// request, any block produces a block, otherwise any warning produces a
// warning. Internal failures never surface as blocks; they resolve to the
// permissive default for the resource that failed.
package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Action represents the outcome of a gate evaluation.
type Action int

const (
	// ActionAllow permits the request silently.
	ActionAllow Action = iota

	// ActionBlock rejects the request. The agent receives the message and
	// the hook exits with status 2.
	ActionBlock

	// ActionWarn permits the request but attaches an advisory message as
	// additional context for the agent.
	ActionWarn
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionBlock:
		return "block"
	case ActionWarn:
		return "warn"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow, nil
	case "block", "deny":
		return ActionBlock, nil
	case "warn":
		return ActionWarn, nil
	default:
		return ActionAllow, fmt.Errorf("engine: unknown action %q", s)
	}
}

// Kind discriminates the request types the engine understands.
type Kind int

const (
	KindOther Kind = iota
	KindEdit
	KindWrite
	KindShell
	KindTaskCreate
	KindTaskUpdate
)

func (k Kind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindWrite:
		return "write"
	case KindShell:
		return "shell"
	case KindTaskCreate:
		return "task_create"
	case KindTaskUpdate:
		return "task_update"
	default:
		return "other"
	}
}

// ParseKind converts a kind name as printed by Kind.String back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k := KindOther; k <= KindTaskUpdate; k++ {
		if k.String() == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return KindOther, fmt.Errorf("engine: unknown request kind %q", s)
}

// KindForTool maps a host tool name to the request kind it represents.
// Unknown tools map to KindOther, which no gate inspects.
func KindForTool(tool string) Kind {
	switch tool {
	case "Edit", "MultiEdit", "NotebookEdit", "apply_patch", "edit", "patch":
		return KindEdit
	case "Write", "write":
		return KindWrite
	case "Bash", "bash", "shell", "exec":
		return KindShell
	case "TaskCreate":
		return KindTaskCreate
	case "TaskUpdate":
		return KindTaskUpdate
	default:
		return KindOther
	}
}

// IsFileChange reports whether the kind carries target file paths.
func (k Kind) IsFileChange() bool {
	return k == KindEdit || k == KindWrite
}

// Gate names one of the independent checks the engine can run.
type Gate string

const (
	// GateWorkPlan blocks changes to guarded source paths while no active
	// sub-plan exists.
	GateWorkPlan Gate = "work-plan"

	// GateLayerDocs blocks the first change per session to an architectural
	// layer (or to security configuration) until its documentation was read.
	GateLayerDocs Gate = "layer-docs"

	// GatePlanUpdate reminds the agent to keep plan documents in sync with
	// task creation and completion.
	GatePlanUpdate Gate = "plan-update"

	// GateDangerous blocks destructive system, VCS and database commands.
	GateDangerous Gate = "dangerous"
)

// AllGates lists every gate in evaluation order.
var AllGates = []Gate{GateDangerous, GateWorkPlan, GateLayerDocs, GatePlanUpdate}

// ParseGate converts a gate name to a Gate.
func ParseGate(s string) (Gate, error) {
	for _, g := range AllGates {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("engine: unknown gate %q", s)
}

// TaskFields carries the descriptive fields of a task-lifecycle request.
type TaskFields struct {
	Subject     string
	Description string
	Status      string
}

// Text returns the searchable text of the task.
func (t TaskFields) Text() string {
	return t.Subject + " " + t.Description
}

// unknownSession is used when the host did not provide a session id.
const unknownSession = "unknown"

// Request is a single tool request issued by the agent. It is built once per
// invocation by the transport layer and never modified afterwards.
type Request struct {
	// Kind selects which gates apply.
	Kind Kind

	// Tool is the host's original tool name (e.g. "Edit", "Bash").
	Tool string

	// Session identifies the agent session. Reminder markers are scoped
	// to it.
	Session string

	// Path is the target file of an edit or write. May be empty.
	Path string

	// Patch is the raw text of a multi-file patch, if the tool carries one.
	Patch string

	// Command is the shell command text for KindShell.
	Command string

	// Task holds subject, description and status for task-lifecycle kinds.
	Task TaskFields
}

// SessionID returns the session identifier, defaulting to "unknown".
func (r Request) SessionID() string {
	if s := strings.TrimSpace(r.Session); s != "" {
		return s
	}
	return unknownSession
}

// RequestFromToolInput builds a request from a host tool name and its raw
// input object. Field names cover the Claude Code and OpenCode tool
// schemas.
func RequestFromToolInput(tool, session string, input map[string]any) Request {
	return Request{
		Kind:    KindForTool(tool),
		Tool:    tool,
		Session: session,
		Path:    stringField(input, "file_path", "path", "filePath", "notebook_path"),
		Patch:   stringField(input, "patchText", "patch", "input"),
		Command: stringField(input, "command"),
		Task: TaskFields{
			Subject:     stringField(input, "subject"),
			Description: stringField(input, "description"),
			Status:      stringField(input, "status"),
		},
	}
}

// stringField returns the first non-empty string value among keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

var patchFileHeader = regexp.MustCompile(`(?m)^\*\*\* (?:Add|Update|Delete) File: (.+)$`)

// Paths returns every target file referenced by the request: the direct
// path first, followed by the files named in the patch text.
func (r Request) Paths() []string {
	var paths []string
	if r.Path != "" {
		paths = append(paths, r.Path)
	}
	if r.Patch != "" {
		for _, m := range patchFileHeader.FindAllStringSubmatch(r.Patch, -1) {
			if p := strings.TrimSpace(m[1]); p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// Target summarizes the request for the audit trail: path and paths for
// file changes, command for shell, subject and status for tasks.
func (r Request) Target() map[string]any {
	target := map[string]any{}
	switch {
	case r.Kind.IsFileChange():
		paths := r.Paths()
		if r.Path != "" {
			target["path"] = r.Path
		}
		if len(paths) > 1 || (r.Path == "" && len(paths) == 1) {
			target["paths"] = paths
		}
	case r.Kind == KindShell:
		target["command"] = r.Command
	case r.Kind == KindTaskCreate || r.Kind == KindTaskUpdate:
		target["subject"] = r.Task.Subject
		if r.Task.Status != "" {
			target["status"] = r.Task.Status
		}
	}
	return target
}

// Decision is the verdict for one request.
type Decision struct {
	// Action is the final verdict.
	Action Action

	// Gates lists the gates that produced a non-allow outcome.
	Gates []string

	// Message is the human-readable explanation. Empty for silent allows.
	Message string

	// EvalDuration is how long evaluation took.
	EvalDuration time.Duration
}

// Blocked returns true if the request was rejected.
func (d Decision) Blocked() bool {
	return d.Action == ActionBlock
}

// allow is the silent allow outcome of a single gate.
func allow() Decision {
	return Decision{Action: ActionAllow}
}

func block(g Gate, message string) Decision {
	return Decision{Action: ActionBlock, Gates: []string{string(g)}, Message: message}
}
