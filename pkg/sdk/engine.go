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

package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/engine"
	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/reminder"
	"github.com/peg/plangate/policies"
)

// contextKey is an unexported type for context keys, preventing collisions
// with keys from other packages.
type contextKey string

// sessionKey is the context key for the session identifier.
const sessionKey contextKey = "plangate-session"

// WithSession returns a context carrying the agent session id. Reminders
// are shown once per session.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// ToolFunc is a runtime tool function wrapped by plangate checks.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// AuditSink receives audit events emitted by wrapped tools.
// Implemented by the JSONL audit sink.
type AuditSink interface {
	// Write records a single audit event.
	Write(event audit.Event) error
}

type options struct {
	configPath  string
	reminderDir string
	memory      bool
	auditDir    string
	sink        AuditSink
	logger      *slog.Logger
}

// Option configures a Gate.
type Option func(*options)

// WithConfig loads the configuration from path instead of the project's
// .plangate.yaml.
func WithConfig(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithReminderDir stores reminder markers in dir.
func WithReminderDir(dir string) Option {
	return func(o *options) { o.reminderDir = dir }
}

// WithInMemoryReminders keeps reminder markers in memory for the lifetime
// of the Gate.
func WithInMemoryReminders() Option {
	return func(o *options) { o.memory = true }
}

// WithAuditDir appends decisions to the JSONL audit trail in dir.
func WithAuditDir(dir string) Option {
	return func(o *options) { o.auditDir = dir }
}

// WithAuditSink sends decisions to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Gate wraps the gate engine for agent runtime integrations.
type Gate struct {
	engine *engine.Engine
	sink   AuditSink
	logger *slog.Logger
}

// New creates a Gate for the project rooted at projectDir.
func New(projectDir string, opts ...Option) (*Gate, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	path := o.configPath
	if path == "" {
		path = filepath.Join(projectDir, policies.DefaultFile)
	}
	cfg, err := engine.NewFileStore(path).Load()
	if err != nil {
		return nil, fmt.Errorf("sdk: load config: %w", err)
	}

	var markers reminder.Store
	if o.memory {
		markers = reminder.NewMemoryStore()
	} else {
		dir := o.reminderDir
		if dir == "" {
			dir = cfg.Reminders.Dir
		}
		markers = reminder.NewFileStore(dir, o.logger)
	}

	var sink AuditSink = audit.DiscardSink{}
	switch {
	case o.sink != nil:
		sink = o.sink
	case o.auditDir != "":
		jsonl, err := audit.NewJSONLSink(o.auditDir, audit.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("sdk: open audit sink: %w", err)
		}
		sink = jsonl
	}

	plans := plan.NewResolver(cfg.PlanRoot(projectDir))
	return &Gate{
		engine: engine.New(cfg, plans, markers, o.logger),
		sink:   sink,
		logger: o.logger,
	}, nil
}

// Wrap returns a gated wrapper for a tool function. Tools the gates do not
// know about always run.
func (g *Gate) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		req := buildRequest(ctx, toolName, params)
		decision := g.engine.Evaluate(req)
		g.record(req, decision)

		g.logger.Debug("sdk: tool evaluated",
			"tool", toolName,
			"session", req.SessionID(),
			"action", decision.Action,
			"eval_duration", decision.EvalDuration,
		)

		if decision.Blocked() {
			return nil, &ErrBlocked{Tool: toolName, Gate: firstGate(decision), Message: decision.Message}
		}
		return fn(ctx, params)
	}
}

// Preflight reports whether a tool call would be allowed without executing
// it. Reminder markers are consumed as for a real call.
func (g *Gate) Preflight(ctx context.Context, toolName string, params map[string]any) PreflightResult {
	req := buildRequest(ctx, toolName, params)
	decision := g.engine.Evaluate(req)

	return PreflightResult{
		Allowed:  !decision.Blocked(),
		Action:   decision.Action.String(),
		Message:  decision.Message,
		Gates:    decision.Gates,
		EvalTime: decision.EvalDuration,
	}
}

// PreflightResult is the outcome of a preflight check.
type PreflightResult struct {
	// Allowed is true if the tool call would proceed (allow or warn).
	Allowed bool

	// Action is the decision (allow, block, warn).
	Action string

	// Message is the explanation, empty for silent allows.
	Message string

	// Gates lists the gates that did not allow.
	Gates []string

	// EvalTime is how long evaluation took.
	EvalTime time.Duration
}

func (g *Gate) record(req engine.Request, d engine.Decision) {
	if req.Kind == engine.KindOther {
		return
	}
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Session:   req.SessionID(),
		Tool:      req.Tool,
		Kind:      req.Kind.String(),
		Gate:      "all",
		Mode:      "enforce",
		Request:   req.Target(),
		Decision: audit.EventDecision{
			Action:     d.Action.String(),
			Gates:      d.Gates,
			EvalTimeUS: d.EvalDuration.Microseconds(),
			Message:    d.Message,
		},
	}
	if err := g.sink.Write(event); err != nil {
		g.logger.Warn("sdk: audit write failed", "error", err)
	}
}

func buildRequest(ctx context.Context, toolName string, params map[string]any) engine.Request {
	session := ""
	if ctx != nil {
		session, _ = ctx.Value(sessionKey).(string)
	}
	return engine.RequestFromToolInput(toolName, session, params)
}

// firstGate returns the first gate that did not allow, if any.
func firstGate(d engine.Decision) string {
	if len(d.Gates) == 0 {
		return ""
	}
	return d.Gates[0]
}
