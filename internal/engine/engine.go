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

package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/reminder"
)

// PlanSource supplies plan state. *plan.Resolver implements it.
type PlanSource interface {
	Resolve() plan.Result
}

// Engine evaluates agent requests against the configured gates.
//
// Each Evaluate call is independent: plan state is rescanned and reminder
// markers are consulted per request. Engine holds no mutable state of its
// own; concurrency safety of the reminder store is the store's concern.
type Engine struct {
	cfg       *Config
	paths     *PathClassifier
	commands  *CommandClassifier
	plans     PlanSource
	reminders reminder.Store
	logger    *slog.Logger
}

// New creates an engine. plans and reminders may be nil, in which case no
// plan is ever active and every reminder is due.
func New(cfg *Config, plans PlanSource, reminders reminder.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if reminders == nil {
		reminders = reminder.NewMemoryStore()
	}
	paths := NewPathClassifier(cfg.Paths)
	return &Engine{
		cfg:       cfg,
		paths:     paths,
		commands:  NewCommandClassifier(paths),
		plans:     plans,
		reminders: reminders,
		logger:    logger,
	}
}

// Paths returns the engine's path classifier.
func (e *Engine) Paths() *PathClassifier {
	return e.paths
}

// Commands returns the engine's command classifier.
func (e *Engine) Commands() *CommandClassifier {
	return e.commands
}

// Evaluate runs the named gates (all gates when none are given) and
// combines their outcomes: block wins over warn, warn over allow. Messages
// of every non-allow gate are joined in evaluation order.
func (e *Engine) Evaluate(req Request, gates ...Gate) Decision {
	start := time.Now()
	if len(gates) == 0 {
		gates = AllGates
	}

	final := Decision{Action: ActionAllow}
	var messages []string
	for _, g := range gates {
		d := e.evaluateGate(g, req)
		if d.Action == ActionAllow {
			continue
		}
		final.Gates = append(final.Gates, d.Gates...)
		messages = append(messages, d.Message)
		if d.Action == ActionBlock || final.Action == ActionAllow {
			final.Action = d.Action
		}
	}

	final.Message = strings.Join(messages, "\n")
	final.EvalDuration = time.Since(start)

	if final.Action != ActionAllow {
		e.logger.Debug("engine: request gated",
			"kind", req.Kind,
			"action", final.Action,
			"gates", final.Gates,
		)
	}
	return final
}

func (e *Engine) evaluateGate(g Gate, req Request) Decision {
	switch g {
	case GateWorkPlan:
		switch {
		case req.Kind.IsFileChange():
			return e.EvaluateFileChange(req)
		case req.Kind == KindShell:
			return e.EvaluateCommand(req)
		}
	case GateLayerDocs:
		if req.Kind.IsFileChange() {
			return e.EvaluateLayerDocs(req)
		}
	case GatePlanUpdate:
		if req.Kind == KindTaskCreate || req.Kind == KindTaskUpdate {
			return e.EvaluateTask(req)
		}
	case GateDangerous:
		if req.Kind == KindShell {
			return e.EvaluateDangerous(req.Command)
		}
	}
	return allow()
}

// EvaluateFileChange gates an edit or write. The request is allowed when it
// has no target, every target is exempt or outside the guarded zones, or an
// active sub-plan exists.
func (e *Engine) EvaluateFileChange(req Request) Decision {
	var guarded []string
	for _, p := range req.Paths() {
		if e.paths.Guarded(p) {
			guarded = append(guarded, p)
		}
	}
	if len(guarded) == 0 {
		return allow()
	}
	if len(e.activePlans()) > 0 {
		return allow()
	}
	return block(GateWorkPlan, e.workPlanMessage())
}

// EvaluateCommand gates a shell command that writes into a guarded zone.
func (e *Engine) EvaluateCommand(req Request) Decision {
	cmd := req.Command
	if strings.TrimSpace(cmd) == "" {
		return allow()
	}
	signal, ok := e.commands.MutationSignal(cmd)
	if !ok {
		return allow()
	}
	targets := e.commands.GuardedTargets(cmd)
	if len(targets) == 0 {
		return allow()
	}
	if len(e.activePlans()) > 0 {
		return allow()
	}
	e.logger.Debug("engine: mutating command without active plan",
		"signal", signal,
		"targets", targets,
	)
	return block(GateWorkPlan, e.workPlanMessage())
}

// EvaluateLayerDocs blocks the first change per session to each layer
// (and to security configuration) until its documentation was read. Every
// topic that fires is marked, so a retry passes.
func (e *Engine) EvaluateLayerDocs(req Request) Decision {
	session := req.SessionID()
	rules := e.cfg.Layers

	var messages []string
	for _, raw := range req.Paths() {
		p := NormalizePath(raw)
		if e.skipLayerCheck(p) {
			continue
		}

		for _, layer := range rules.Docs {
			if !HasSegment(p, layer.Name) {
				continue
			}
			if e.reminders.ShouldRemind(session, layer.Name) {
				e.reminders.MarkReminded(session, layer.Name)
				messages = append(messages, fmt.Sprintf(
					"[%s] First change to this layer in this session. Read %s before editing.",
					layer.Name, layer.Doc))
			}
			break
		}

		if e.isSecurityPath(p) && e.reminders.ShouldRemind(session, securityTopic) {
			e.reminders.MarkReminded(session, securityTopic)
			messages = append(messages, fmt.Sprintf(
				"[%s] First change to security configuration in this session. Read %s before editing.",
				securityTopic, rules.Security.Doc))
		}
	}

	if len(messages) == 0 {
		return allow()
	}
	return block(GateLayerDocs, strings.Join(messages, "\n"))
}

const securityTopic = "security"

func (e *Engine) skipLayerCheck(p string) bool {
	rules := e.cfg.Layers
	for _, d := range rules.SkipDirs {
		if HasSegment(p, d) {
			return true
		}
	}
	for _, d := range rules.TestDirs {
		if HasSegment(p, d) {
			return true
		}
	}
	for _, s := range rules.TestSuffixes {
		if s != "" && strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

func (e *Engine) isSecurityPath(p string) bool {
	sec := e.cfg.Layers.Security
	if sec.Segment == "" || sec.Keyword == "" {
		return false
	}
	return HasSegment(p, sec.Segment) &&
		strings.Contains(strings.ToLower(p), strings.ToLower(sec.Keyword))
}

// EvaluateTask reminds the agent to keep the plan documents in sync with
// task creation and completion. Non-code tasks are exempt.
func (e *Engine) EvaluateTask(req Request) Decision {
	if e.IsExemptTask(req.Task) {
		return allow()
	}

	switch req.Kind {
	case KindTaskCreate:
		if len(e.activePlans()) > 0 {
			return allow()
		}
		return block(GatePlanUpdate, fmt.Sprintf(
			"[plan] Task created: %q\nMake sure %s/{task-name}/ contains %s.",
			req.Task.Subject, e.cfg.PlanDir, triad()))

	case KindTaskUpdate:
		if !strings.EqualFold(strings.TrimSpace(req.Task.Status), e.cfg.Tasks.CompletedStatus) {
			return allow()
		}
		active := e.activePlans()
		if len(active) == 0 {
			return allow()
		}
		paths := make([]string, 0, len(active))
		for _, p := range active {
			paths = append(paths, p.DocPath(plan.DocPlan))
		}
		return block(GatePlanUpdate, fmt.Sprintf(
			"[plan] Task completed. Mark the matching step as %s in: %s",
			plan.CheckedMarker, strings.Join(paths, ", ")))
	}
	return allow()
}

// IsExemptTask reports whether a task describes non-code work
// (documentation, configuration, build or CI).
func (e *Engine) IsExemptTask(t TaskFields) bool {
	text := t.Text()
	for _, pattern := range e.cfg.Tasks.ExemptPatterns {
		if pattern != "" && strings.Contains(text, pattern) {
			return true
		}
	}
	return e.cfg.taskKeywords != nil && e.cfg.taskKeywords.MatchString(text)
}

// EvaluateDangerous tests a command against the destructive-command table.
// The first matching rule wins. The raw command, its quote-normalized form
// and every compound segment are checked, so end-anchored patterns also
// apply to the last command of a chain.
func (e *Engine) EvaluateDangerous(cmd string) Decision {
	if strings.TrimSpace(cmd) == "" {
		return allow()
	}

	candidates := append([]string{cmd, NormalizeCommand(cmd)}, SplitCompoundCommand(cmd)...)
	for _, rule := range e.cfg.dangerous {
		for _, c := range candidates {
			if rule.re.MatchString(c) {
				return block(GateDangerous, fmt.Sprintf(
					"[safety] Blocked: %s\nCommand: %s\nIf this really needs to run, run it yourself in a terminal.",
					rule.reason, cmd))
			}
		}
	}
	return allow()
}

// activePlans resolves plan state and applies the fail-open policy: any
// resolution error means no active plan.
func (e *Engine) activePlans() []plan.SubPlan {
	if e.plans == nil {
		return nil
	}
	res := e.plans.Resolve()
	if res.Err != nil {
		e.logger.Debug("engine: plan state unavailable; treating as no active plan",
			"root", res.Root,
			"error", res.Err,
		)
		return nil
	}
	for _, p := range res.Plans {
		if p.Err != nil {
			e.logger.Warn("engine: skipping unreadable sub-plan",
				"plan", p.Name,
				"error", p.Err,
			)
		}
	}
	return res.Active()
}

func (e *Engine) workPlanMessage() string {
	return fmt.Sprintf(
		"[work-plan] Source change blocked: no active work plan. Create %s/{task-name}/ with %s first, "+
			"and list the remaining steps in %s as %q items.",
		e.cfg.PlanDir, triad(), plan.DocPlan, plan.UncheckedMarker)
}

func triad() string {
	names := make([]string, 0, len(plan.RequiredDocuments))
	for _, d := range plan.RequiredDocuments {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}
