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

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/engine"
	"github.com/spf13/cobra"
)

// blockExitCode is the status Claude Code treats as "reject the tool call
// and show stderr to the agent".
const blockExitCode = 2

// hookInput is the JSON sent by Claude Code on stdin for PreToolUse and
// PostToolUse hooks. Fields plangate does not use (tool_response) are ignored.
type hookInput struct {
	SessionID     string         `json:"session_id"`
	HookEventName string         `json:"hook_event_name"`
	Cwd           string         `json:"cwd"`
	ToolName      string         `json:"tool_name"`
	ToolInput     map[string]any `json:"tool_input"`
}

// hookOutput is the JSON response for warnings: the tool call proceeds and
// the message is added to the agent's context.
type hookOutput struct {
	HookSpecificOutput hookContext `json:"hookSpecificOutput"`
}

type hookContext struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// Enforcement modes.
const (
	modeEnforce = "enforce"
	modeMonitor = "monitor"
	modeAudit   = "audit"
)

func newHookCmd(opts *rootOptions) *cobra.Command {
	var auditDir string
	var mode string
	var noAudit bool

	cmd := &cobra.Command{
		Use:   "hook [gate]",
		Short: "Claude Code hook: reads a tool request on stdin, allows, warns or blocks",
		Long: `Evaluates one tool request from Claude Code.

With no argument every gate runs. Name a gate to run only that one:
  dangerous    destructive shell commands
  work-plan    source changes without an active work plan
  layer-docs   first change to an architectural layer per session
  plan-update  task creation and completion reminders

Exit status 0 allows the request (a warning is written to stdout as
additionalContext). Exit status 2 blocks it; the reason goes to stderr.
Any internal failure allows the request.

Modes:
  enforce  block as configured (default)
  monitor  report blocks as warnings
  audit    always allow, record the verdict

Use "plangate setup claude-code" to install the hook.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != modeEnforce && mode != modeMonitor && mode != modeAudit {
				return fmt.Errorf("hook: invalid mode %q (must be enforce, monitor, or audit)", mode)
			}

			gateName := "all"
			var gates []engine.Gate
			if len(args) == 1 && args[0] != "all" {
				g, err := engine.ParseGate(args[0])
				if err != nil {
					return fmt.Errorf("hook: %w", err)
				}
				gateName = args[0]
				gates = []engine.Gate{g}
			}

			// stdout is reserved for the hook response.
			logger := newLogger(opts, cmd.ErrOrStderr())

			input, err := parseHookInput(cmd.InOrStdin())
			if err != nil {
				logger.Warn("hook: failed to parse input, allowing", "error", err)
				return nil
			}

			req := input.request()
			if req.Kind == engine.KindOther {
				logger.Debug("hook: tool is not gated", "tool", input.ToolName)
				return nil
			}

			projectDir := resolveProjectDir(opts, input.Cwd)
			cfg, path, err := loadConfig(opts, projectDir)
			if err != nil {
				logger.Warn("hook: config unusable, allowing", "config", path, "error", err)
				return nil
			}

			eng := newEngine(cfg, projectDir, logger)
			verdict := eng.Evaluate(req, gates...)
			effective := applyMode(mode, verdict)

			if !noAudit {
				recordHookEvent(auditDir, input, req, gateName, mode, verdict, effective, logger)
			}

			return writeHookResult(cmd, input.eventName(), effective)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeEnforce, "Mode: enforce | monitor | audit")
	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory for audit logs (default: $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "Do not record the decision")

	return cmd
}

// parseHookInput decodes the Claude Code hook payload.
func parseHookInput(r io.Reader) (hookInput, error) {
	var input hookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return hookInput{}, fmt.Errorf("hook: decode input: %w", err)
	}
	if input.ToolInput == nil {
		input.ToolInput = map[string]any{}
	}
	return input, nil
}

func (in hookInput) eventName() string {
	if in.HookEventName == "" {
		return "PreToolUse"
	}
	return in.HookEventName
}

// request builds the engine request from the tool input.
func (in hookInput) request() engine.Request {
	return engine.RequestFromToolInput(in.ToolName, in.SessionID, in.ToolInput)
}

// applyMode turns the engine verdict into the effective decision.
func applyMode(mode string, d engine.Decision) engine.Decision {
	switch mode {
	case modeMonitor:
		if d.Action == engine.ActionBlock {
			d.Action = engine.ActionWarn
		}
	case modeAudit:
		d.Action = engine.ActionAllow
	}
	return d
}

// recordHookEvent appends the decision to the audit trail. Failures are
// logged and never change the decision.
func recordHookEvent(dirFlag string, input hookInput, req engine.Request, gate, mode string, verdict, effective engine.Decision, logger *slog.Logger) {
	dir, err := resolveAuditDir(dirFlag)
	if err != nil {
		logger.Warn("hook: resolve audit dir", "error", err)
		return
	}
	sink, err := audit.NewJSONLSink(dir, audit.WithLogger(logger))
	if err != nil {
		logger.Warn("hook: open audit sink", "error", err)
		return
	}

	decision := audit.EventDecision{
		Action:     effective.Action.String(),
		Gates:      verdict.Gates,
		EvalTimeUS: verdict.EvalDuration.Microseconds(),
		Message:    verdict.Message,
	}
	if verdict.Action != effective.Action {
		decision.Verdict = verdict.Action.String()
	}

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Session:   req.SessionID(),
		HookEvent: input.HookEventName,
		Tool:      req.Tool,
		Kind:      req.Kind.String(),
		Gate:      gate,
		Mode:      mode,
		Request:   req.Target(),
		Decision:  decision,
	}
	if err := sink.Write(event); err != nil {
		logger.Warn("hook: audit write failed", "error", err)
	}
}

// writeHookResult renders the decision in the Claude Code hook protocol.
func writeHookResult(cmd *cobra.Command, eventName string, d engine.Decision) error {
	switch d.Action {
	case engine.ActionBlock:
		fmt.Fprintln(cmd.ErrOrStderr(), strings.TrimRight(d.Message, "\n"))
		return exitCodeError{code: blockExitCode}
	case engine.ActionWarn:
		out := hookOutput{
			HookSpecificOutput: hookContext{
				HookEventName:     eventName,
				AdditionalContext: d.Message,
			},
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	default:
		return nil
	}
}
