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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/peg/plangate/internal/engine"
	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/reminder"
	"github.com/peg/plangate/internal/watch"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	tool        string
	session     string
	description string
	status      string
	gates       []string
	noColor     bool
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	co := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <command-or-path>",
		Short: "Dry-run a request through the gates without recording anything",
		Long: `Evaluate one request against the project's configuration and plan tree
and print the decision. Reminder markers are neither read nor written, so
a layer reminder always shows as if it were the first of the session.

By default the argument is a shell command. Use --tool to pick another
request type; for Edit and Write the argument is a file path, for
TaskCreate and TaskUpdate it is the task subject.

Examples:
  plangate check "git reset --hard"
  plangate check --tool Edit src/main/kotlin/App.kt
  plangate check --tool TaskUpdate --status completed "add login"

Exit code: 1 if the request would be blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), opts, co, args[0])
		},
	}

	cmd.Flags().StringVar(&co.tool, "tool", "Bash", "Tool name (Bash, Edit, Write, TaskCreate, TaskUpdate) or request kind")
	cmd.Flags().StringVar(&co.session, "session", "check", "Session id")
	cmd.Flags().StringVar(&co.description, "description", "", "Task description")
	cmd.Flags().StringVar(&co.status, "status", "", "Task status for TaskUpdate")
	cmd.Flags().StringSliceVar(&co.gates, "gate", nil, "Run only these gates (repeatable)")
	cmd.Flags().BoolVar(&co.noColor, "no-color", false, "Disable color output")

	return cmd
}

// buildCheckRequest maps the check arguments to an engine request.
func buildCheckRequest(co *checkOptions, arg string) (engine.Request, error) {
	kind, err := engine.ParseKind(co.tool)
	if err != nil {
		if kind = engine.KindForTool(co.tool); kind == engine.KindOther {
			return engine.Request{}, fmt.Errorf("check: unknown tool %q", co.tool)
		}
	}

	req := engine.Request{Kind: kind, Tool: co.tool, Session: co.session}
	switch {
	case kind.IsFileChange():
		req.Path = arg
	case kind == engine.KindShell:
		req.Command = arg
	default:
		req.Task = engine.TaskFields{Subject: arg, Description: co.description, Status: co.status}
	}
	return req, nil
}

func runCheck(w io.Writer, opts *rootOptions, co *checkOptions, arg string) error {
	req, err := buildCheckRequest(co, arg)
	if err != nil {
		return err
	}

	gates := make([]engine.Gate, 0, len(co.gates))
	for _, name := range co.gates {
		g, err := engine.ParseGate(strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		gates = append(gates, g)
	}

	projectDir := resolveProjectDir(opts, "")
	cfg, _, err := loadConfig(opts, projectDir)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		logger = newLogger(opts, w)
	}
	eng := engine.New(cfg, plan.NewResolver(cfg.PlanRoot(projectDir)), reminder.NewMemoryStore(), logger)
	d := eng.Evaluate(req, gates...)

	printDecision(w, d, outputStyles(co.noColor))

	if d.Blocked() {
		return exitCodeError{code: 1}
	}
	return nil
}

func printDecision(w io.Writer, d engine.Decision, styles watch.Styles) {
	var icon, label string
	switch d.Action {
	case engine.ActionBlock:
		icon, label = "\U0001f6d1", styles.Block.Render("BLOCK")
	case engine.ActionWarn:
		icon, label = "⚠️", styles.Warn.Render("WARN")
	default:
		icon, label = "✅", styles.Allow.Render("ALLOW")
	}

	fmt.Fprintf(w, "%s %s\n", icon, label)
	if d.Message != "" {
		for _, line := range strings.Split(d.Message, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
	if len(d.Gates) > 0 {
		fmt.Fprintf(w, "   Gates: %s\n", strings.Join(d.Gates, ", "))
	}
	fmt.Fprintf(w, "   Eval: %s\n", formatDuration(d.EvalDuration))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
