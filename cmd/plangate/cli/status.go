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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/watch"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var auditDir string
	var noColorF bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show hook installation, plan progress and today's decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveAuditDir(auditDir)
			if err != nil {
				return err
			}
			return runStatus(cmd.OutOrStdout(), opts, dir, outputStyles(noColorF))
		},
	}

	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory containing audit JSONL files (default: $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")
	cmd.Flags().BoolVar(&noColorF, "no-color", false, "Disable colored output")

	return cmd
}

func runStatus(w io.Writer, opts *rootOptions, auditDir string, styles watch.Styles) error {
	projectDir := resolveProjectDir(opts, "")
	fmt.Fprintln(w, styles.Header.Render("plangate status"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Project: %s\n", projectDir)

	cfg, path, err := loadConfig(opts, projectDir)
	if err != nil {
		fmt.Fprintf(w, "Config:  %s\n", styles.Block.Render("invalid: "+err.Error()))
		return nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Fprintf(w, "Config:  %s\n", path)
	} else {
		fmt.Fprintf(w, "Config:  built-in defaults (%s not found)\n", path)
	}

	hooks := installedHooks(opts)
	if len(hooks) == 0 {
		fmt.Fprintf(w, "Hook:    %s\n", styles.Warn.Render("not installed (run 'plangate setup claude-code')"))
	} else {
		fmt.Fprintf(w, "Hook:    %s\n", strings.Join(hooks, ", "))
	}
	fmt.Fprintln(w)

	snap := watch.TakeSnapshot(plan.NewResolver(cfg.PlanRoot(projectDir)))
	fmt.Fprint(w, watch.FormatSnapshot(snap, styles, time.Now()))
	if active := snap.Result.Active(); len(active) == 0 {
		fmt.Fprintln(w, styles.Warn.Render("No active work plan: source changes are blocked."))
	}
	fmt.Fprintln(w)

	allow, block, warn, lastBlock := todayEvents(auditDir)
	fmt.Fprintf(w, "Today: %s · %s · %s\n",
		styles.Allow.Render(fmt.Sprintf("%d allow", allow)),
		styles.Block.Render(fmt.Sprintf("%d block", block)),
		styles.Warn.Render(fmt.Sprintf("%d warn", warn)),
	)
	if lastBlock != nil {
		gate := "unknown"
		if len(lastBlock.Decision.Gates) > 0 {
			gate = lastBlock.Decision.Gates[0]
		}
		fmt.Fprintf(w, "Last block: %s, %s (%s)\n", formatAgo(time.Since(lastBlock.Timestamp)), truncate(watch.RequestSummary(*lastBlock), 60), gate)
	}
	return nil
}

// installedHooks lists the settings files that carry a plangate hook.
func installedHooks(opts *rootOptions) []string {
	candidates := []string{filepath.Join(resolveProjectDir(opts, ""), ".claude", "settings.json")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".claude", "settings.json"))
	}

	var found []string
	for _, path := range candidates {
		settings, err := readClaudeSettings(path)
		if err != nil {
			continue
		}
		if hasPlangateHook(settings) {
			found = append(found, path)
		}
	}
	return found
}

func todayEvents(auditDir string) (allow, block, warn int, lastBlock *audit.Event) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	events, err := audit.ReadDir(auditDir, start)
	if err != nil {
		return
	}
	for i := range events {
		ev := &events[i]
		switch ev.Decision.Action {
		case "allow":
			allow++
		case "block":
			block++
			if lastBlock == nil || ev.Timestamp.After(lastBlock.Timestamp) {
				lastBlock = ev
			}
		case "warn":
			warn++
		}
	}
	return
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
