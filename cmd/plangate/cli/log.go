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
	"strings"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/watch"
	"github.com/spf13/cobra"
)

type logFilter struct {
	action  string
	gate    string
	session string
}

func (f logFilter) match(e audit.Event) bool {
	if f.action != "" && !strings.EqualFold(e.Decision.Action, f.action) {
		return false
	}
	if f.session != "" && e.Session != f.session {
		return false
	}
	if f.gate != "" {
		found := false
		for _, g := range e.Decision.Gates {
			if g == f.gate {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func newLogCmd(_ *rootOptions) *cobra.Command {
	var (
		count    int
		filter   logFilter
		today    bool
		since    time.Duration
		jsonOut  bool
		auditDir string
		noColorF bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Pretty-print recent gate decisions",
		Long: `Display recent decisions from the plangate audit trail.

Unlike "plangate watch", this prints events and exits.

Examples:
  plangate log                    # Last 20 events
  plangate log -n 50              # Last 50 events
  plangate log --action block     # Only blocks
  plangate log --gate dangerous   # Only decisions from one gate
  plangate log --since 2h         # The last two hours
  plangate log --json             # Raw JSON output (for piping)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveAuditDir(auditDir)
			if err != nil {
				return err
			}

			var from time.Time
			switch {
			case since > 0:
				from = time.Now().Add(-since)
			case today:
				now := time.Now().UTC()
				from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			}

			events, err := audit.ReadDir(dir, from)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}

			filtered := events[:0]
			for _, e := range events {
				if filter.match(e) {
					filtered = append(filtered, e)
				}
			}
			events = filtered

			if count > 0 && len(events) > count {
				events = events[len(events)-count:]
			}

			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
				return nil
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSONEvents(out, events)
			}
			return writePrettyEvents(out, events, outputStyles(noColorF))
		},
	}

	cmd.Flags().IntVarP(&count, "number", "n", 20, "Number of events to display")
	cmd.Flags().StringVar(&filter.action, "action", "", "Show only this action (allow, block, warn)")
	cmd.Flags().StringVar(&filter.gate, "gate", "", "Show only decisions from this gate")
	cmd.Flags().StringVar(&filter.session, "session", "", "Show only this session")
	cmd.Flags().BoolVar(&today, "today", false, "Show only today's events (UTC)")
	cmd.Flags().DurationVar(&since, "since", 0, "Show events newer than this duration")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON lines")
	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory containing audit JSONL files (default: $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")
	cmd.Flags().BoolVar(&noColorF, "no-color", false, "Disable colored output")

	return cmd
}

func writeJSONEvents(w io.Writer, events []audit.Event) error {
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("log: encode event: %w", err)
		}
	}
	return nil
}

func writePrettyEvents(w io.Writer, events []audit.Event, styles watch.Styles) error {
	for _, e := range events {
		if _, err := fmt.Fprintln(w, formatLogLine(e, styles)); err != nil {
			return err
		}
	}
	return nil
}

// formatLogLine produces a single pretty-printed line for a log event.
func formatLogLine(e audit.Event, styles watch.Styles) string {
	ts := e.Timestamp.Local().Format("01-02 15:04:05")
	detail := watch.RequestSummary(e)
	if len(detail) > 45 {
		detail = detail[:42] + "..."
	}

	gates := "-"
	if len(e.Decision.Gates) > 0 {
		gates = strings.Join(e.Decision.Gates, ",")
	}

	action := strings.ToLower(e.Decision.Action)
	var icon string
	switch action {
	case "allow":
		icon = "✅"
	case "block":
		icon = "\U0001f6d1"
	case "warn":
		icon = "⚠️"
	default:
		icon = "•"
	}

	label := fmt.Sprintf("%-5s", action)
	switch action {
	case "allow":
		label = styles.Allow.Render(label)
	case "block":
		label = styles.Block.Render(label)
	case "warn":
		label = styles.Warn.Render(label)
	}

	line := fmt.Sprintf("%s  %s %s  %-6s %-45s %s", ts, icon, label, e.Tool, detail, gates)
	if e.Decision.Verdict != "" {
		line += styles.Muted.Render(" (" + e.Mode + ": " + e.Decision.Verdict + ")")
	}
	return line
}
