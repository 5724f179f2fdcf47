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
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd(_ *rootOptions) *cobra.Command {
	var (
		since    time.Duration
		output   string
		auditDir string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an HTML report of gate decisions",
		Long: `Generate a self-contained HTML report from the plangate audit trail.

Examples:
  plangate report                         # Last 24 hours to stdout
  plangate report --since 168h -o week.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveAuditDir(auditDir)
			if err != nil {
				return err
			}

			end := time.Now()
			start := end.Add(-since)
			events, err := audit.ReadDir(dir, start)
			if err != nil {
				return fmt.Errorf("cli: read audit trail %s: %w", dir, err)
			}
			events = report.FilterEventsByTime(events, start)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("cli: create report file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := report.GenerateHTMLReport(events, start, end, w); err != nil {
				return fmt.Errorf("cli: generate report: %w", err)
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d event(s) to %s\n", len(events), output)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Report window")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Audit directory (default $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")

	return cmd
}
