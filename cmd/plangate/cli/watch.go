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
	"os/signal"
	"syscall"

	"github.com/peg/plangate/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		auditDir string
		action   string
		tool     string
		session  string
		history  bool
		noPlans  bool
		noColorF bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow gate decisions and plan progress live",
		Long: `Print gate decisions as hooks record them, and the state of the plan
tree whenever a sub-plan is created, completed or edited. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveAuditDir(auditDir)
			if err != nil {
				return err
			}

			planRoot := ""
			if !noPlans {
				projectDir := resolveProjectDir(opts, "")
				cfg, path, err := loadConfig(opts, projectDir)
				if err != nil {
					return fmt.Errorf("watch: load config %s: %w", path, err)
				}
				planRoot = cfg.PlanRoot(projectDir)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := watch.Run(ctx, watch.Config{
				AuditDir: dir,
				PlanRoot: planRoot,
				Action:   action,
				Tool:     tool,
				Session:  session,
				History:  history,
				Color:    useColor(noColorF),
				Out:      cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&auditDir, "audit-dir", "", "Directory containing audit JSONL files (default: $PLANGATE_AUDIT_DIR or ~/.plangate/audit)")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action (allow, block, warn)")
	cmd.Flags().StringVar(&tool, "tool", "", "Filter by tool name (e.g. Edit, Bash)")
	cmd.Flags().StringVar(&session, "session", "", "Filter by session id")
	cmd.Flags().BoolVar(&history, "history", false, "Replay today's events before following")
	cmd.Flags().BoolVar(&noPlans, "no-plans", false, "Do not follow the plan tree")
	cmd.Flags().BoolVar(&noColorF, "no-color", false, "Disable colored output")

	return cmd
}
