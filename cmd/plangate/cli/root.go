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

// Package cli contains the plangate command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	projectDir string
	verbose    bool
}

// exitCodeError carries a process exit code without printing anything.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode implements the interface picked up by ExitCode.
func (e exitCodeError) ExitCode() int {
	return e.code
}

// Execute runs the plangate CLI command tree.
func Execute() error {
	cmd := NewRootCmd(context.Background(), os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		var ec interface{ ExitCode() int }
		if !errors.As(err, &ec) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		return err
	}
	return nil
}

// ExitCode returns the process exit code implied by err.
// Non-nil errors default to exit code 1 unless they expose ExitCode().
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		code := ec.ExitCode()
		if code > 0 {
			return code
		}
	}

	return 1
}

// NewRootCmd builds the plangate root command.
func NewRootCmd(ctx context.Context, outWriter, errWriter io.Writer) *cobra.Command {
	opts := &rootOptions{}
	var showVersion bool
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := &cobra.Command{
		Use:           "plangate",
		Short:         "Work-plan and safety gate for AI coding agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				return writeVersion(cmd.OutOrStdout())
			}
			return cmd.Help()
		},
	}
	cmd.SetContext(ctx)
	cmd.SetOut(outWriter)
	cmd.SetErr(errWriter)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: <project>/.plangate.yaml)")
	cmd.PersistentFlags().StringVar(&opts.projectDir, "project-dir", "", "Project root (default: $CLAUDE_PROJECT_DIR, then the working directory)")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&showVersion, "version", false, "Print version information and exit")

	const (
		groupSetup  = "setup"
		groupConfig = "config"
		groupPlans  = "plans"
		groupAudit  = "audit"
		groupHooks  = "hooks"
	)
	cmd.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup"},
		&cobra.Group{ID: groupConfig, Title: "Configuration"},
		&cobra.Group{ID: groupPlans, Title: "Plans"},
		&cobra.Group{ID: groupAudit, Title: "Audit"},
		&cobra.Group{ID: groupHooks, Title: "Hooks"},
	)

	versionCmd := newVersionCmd()
	initCmd := newInitCmd(opts)
	setupCmd := newSetupCmd(opts)
	lintCmd := newLintCmd(opts)
	testCmd := newTestCmd(opts)
	checkCmd := newCheckCmd(opts)
	statusCmd := newStatusCmd(opts)
	watchCmd := newWatchCmd(opts)
	logCmd := newLogCmd(opts)
	metricsCmd := newMetricsCmd(opts)
	reportCmd := newReportCmd(opts)
	hookCmd := newHookCmd(opts)

	initCmd.GroupID = groupSetup
	setupCmd.GroupID = groupSetup

	lintCmd.GroupID = groupConfig
	testCmd.GroupID = groupConfig
	checkCmd.GroupID = groupConfig

	statusCmd.GroupID = groupPlans
	watchCmd.GroupID = groupPlans

	logCmd.GroupID = groupAudit
	metricsCmd.GroupID = groupAudit
	reportCmd.GroupID = groupAudit

	hookCmd.GroupID = groupHooks

	cmd.AddCommand(versionCmd)
	cmd.AddCommand(initCmd)
	cmd.AddCommand(setupCmd)
	cmd.AddCommand(lintCmd)
	cmd.AddCommand(testCmd)
	cmd.AddCommand(checkCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(watchCmd)
	cmd.AddCommand(logCmd)
	cmd.AddCommand(metricsCmd)
	cmd.AddCommand(reportCmd)
	cmd.AddCommand(hookCmd)

	return cmd
}
