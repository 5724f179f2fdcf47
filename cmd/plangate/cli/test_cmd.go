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

	"github.com/peg/plangate/internal/engine"
	"github.com/spf13/cobra"
)

func newTestCmd(opts *rootOptions) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "test <suite.yaml>",
		Short: "Run a suite of gate expectations against a config",
		Long: `Run the cases of a YAML test suite through the gates and compare the
decisions with the expected ones. The plan tree and reminder markers are
simulated: each case states whether an active plan exists, and cases that
share a session share reminders.

Example suite:
  config: .plangate.yaml
  tests:
    - name: source edit without a plan
      tool: Edit
      path: src/main/kotlin/App.kt
      gates: [work-plan]
      expect: block
    - name: force push
      tool: Bash
      command: git push origin main --force
      expect: block
      expect_message: "*overwrites remote history*"

Exit code: 1 if any case fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestSuite(cmd.OutOrStdout(), opts, args[0], noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable color output")

	return cmd
}

func runTestSuite(w io.Writer, opts *rootOptions, path string, disableColor bool) error {
	suite, err := engine.LoadTestSuite(path)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}

	var cfg *engine.Config
	if suite.Config != "" {
		cfg, err = engine.NewFileStore(suite.Config).Load()
	} else {
		cfg, _, err = loadConfig(opts, resolveProjectDir(opts, ""))
	}
	if err != nil {
		return fmt.Errorf("test: load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := engine.RunTests(cfg, suite, logger)
	styles := outputStyles(disableColor)

	failed := 0
	for _, r := range results {
		switch {
		case r.Error != nil:
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", styles.Block.Render("ERROR"), r.Case.Name, r.Error)
		case r.Passed:
			fmt.Fprintf(w, "%s %s\n", styles.Allow.Render("PASS "), r.Case.Name)
			if opts.verbose && r.Decision.Message != "" {
				fmt.Fprintf(w, "      %s\n", r.Decision.Message)
			}
		default:
			failed++
			if r.ExpectedAction == r.Decision.Action {
				fmt.Fprintf(w, "%s %s: message does not match %q\n", styles.Block.Render("FAIL "), r.Case.Name, r.Case.ExpectMessage)
			} else {
				fmt.Fprintf(w, "%s %s: expected %s, got %s\n", styles.Block.Render("FAIL "), r.Case.Name, r.ExpectedAction, r.Decision.Action)
			}
			if r.Decision.Message != "" {
				fmt.Fprintf(w, "      message: %q\n", r.Decision.Message)
			}
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return exitCodeError{code: 1}
	}
	return nil
}
