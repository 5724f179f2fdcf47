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
	"os"

	"github.com/peg/plangate/internal/engine"
	"github.com/spf13/cobra"
)

func newLintCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file]",
		Short: "Lint a config file for common mistakes",
		Long: `Lint a plangate YAML config for errors, warnings, and suggestions.

Checks for:
  - Invalid YAML syntax and invalid regular expressions
  - Unknown keys (with typo suggestions)
  - Guarded zones that an exemption rule switches off
  - Dangerous rules that match every command or can never fire
  - Layer documents that do not exist

Without an argument the project config is linted.

Exit code: 1 if errors found, 0 if only warnings/info.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(opts, resolveProjectDir(opts, ""))
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}

			result := engine.LintConfigFile(path)

			for _, f := range result.Findings {
				fmt.Fprintln(cmd.OutOrStdout(), f.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary(path))

			if result.HasErrors() {
				return exitCodeError{code: 1}
			}
			return nil
		},
	}
}
