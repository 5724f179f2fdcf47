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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
)

func newSetupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Set up plangate integrations with AI agents",
	}

	cmd.AddCommand(newSetupClaudeCodeCmd(opts))

	return cmd
}

// claudeSettings represents the Claude Code settings.json structure.
// A flexible map preserves settings plangate does not know about.
type claudeSettings map[string]any

// hookMatcher is one matcher entry plangate installs under a hook event.
type hookMatcher struct {
	event   string
	matcher string
}

// hookMatchers lists the matchers plangate installs. Edits and shell
// commands are gated before they run. Task events are checked after the
// task tool ran, so a block reaches the agent as a reminder and never
// stops the task change itself.
var hookMatchers = []hookMatcher{
	{event: "PreToolUse", matcher: "Edit|MultiEdit|Write|NotebookEdit"},
	{event: "PreToolUse", matcher: "Bash"},
	{event: "PostToolUse", matcher: "TaskCreate|TaskUpdate"},
}

// hookEvents returns the distinct events of hookMatchers in order.
func hookEvents() []string {
	var events []string
	seen := map[string]bool{}
	for _, m := range hookMatchers {
		if !seen[m.event] {
			seen[m.event] = true
			events = append(events, m.event)
		}
	}
	return events
}

const defaultHookCommand = "plangate hook"

func newSetupClaudeCodeCmd(opts *rootOptions) *cobra.Command {
	var force bool
	var remove bool
	var global bool
	var hookCommand string

	cmd := &cobra.Command{
		Use:   "claude-code",
		Short: "Install the plangate hook into Claude Code settings",
		Long: `Adds hooks to .claude/settings.json in the project that route file edits
and shell commands (PreToolUse) and task events (PostToolUse) through
plangate.

Comments and trailing commas in an existing settings file are accepted.
Safe to run multiple times: hooks are not duplicated and other settings
are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settingsPath, err := claudeSettingsPath(opts, global)
			if err != nil {
				return err
			}

			settings, err := readClaudeSettings(settingsPath)
			if err != nil {
				if !force {
					return fmt.Errorf("setup: %w (use --force to overwrite)", err)
				}
				settings = make(claudeSettings)
			}

			if remove {
				removed := removePlangateHooks(settings)
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No plangate hooks found.")
					return nil
				}
				if err := writeClaudeSettings(settingsPath, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d plangate hook(s) from %s\n", removed, settingsPath)
				return nil
			}

			if hasPlangateHook(settings) && !force {
				if plangateHooksCurrent(settings) {
					fmt.Fprintln(cmd.OutOrStdout(), "plangate hook already configured in Claude Code settings.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Updating plangate hooks to the current layout.")
			}

			installPlangateHooks(settings, hookCommand)
			if err := writeClaudeSettings(settingsPath, settings); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ plangate hook installed in %s\n", settingsPath)
			fmt.Fprintln(cmd.OutOrStdout(), "  Edits, shell commands and task events now pass through plangate.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Run 'plangate init' to write a project config.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reinstall hooks and overwrite an unparseable settings file")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove plangate hooks")
	cmd.Flags().BoolVar(&global, "global", false, "Use ~/.claude/settings.json instead of the project settings")
	cmd.Flags().StringVar(&hookCommand, "command", defaultHookCommand, "Hook command to install")
	return cmd
}

func claudeSettingsPath(opts *rootOptions, global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("setup: resolve home: %w", err)
		}
		return filepath.Join(home, ".claude", "settings.json"), nil
	}
	return filepath.Join(resolveProjectDir(opts, ""), ".claude", "settings.json"), nil
}

// readClaudeSettings loads settings.json. A missing file yields empty
// settings.
func readClaudeSettings(path string) (claudeSettings, error) {
	settings := make(claudeSettings)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return nil, fmt.Errorf("existing %s has invalid JSON: %w", path, err)
	}
	return settings, nil
}

func writeClaudeSettings(path string, settings claudeSettings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("setup: create .claude dir: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("setup: marshal settings: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("setup: write settings: %w", err)
	}
	return nil
}

// installPlangateHooks replaces any plangate matchers with the current set.
func installPlangateHooks(settings claudeSettings, command string) {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		hooks = make(map[string]any)
	}
	removeFromEvents(hooks)

	for _, m := range hookMatchers {
		entries, _ := hooks[m.event].([]any)
		hooks[m.event] = append(entries, map[string]any{
			"matcher": m.matcher,
			"hooks": []any{map[string]any{
				"type":    "command",
				"command": command,
			}},
		})
	}
	settings["hooks"] = hooks
}

// removePlangateHooks drops plangate matchers and returns how many were
// removed. Empty hook sections are removed too.
func removePlangateHooks(settings claudeSettings) int {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		return 0
	}
	removed := removeFromEvents(hooks)
	if len(hooks) == 0 {
		delete(settings, "hooks")
	}
	return removed
}

// removeFromEvents drops plangate matchers from every event plangate
// installs into. Events left empty are deleted.
func removeFromEvents(hooks map[string]any) int {
	removed := 0
	for _, event := range hookEvents() {
		existing, ok := hooks[event].([]any)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(existing))
		for _, h := range existing {
			if m, ok := h.(map[string]any); ok && hasPlangateInMatcher(m) {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(hooks, event)
		} else {
			hooks[event] = kept
		}
	}
	return removed
}

func hasPlangateHook(settings claudeSettings) bool {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		return false
	}
	for _, event := range hookEvents() {
		entries, _ := hooks[event].([]any)
		for _, h := range entries {
			if m, ok := h.(map[string]any); ok && hasPlangateInMatcher(m) {
				return true
			}
		}
	}
	return false
}

// plangateHooksCurrent reports whether every plangate matcher sits under
// the event hookMatchers names for it, with no extras.
func plangateHooksCurrent(settings claudeSettings) bool {
	hooks, _ := settings["hooks"].(map[string]any)
	want := make(map[hookMatcher]int, len(hookMatchers))
	for _, m := range hookMatchers {
		want[m]++
	}
	for _, event := range hookEvents() {
		entries, _ := hooks[event].([]any)
		for _, h := range entries {
			m, ok := h.(map[string]any)
			if !ok || !hasPlangateInMatcher(m) {
				continue
			}
			matcher, _ := m["matcher"].(string)
			key := hookMatcher{event: event, matcher: matcher}
			if want[key] == 0 {
				return false
			}
			want[key]--
		}
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}

func hasPlangateInMatcher(matcher map[string]any) bool {
	hooks, ok := matcher["hooks"].([]any)
	if !ok {
		return false
	}
	for _, h := range hooks {
		if m, ok := h.(map[string]any); ok {
			if cmd, ok := m["command"].(string); ok && isPlangateCommand(cmd) {
				return true
			}
		}
	}
	return false
}

// isPlangateCommand matches "plangate hook" with or without a path or
// trailing arguments.
func isPlangateCommand(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) < 2 {
		return false
	}
	return filepath.Base(fields[0]) == "plangate" && fields[1] == "hook"
}
