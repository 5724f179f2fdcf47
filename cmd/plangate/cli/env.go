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
	"os"
	"path/filepath"
	"strings"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/engine"
	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/reminder"
	"github.com/peg/plangate/policies"
)

// Environment variables read by plangate.
const (
	envProjectDir  = "CLAUDE_PROJECT_DIR"
	envReminderDir = "PLANGATE_REMINDER_DIR"
	envAuditDir    = "PLANGATE_AUDIT_DIR"
)

// newLogger returns a text logger on w: warnings by default, debug with
// --verbose. Hook stdout is reserved for the host protocol, so callers
// pass stderr.
func newLogger(opts *rootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveProjectDir picks the project root: --project-dir, then
// $CLAUDE_PROJECT_DIR, then the hook's cwd, then the working directory.
func resolveProjectDir(opts *rootOptions, hint string) string {
	for _, dir := range []string{opts.projectDir, os.Getenv(envProjectDir), hint} {
		if strings.TrimSpace(dir) != "" {
			return filepath.Clean(dir)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return ""
}

// configPath returns the config file for a project.
func configPath(opts *rootOptions, projectDir string) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	if projectDir == "" {
		return policies.DefaultFile
	}
	return filepath.Join(projectDir, policies.DefaultFile)
}

// loadConfig loads the project configuration layered over the defaults.
func loadConfig(opts *rootOptions, projectDir string) (*engine.Config, string, error) {
	path := configPath(opts, projectDir)
	cfg, err := engine.NewFileStore(path).Load()
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// reminderDir resolves the marker directory: $PLANGATE_REMINDER_DIR wins
// over the configured dir. Empty means the store default.
func reminderDir(cfg *engine.Config) string {
	if dir := strings.TrimSpace(os.Getenv(envReminderDir)); dir != "" {
		return dir
	}
	return cfg.Reminders.Dir
}

// resolveAuditDir resolves the audit directory: flag, then
// $PLANGATE_AUDIT_DIR, then ~/.plangate/audit.
func resolveAuditDir(flag string) (string, error) {
	dir := strings.TrimSpace(flag)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envAuditDir))
	}
	if dir == "" {
		return audit.DefaultDir(), nil
	}
	expanded, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// newEngine wires an engine over the project's plan tree and the
// file-backed reminder store.
func newEngine(cfg *engine.Config, projectDir string, logger *slog.Logger) *engine.Engine {
	plans := plan.NewResolver(cfg.PlanRoot(projectDir))
	markers := reminder.NewFileStore(reminderDir(cfg), logger)
	return engine.New(cfg, plans, markers, logger)
}

func expandHome(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("cli: path is empty")
	}
	if !strings.HasPrefix(trimmed, "~/") && trimmed != "~" {
		return trimmed, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: resolve home directory: %w", err)
	}
	if strings.TrimSpace(home) == "" {
		return "", fmt.Errorf("cli: home directory is empty")
	}
	if trimmed == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~/")), nil
}
