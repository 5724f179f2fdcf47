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

package sdk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peg/plangate/internal/audit"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// setupGate creates a Gate over a temporary project with the default
// configuration and in-memory reminders.
func setupGate(t *testing.T, activePlan bool, opts ...Option) (*Gate, string) {
	t.Helper()

	dir := t.TempDir()
	if activePlan {
		writeFile(t, filepath.Join(dir, "docs/plan/login/plan.md"), "- [ ] implement\n")
		writeFile(t, filepath.Join(dir, "docs/plan/login/context.md"), "context\n")
		writeFile(t, filepath.Join(dir, "docs/plan/login/checklist.md"), "checklist\n")
	}

	g, err := New(dir, append([]Option{WithInMemoryReminders()}, opts...)...)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g, dir
}

func okTool(called *bool) ToolFunc {
	return func(context.Context, map[string]any) (any, error) {
		*called = true
		return "ok", nil
	}
}

func TestWrap_NoPlanBlocksGuardedEdit(t *testing.T) {
	g, _ := setupGate(t, false)

	called := false
	wrapped := g.Wrap("Edit", okTool(&called))

	_, err := wrapped(context.Background(), map[string]any{"file_path": "src/main/kotlin/Order.kt"})
	if err == nil {
		t.Fatal("want err, got nil")
	}
	var blocked *ErrBlocked
	if !errors.As(err, &blocked) {
		t.Fatalf("want ErrBlocked, got %T", err)
	}
	if blocked.Gate != "work-plan" {
		t.Fatalf("gate = %q, want work-plan", blocked.Gate)
	}
	if called {
		t.Fatal("blocked tool must not run")
	}
}

func TestWrap_ActivePlanCallsThrough(t *testing.T) {
	g, _ := setupGate(t, true)

	called := false
	wrapped := g.Wrap("Edit", okTool(&called))

	result, err := wrapped(context.Background(), map[string]any{"file_path": "src/main/kotlin/Order.kt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || !called {
		t.Fatalf("result = %v, called = %v", result, called)
	}
}

func TestWrap_ExemptPathAndUnknownTool(t *testing.T) {
	g, _ := setupGate(t, false)

	called := false
	if _, err := g.Wrap("Write", okTool(&called))(context.Background(), map[string]any{"file_path": "README.md"}); err != nil {
		t.Fatalf("exempt path: %v", err)
	}
	if _, err := g.Wrap("Read", okTool(&called))(context.Background(), map[string]any{"file_path": "src/A.kt"}); err != nil {
		t.Fatalf("unknown tool: %v", err)
	}
	if _, err := g.Wrap("Read", okTool(&called))(context.Background(), nil); err != nil {
		t.Fatalf("nil params: %v", err)
	}
}

func TestWrap_DangerousCommand(t *testing.T) {
	g, _ := setupGate(t, true)

	called := false
	_, err := g.Wrap("Bash", okTool(&called))(context.Background(), map[string]any{"command": "git reset --hard HEAD~1"})
	var blocked *ErrBlocked
	if !errors.As(err, &blocked) {
		t.Fatalf("want ErrBlocked, got %v", err)
	}
	if blocked.Gate != "dangerous" {
		t.Fatalf("gate = %q, want dangerous", blocked.Gate)
	}
	if !strings.Contains(blocked.Error(), `blocked "Bash" by gate "dangerous"`) {
		t.Fatalf("error = %q", blocked.Error())
	}
}

func TestWrap_LayerReminderOncePerSession(t *testing.T) {
	g, _ := setupGate(t, true)

	called := false
	wrapped := g.Wrap("Edit", okTool(&called))
	params := map[string]any{"file_path": "src/main/kotlin/shop/domain/Order.kt"}

	ctx := WithSession(context.Background(), "s1")
	if _, err := wrapped(ctx, params); err == nil {
		t.Fatal("first domain edit should be blocked")
	}
	if _, err := wrapped(ctx, params); err != nil {
		t.Fatalf("second domain edit in the same session: %v", err)
	}
	if _, err := wrapped(WithSession(context.Background(), "s2"), params); err == nil {
		t.Fatal("a new session should be reminded again")
	}
}

func TestPreflight(t *testing.T) {
	g, _ := setupGate(t, false)

	result := g.Preflight(context.Background(), "Bash", map[string]any{"command": "echo hi > src/A.kt"})
	if result.Allowed {
		t.Fatal("redirect into a guarded zone without a plan should not be allowed")
	}
	if result.Action != "block" || len(result.Gates) == 0 {
		t.Fatalf("result = %+v", result)
	}

	result = g.Preflight(context.Background(), "Bash", map[string]any{"command": "ls -la"})
	if !result.Allowed || result.Action != "allow" || result.Message != "" {
		t.Fatalf("result = %+v", result)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Write(e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func TestWrap_RecordsAuditEvents(t *testing.T) {
	sink := &recordingSink{}
	g, _ := setupGate(t, false, WithAuditSink(sink))

	called := false
	_, _ = g.Wrap("Edit", okTool(&called))(WithSession(context.Background(), "s1"), map[string]any{"file_path": "src/A.kt"})
	_, _ = g.Wrap("Read", okTool(&called))(context.Background(), map[string]any{"file_path": "src/A.kt"})

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	e := sink.events[0]
	if e.Session != "s1" || e.Tool != "Edit" || e.Kind != "edit" || e.Decision.Action != "block" {
		t.Fatalf("event = %+v", e)
	}
	if e.Request["path"] != "src/A.kt" {
		t.Fatalf("request = %v", e.Request)
	}
}

func TestNew_AuditDir(t *testing.T) {
	auditDir := filepath.Join(t.TempDir(), "audit")
	g, _ := setupGate(t, false, WithAuditDir(auditDir))

	called := false
	_, _ = g.Wrap("Bash", okTool(&called))(context.Background(), map[string]any{"command": "ls"})

	events, err := audit.ReadDir(auditDir, time.Time{})
	if err != nil {
		t.Fatalf("read audit dir: %v", err)
	}
	if len(events) != 1 || events[0].Request["command"] != "ls" {
		t.Fatalf("events = %+v", events)
	}
}

func TestNew_ConfigOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gate.yaml")
	writeFile(t, cfgPath, "paths:\n  guarded_zones:\n    - lib\n")

	g, err := New(dir, WithConfig(cfgPath), WithReminderDir(filepath.Join(dir, "markers")))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	if r := g.Preflight(context.Background(), "Edit", map[string]any{"file_path": "src/A.kt"}); !r.Allowed {
		t.Fatalf("src is no longer guarded: %+v", r)
	}
	if r := g.Preflight(context.Background(), "Edit", map[string]any{"file_path": "lib/A.kt"}); r.Allowed {
		t.Fatalf("lib should be guarded: %+v", r)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".plangate.yaml"), "paths: [unclosed\n")

	if _, err := New(dir); err == nil {
		t.Fatal("want error for invalid config")
	}
}
