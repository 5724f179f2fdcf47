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

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/peg/plangate/internal/audit"
)

func sampleEvents(now time.Time) []audit.Event {
	return []audit.Event{
		{
			ID:        "01EXAMPLE001",
			Timestamp: now.Add(-1 * time.Hour),
			Session:   "s1",
			Tool:      "Edit",
			Kind:      "edit",
			Request:   map[string]any{"path": "src/main/kotlin/Order.kt"},
			Decision:  audit.EventDecision{Action: "allow", EvalTimeUS: 50},
		},
		{
			ID:        "01EXAMPLE002",
			Timestamp: now.Add(-30 * time.Minute),
			Session:   "s1",
			Tool:      "Bash",
			Kind:      "shell",
			Request:   map[string]any{"command": "git push --force origin main"},
			Decision:  audit.EventDecision{Action: "block", Gates: []string{"dangerous"}, Message: "force push is not allowed", EvalTimeUS: 30},
		},
		{
			ID:        "01EXAMPLE003",
			Timestamp: now.Add(-10 * time.Minute),
			Session:   "s2",
			Tool:      "Write",
			Kind:      "write",
			Mode:      "monitor",
			Request:   map[string]any{"path": "src/main/kotlin/Cart.kt"},
			Decision:  audit.EventDecision{Action: "warn", Verdict: "block", Gates: []string{"work-plan"}, Message: "no active work plan", EvalTimeUS: 20},
		},
	}
}

func TestGenerateHTMLReport_Basic(t *testing.T) {
	now := time.Now().UTC()

	var buf bytes.Buffer
	if err := GenerateHTMLReport(sampleEvents(now), now.Add(-2*time.Hour), now, &buf); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"plangate audit report",
		"2 session(s)",
		"git push --force origin main",
		"decision-block",
		"decision-warn",
		"(block)",
		"work-plan",
		"Most Blocked",
		"Gates Fired",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestGenerateHTMLReport_EmptyEvents(t *testing.T) {
	var buf bytes.Buffer
	now := time.Now().UTC()
	if err := GenerateHTMLReport(nil, now.Add(-24*time.Hour), now, &buf); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("should produce valid HTML even with no events")
	}
	if strings.Contains(html, "Most Blocked") {
		t.Error("empty report should not have a blocked table")
	}
}

func TestGenerateHTMLReport_EscapesContent(t *testing.T) {
	now := time.Now().UTC()
	events := []audit.Event{{
		Timestamp: now,
		Tool:      "Bash",
		Request:   map[string]any{"command": "echo <script>alert(1)</script>"},
		Decision:  audit.EventDecision{Action: "block", Gates: []string{"dangerous"}},
	}}

	var buf bytes.Buffer
	if err := GenerateHTMLReport(events, now.Add(-time.Hour), now, &buf); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("request content must be escaped")
	}
}

func TestPrepareReportData(t *testing.T) {
	now := time.Now().UTC()
	data := prepareReportData(sampleEvents(now), now.Add(-2*time.Hour), now, now)

	if data.TotalEvents != 3 || data.AllowedEvents != 1 || data.BlockedEvents != 1 || data.WarnedEvents != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 3/1/1/1",
			data.TotalEvents, data.AllowedEvents, data.BlockedEvents, data.WarnedEvents)
	}
	if data.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", data.Sessions)
	}
	if len(data.TopBlocked) != 1 || data.TopBlocked[0].Target != "git push --force origin main" {
		t.Errorf("TopBlocked = %+v", data.TopBlocked)
	}
	if len(data.TopGates) != 2 {
		t.Errorf("TopGates = %+v, want 2 entries", data.TopGates)
	}
	if len(data.Events) != 3 || data.Events[2].Verdict != "block" {
		t.Errorf("Events = %+v", data.Events)
	}
}

func TestFilterEventsByTime(t *testing.T) {
	now := time.Now().UTC()
	events := []audit.Event{
		{Timestamp: now.Add(-48 * time.Hour)},
		{Timestamp: now.Add(-12 * time.Hour)},
		{Timestamp: now.Add(-1 * time.Hour)},
	}

	filtered := FilterEventsByTime(events, now.Add(-24*time.Hour))
	if len(filtered) != 2 {
		t.Errorf("expected 2 events within 24h, got %d", len(filtered))
	}
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int{
		"rm -rf build":     5,
		"git reset --hard": 3,
		"a":                3,
		"ls":               1,
	}
	top := topCounts(counts)
	if len(top) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(top))
	}
	if top[0].key != "rm -rf build" || top[0].count != 5 {
		t.Errorf("first = %+v, want rm -rf build/5", top[0])
	}
	if top[1].key != "a" {
		t.Errorf("ties should sort by key, got %q", top[1].key)
	}

	many := make(map[string]int)
	for i := 0; i < 25; i++ {
		many[string(rune('a'+i))] = i
	}
	if got := len(topCounts(many)); got != topN {
		t.Errorf("len = %d, want %d", got, topN)
	}
}

func TestPrepareTimeline(t *testing.T) {
	timeline := prepareTimeline(map[string]map[string]int{
		"2026-10-18 10:00": {"allow": 2, "block": 2},
		"2026-10-18 09:00": {"allow": 1},
	})
	if len(timeline) != 2 || timeline[0].Hour != "2026-10-18 09:00" {
		t.Fatalf("timeline = %+v", timeline)
	}
	if timeline[1].MaxWidth != 100 || timeline[0].MaxWidth != 25 {
		t.Errorf("widths = %d, %d; want 25, 100", timeline[0].MaxWidth, timeline[1].MaxWidth)
	}
}
