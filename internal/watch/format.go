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

package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peg/plangate/internal/audit"
)

const maxSummaryWidth = 80

// Styles holds the lipgloss styles used for rendering. The zero value
// renders plain text.
type Styles struct {
	Header lipgloss.Style
	Allow  lipgloss.Style
	Block  lipgloss.Style
	Warn   lipgloss.Style
	Muted  lipgloss.Style
	Active lipgloss.Style
}

// NewStyles returns the colored styles, or plain ones when color is off.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{Header: plain, Allow: plain, Block: plain, Warn: plain, Muted: plain, Active: plain}
	}
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Allow:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Block:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Active: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	}
}

func (s Styles) forAction(action string) lipgloss.Style {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "allow":
		return s.Allow
	case "block":
		return s.Block
	case "warn":
		return s.Warn
	default:
		return s.Muted
	}
}

// RequestSummary returns the most descriptive target of an audited request.
func RequestSummary(event audit.Event) string {
	if event.Request == nil {
		return ""
	}
	for _, key := range []string{"command", "path", "subject"} {
		if v, ok := event.Request[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if paths, ok := event.Request["paths"].([]any); ok && len(paths) > 0 {
		if first, ok := paths[0].(string); ok {
			if len(paths) > 1 {
				return fmt.Sprintf("%s (+%d)", first, len(paths)-1)
			}
			return first
		}
	}
	return ""
}

func decisionIcon(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "allow":
		return "✅"
	case "block":
		return "\U0001f534"
	case "warn":
		return "\U0001f7e1"
	default:
		return "•"
	}
}

func firstGate(event audit.Event) string {
	if len(event.Decision.Gates) == 0 {
		return "-"
	}
	return strings.Join(event.Decision.Gates, ",")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

func compactPath(path string, width int) string {
	path = strings.TrimSpace(path)
	if width <= 0 || path == "" {
		return ""
	}
	if len([]rune(path)) <= width {
		return path
	}

	base := filepath.Base(path)
	if len([]rune(base))+3 <= width {
		return "..." + string(filepath.Separator) + base
	}

	return truncateRunes(path, width)
}

// relativeTime formats the elapsed time as a human-readable string.
func relativeTime(now, ts time.Time) string {
	d := now.Sub(ts)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm ago", h, m)
		}
		return fmt.Sprintf("%dh ago", h)
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatEvent renders one audit event as a single line no wider than
// width runes.
func FormatEvent(event audit.Event, width int) string {
	timePart := event.Timestamp.Local().Format("15:04:05")
	toolPart := truncateRunes(strings.TrimSpace(event.Tool), 8)
	if toolPart == "" {
		toolPart = "-"
	}

	summary := RequestSummary(event)
	if event.Kind == "edit" || event.Kind == "write" {
		summary = compactPath(summary, min(maxSummaryWidth, max(20, width/2)))
	}
	if summary == "" {
		summary = "-"
	}
	summary = truncateRunes(summary, maxSummaryWidth)

	base := fmt.Sprintf("%s %s %-6s %-5s %q [%s]",
		decisionIcon(event.Decision.Action), timePart, toolPart,
		event.Decision.Action, summary, firstGate(event))
	return truncateRunes(base, width)
}

// FormatSnapshot renders the plan tree state, one line per sub-plan.
func FormatSnapshot(snap PlanSnapshot, styles Styles, now time.Time) string {
	var b strings.Builder
	root := snap.Result.Root
	if root == "" {
		root = "(unset)"
	}
	b.WriteString(styles.Header.Render("plans: " + root))
	b.WriteString("\n")

	if snap.Result.Err != nil {
		b.WriteString("  " + styles.Muted.Render("no plan tree: "+snap.Result.Err.Error()) + "\n")
		return b.String()
	}
	if len(snap.Result.Plans) == 0 {
		b.WriteString("  " + styles.Muted.Render("no sub-plans") + "\n")
		return b.String()
	}

	for _, p := range snap.Result.Plans {
		var state string
		switch {
		case p.Err != nil:
			state = styles.Block.Render("unreadable")
		case !p.IsValid():
			missing := make([]string, 0, 3)
			for _, d := range p.Missing() {
				missing = append(missing, string(d))
			}
			state = styles.Warn.Render("incomplete, missing " + strings.Join(missing, ", "))
		case p.IsActive():
			state = styles.Active.Render("active")
		default:
			state = styles.Allow.Render("done")
		}

		line := fmt.Sprintf("  %-24s %s", truncateRunes(p.Name, 24), state)
		if prog, ok := snap.Progress[p.Name]; ok && prog.Total > 0 {
			line += fmt.Sprintf("  %d/%d (%d%%)", prog.Done, prog.Total, prog.Percent())
		}
		if !p.UpdatedAt.IsZero() {
			line += "  " + styles.Muted.Render("updated "+relativeTime(now, p.UpdatedAt))
		}
		b.WriteString(line + "\n")

		if prog, ok := snap.Progress[p.Name]; ok && p.IsActive() && len(prog.Open) > 0 {
			b.WriteString("    " + styles.Muted.Render("next: "+truncateRunes(prog.Open[0], maxSummaryWidth)) + "\n")
		}
	}
	return b.String()
}
