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

// Package report generates a self-contained HTML report from the gate
// audit trail.
package report

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/peg/plangate/internal/audit"
	"github.com/peg/plangate/internal/watch"
)

// topN bounds the "top" tables.
const topN = 10

// ReportData contains all the data needed to render the HTML report.
type ReportData struct {
	Title          string
	GeneratedAt    time.Time
	StartTime      time.Time
	EndTime        time.Time
	TotalEvents    int
	AllowedEvents  int
	BlockedEvents  int
	WarnedEvents   int
	Sessions       int
	AllowedPercent float64
	BlockedPercent float64
	WarnedPercent  float64
	Timeline       []TimelineEntry
	TopBlocked     []TargetCount
	TopGates       []GateCount
	Events         []ReportEvent
}

// TimelineEntry holds one hour of decisions.
type TimelineEntry struct {
	Hour     string
	Allowed  int
	Blocked  int
	Warned   int
	Total    int
	MaxWidth int // percentage of the busiest hour
}

// TargetCount counts decisions against one request target.
type TargetCount struct {
	Target string
	Count  int
}

// GateCount counts how often a gate fired.
type GateCount struct {
	Gate  string
	Count int
}

// ReportEvent is an event formatted for the event table.
type ReportEvent struct {
	Time     string
	Session  string
	Tool     string
	Target   string
	Decision string
	Verdict  string
	Gates    string
	Message  string
	CSSClass string
}

// GenerateHTMLReport renders events recorded between startTime and endTime
// to w.
func GenerateHTMLReport(events []audit.Event, startTime, endTime time.Time, w io.Writer) error {
	data := prepareReportData(events, startTime, endTime, time.Now())

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("report: execute template: %w", err)
	}
	return nil
}

// FilterEventsByTime keeps the events recorded at or after since.
func FilterEventsByTime(events []audit.Event, since time.Time) []audit.Event {
	var filtered []audit.Event
	for _, e := range events {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func prepareReportData(events []audit.Event, startTime, endTime, now time.Time) *ReportData {
	data := &ReportData{
		Title:       "plangate audit report",
		GeneratedAt: now,
		StartTime:   startTime,
		EndTime:     endTime,
		TotalEvents: len(events),
	}

	blocked := make(map[string]int)
	gates := make(map[string]int)
	timeline := make(map[string]map[string]int)
	sessions := make(map[string]struct{})

	for _, e := range events {
		switch e.Decision.Action {
		case "allow":
			data.AllowedEvents++
		case "block":
			data.BlockedEvents++
			blocked[watch.RequestSummary(e)]++
		case "warn":
			data.WarnedEvents++
		}
		for _, g := range e.Decision.Gates {
			gates[g]++
		}
		if e.Session != "" {
			sessions[e.Session] = struct{}{}
		}

		hour := e.Timestamp.Local().Format("2006-01-02 15:00")
		if timeline[hour] == nil {
			timeline[hour] = make(map[string]int)
		}
		timeline[hour][e.Decision.Action]++
	}
	data.Sessions = len(sessions)

	if data.TotalEvents > 0 {
		total := float64(data.TotalEvents)
		data.AllowedPercent = float64(data.AllowedEvents) / total * 100
		data.BlockedPercent = float64(data.BlockedEvents) / total * 100
		data.WarnedPercent = float64(data.WarnedEvents) / total * 100
	}

	data.Timeline = prepareTimeline(timeline)
	for _, kv := range topCounts(blocked) {
		data.TopBlocked = append(data.TopBlocked, TargetCount{Target: kv.key, Count: kv.count})
	}
	for _, kv := range topCounts(gates) {
		data.TopGates = append(data.TopGates, GateCount{Gate: kv.key, Count: kv.count})
	}
	data.Events = prepareEventList(events)
	return data
}

func prepareTimeline(counts map[string]map[string]int) []TimelineEntry {
	hours := make([]string, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Strings(hours)

	timeline := make([]TimelineEntry, 0, len(hours))
	maxTotal := 0
	for _, h := range hours {
		c := counts[h]
		entry := TimelineEntry{Hour: h, Allowed: c["allow"], Blocked: c["block"], Warned: c["warn"]}
		entry.Total = entry.Allowed + entry.Blocked + entry.Warned
		if entry.Total > maxTotal {
			maxTotal = entry.Total
		}
		timeline = append(timeline, entry)
	}
	for i := range timeline {
		if maxTotal > 0 {
			timeline[i].MaxWidth = timeline[i].Total * 100 / maxTotal
		}
	}
	return timeline
}

type keyCount struct {
	key   string
	count int
}

// topCounts sorts by count descending, then key, and keeps the first topN.
func topCounts(counts map[string]int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keyCount{key: k, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func prepareEventList(events []audit.Event) []ReportEvent {
	out := make([]ReportEvent, 0, len(events))
	for _, e := range events {
		target := watch.RequestSummary(e)
		if r := []rune(target); len(r) > 80 {
			target = string(r[:77]) + "..."
		}
		gates := strings.Join(e.Decision.Gates, ", ")
		if gates == "" {
			gates = "-"
		}
		out = append(out, ReportEvent{
			Time:     e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			Session:  e.Session,
			Tool:     e.Tool,
			Target:   target,
			Decision: e.Decision.Action,
			Verdict:  e.Decision.Verdict,
			Gates:    gates,
			Message:  e.Decision.Message,
			CSSClass: "decision-" + e.Decision.Action,
		})
	}
	return out
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
            background-color: #0d1117;
            color: #c9d1d9;
            line-height: 1.5;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        .header, .section, .card { background-color: #161b22; border-radius: 8px; padding: 20px; }
        .header { text-align: center; margin-bottom: 30px; }
        .header h1 { font-size: 2em; margin-bottom: 10px; }
        .meta, .card-label, .card-percent, .timeline-hour, .timeline-counts { color: #7d8590; font-size: 0.9em; }
        .summary {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }
        .card { text-align: center; border-left: 4px solid #21262d; }
        .card.total { border-left-color: #58a6ff; }
        .card.allow { border-left-color: #3fb950; }
        .card.block { border-left-color: #f85149; }
        .card.warn { border-left-color: #d29922; }
        .card-number { font-size: 2em; font-weight: bold; }
        .section { margin-bottom: 30px; }
        .section h2 { margin-bottom: 20px; font-size: 1.3em; }
        .timeline-entry { margin-bottom: 8px; }
        .timeline-bar { height: 20px; border-radius: 3px; overflow: hidden; display: flex; }
        .bar-allow { background-color: #3fb950; }
        .bar-block { background-color: #f85149; }
        .bar-warn { background-color: #d29922; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 8px 12px; text-align: left; border-bottom: 1px solid #21262d; }
        th { background-color: #21262d; font-weight: 600; cursor: pointer; user-select: none; }
        tr:hover { background-color: #21262d; }
        .target { font-family: "SF Mono", Monaco, Consolas, monospace; font-size: 0.85em; }
        .decision { padding: 2px 6px; border-radius: 3px; font-size: 0.8em; color: white; }
        .decision-allow { background-color: #238636; }
        .decision-block { background-color: #da3633; }
        .decision-warn { background-color: #bf8700; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <div class="meta">
                {{.StartTime.Format "2006-01-02 15:04"}} to {{.EndTime.Format "2006-01-02 15:04"}}
                <br>
                Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} · {{.Sessions}} session(s)
            </div>
        </div>

        <div class="summary">
            <div class="card total">
                <div class="card-number">{{.TotalEvents}}</div>
                <div class="card-label">Decisions</div>
            </div>
            <div class="card allow">
                <div class="card-number">{{.AllowedEvents}}</div>
                <div class="card-label">Allowed</div>
                <div class="card-percent">{{printf "%.1f%%" .AllowedPercent}}</div>
            </div>
            <div class="card block">
                <div class="card-number">{{.BlockedEvents}}</div>
                <div class="card-label">Blocked</div>
                <div class="card-percent">{{printf "%.1f%%" .BlockedPercent}}</div>
            </div>
            <div class="card warn">
                <div class="card-number">{{.WarnedEvents}}</div>
                <div class="card-label">Warned</div>
                <div class="card-percent">{{printf "%.1f%%" .WarnedPercent}}</div>
            </div>
        </div>

        {{if .Timeline}}
        <div class="section">
            <h2>Timeline</h2>
            {{range .Timeline}}
            <div class="timeline-entry">
                <div class="timeline-hour">{{.Hour}}</div>
                <div class="timeline-bar" style="width: {{.MaxWidth}}%;">
                    {{if .Allowed}}<div class="bar-allow" style="flex: {{.Allowed}};"></div>{{end}}
                    {{if .Blocked}}<div class="bar-block" style="flex: {{.Blocked}};"></div>{{end}}
                    {{if .Warned}}<div class="bar-warn" style="flex: {{.Warned}};"></div>{{end}}
                </div>
                <div class="timeline-counts">allow {{.Allowed}} · block {{.Blocked}} · warn {{.Warned}}</div>
            </div>
            {{end}}
        </div>
        {{end}}

        {{if .TopBlocked}}
        <div class="section">
            <h2>Most Blocked</h2>
            <table>
                <thead><tr><th>Target</th><th>Count</th></tr></thead>
                <tbody>
                    {{range .TopBlocked}}<tr><td class="target">{{.Target}}</td><td>{{.Count}}</td></tr>{{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        {{if .TopGates}}
        <div class="section">
            <h2>Gates Fired</h2>
            <table>
                <thead><tr><th>Gate</th><th>Count</th></tr></thead>
                <tbody>
                    {{range .TopGates}}<tr><td>{{.Gate}}</td><td>{{.Count}}</td></tr>{{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="section">
            <h2>Decisions</h2>
            <table id="eventTable">
                <thead>
                    <tr>
                        <th onclick="sortTable(0)">Time</th>
                        <th onclick="sortTable(1)">Session</th>
                        <th onclick="sortTable(2)">Tool</th>
                        <th onclick="sortTable(3)">Target</th>
                        <th onclick="sortTable(4)">Decision</th>
                        <th onclick="sortTable(5)">Gates</th>
                        <th onclick="sortTable(6)">Message</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Events}}
                    <tr>
                        <td>{{.Time}}</td>
                        <td>{{.Session}}</td>
                        <td>{{.Tool}}</td>
                        <td class="target">{{.Target}}</td>
                        <td><span class="decision {{.CSSClass}}">{{.Decision}}</span>{{if .Verdict}} ({{.Verdict}}){{end}}</td>
                        <td>{{.Gates}}</td>
                        <td>{{.Message}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
    </div>

    <script>
        function sortTable(col) {
            const table = document.getElementById('eventTable');
            const tbody = table.querySelector('tbody');
            const rows = Array.from(tbody.querySelectorAll('tr'));
            const asc = table.dataset.sortOrder !== 'asc' || table.dataset.sortColumn !== String(col);
            rows.sort((a, b) => {
                const x = a.cells[col].textContent.trim();
                const y = b.cells[col].textContent.trim();
                return asc ? x.localeCompare(y) : y.localeCompare(x);
            });
            tbody.innerHTML = '';
            rows.forEach(r => tbody.appendChild(r));
            table.dataset.sortOrder = asc ? 'asc' : 'desc';
            table.dataset.sortColumn = String(col);
        }
    </script>
</body>
</html>
`
