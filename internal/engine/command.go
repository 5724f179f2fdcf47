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

package engine

import (
	"regexp"
	"strings"
)

// writeSignal is one entry of the write-intent table: a label recorded in
// the audit trail and a predicate over the raw command text.
type writeSignal struct {
	label string
	match func(cmd string) bool
}

// Write verbs in command position: at the start of the text or after
// whitespace or a command separator, followed by whitespace or the end.
// A path segment such as "src/install/A.kt" never matches.
var (
	mutatingVerbRe = regexp.MustCompile("(?:^|[\\s;&|(`])(?:sudo\\s+)?" +
		`(?:touch|cp|mv|rm|rmdir|mkdir|install|truncate|ln|rsync|patch|unlink|shred|dd)(?:\s|$)`)
	vcsWriteRe = regexp.MustCompile(`\bgit\s+(?:apply|restore|checkout|mv|rm)\b`)
	teeRe      = regexp.MustCompile("(?:^|[\\s;&|(`])tee(?:\\s|$)")

	// In-place flag as its own short-flag cluster ("-i", "-pi", "-i.bak",
	// "-Ei") or "--in-place". Letters that take an attached argument
	// (-M, -m, -I) cannot precede the i, so "-Mstrict" is not a match.
	inPlaceRe = regexp.MustCompile(`\b(?:sed|perl|ruby)\b[^|;&]*\s(?:-[a-hj-ln-zA-HJ-LN-Z]*i|--in-place)\S*(?:\s|$)`)

	// echoRedirectRe captures the file-descriptor digit and the target of
	// a redirection that follows a read/echo-class utility.
	echoRedirectRe = regexp.MustCompile("(?:^|[\\s;&|(`])(?:echo|printf|cat|head|tail|cut|sort|uniq|awk|jq)\\b" +
		`[^|;&>]*?(\d?)>{1,2}\s*([^\s;&|]*)`)
)

// CommandClassifier decides whether a shell command plausibly mutates files
// inside a guarded zone, and which guarded paths it references.
//
// It is a heuristic. False negatives on exotic idioms are accepted; read-only
// inspection verbs (ls, cat, grep, find, head, tail, ...) never appear in the
// write-signal table.
type CommandClassifier struct {
	paths   *PathClassifier
	signals []writeSignal
}

// NewCommandClassifier builds a classifier whose zone-dependent signals are
// derived from the path classifier's guarded zones.
func NewCommandClassifier(paths *PathClassifier) *CommandClassifier {
	zone := zoneAlternation(paths.Zones())

	// Redirection whose target token contains the zone segment.
	zoneRedirectRe := regexp.MustCompile(`>{1,2}\|?\s*['"]?(?:[^\s'"<>|;&]*/)?` + zone + `(?:/|$|[\s'";|&])`)

	// Embedded interpreter opening a zone path for writing.
	interpreterRe := regexp.MustCompile(`\b(?:python[0-9.]*|node|ruby|perl|deno|bun)\b[\s\S]*?(?:` +
		`open\s*\(\s*['"](?:[^'"]*/)?` + zone + `/[^'"]*['"]\s*,\s*['"](?:[wax]|[rbt]*\+)` +
		`|(?:writeFile|appendFile)(?:Sync)?\s*\(\s*['"](?:[^'"]*/)?` + zone + `/` +
		`|Path\s*\(\s*['"](?:[^'"]*/)?` + zone + `/[^'"]*['"]\s*\)\s*\.\s*(?:write_text|write_bytes)` +
		`)`)

	return &CommandClassifier{
		paths: paths,
		signals: []writeSignal{
			{label: "verb", match: mutatingVerbRe.MatchString},
			{label: "vcs-write", match: vcsWriteRe.MatchString},
			{label: "in-place", match: inPlaceRe.MatchString},
			{label: "tee", match: teeRe.MatchString},
			{label: "echo-redirect", match: matchEchoRedirect},
			{label: "zone-redirect", match: zoneRedirectRe.MatchString},
			{label: "interpreter-write", match: interpreterRe.MatchString},
		},
	}
}

// zoneAlternation returns a non-capturing regexp group matching any zone.
func zoneAlternation(zones []string) string {
	quoted := make([]string, 0, len(zones))
	for _, z := range zones {
		z = strings.Trim(z, "/")
		if z != "" {
			quoted = append(quoted, regexp.QuoteMeta(z))
		}
	}
	if len(quoted) == 0 {
		// Matches nothing: no zone means no zone-dependent signal.
		return `(?:[^\s\S])`
	}
	return `(?:` + strings.Join(quoted, "|") + `)`
}

// matchEchoRedirect reports an output redirection after a read/echo-class
// utility. Redirections of stderr and to /dev/null are not writes.
func matchEchoRedirect(cmd string) bool {
	for _, m := range echoRedirectRe.FindAllStringSubmatch(cmd, -1) {
		fd, target := m[1], m[2]
		if fd == "2" || strings.HasPrefix(target, "&") || target == "/dev/null" {
			continue
		}
		return true
	}
	return false
}

// ExtractTargetPaths returns the words of cmd that contain a guarded zone as
// a path segment, in order of first occurrence. Trailing separators are
// stripped. Duplicates are kept.
func (c *CommandClassifier) ExtractTargetPaths(cmd string) []string {
	var out []string
	for _, tok := range pathTokens(cmd) {
		tok = trimCandidate(tok)
		if tok != "" && c.paths.IsGuardedZone(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// MutationSignal returns the label of the first write signal that matches
// cmd. It reports false when cmd does not reference a guarded zone at all.
func (c *CommandClassifier) MutationSignal(cmd string) (string, bool) {
	if strings.TrimSpace(cmd) == "" || len(c.ExtractTargetPaths(cmd)) == 0 {
		return "", false
	}
	for _, s := range c.signals {
		if s.match(cmd) {
			return s.label, true
		}
	}
	return "", false
}

// IsMutating reports whether cmd references a guarded zone and matches at
// least one write signal.
func (c *CommandClassifier) IsMutating(cmd string) bool {
	_, ok := c.MutationSignal(cmd)
	return ok
}

// GuardedTargets returns the extracted target paths that are guarded: not
// exempt and inside a zone.
func (c *CommandClassifier) GuardedTargets(cmd string) []string {
	var out []string
	for _, p := range c.ExtractTargetPaths(cmd) {
		if c.paths.Guarded(p) {
			out = append(out, p)
		}
	}
	return out
}
