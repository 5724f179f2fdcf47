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
	"strings"
)

// NormalizePath converts every directory separator to "/". It does not
// clean or resolve the path: exemption rules are substring based and must
// see the path as the agent wrote it.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// PathClassifier decides whether a file path is exempt from the work-plan
// gate and whether it falls inside a guarded zone.
//
// Exemption and zone membership are purely declarative: they depend on the
// configured rules only, never on plan state.
type PathClassifier struct {
	substrings []string
	prefixes   []string
	suffixes   []string
	zones      []string
}

// NewPathClassifier builds a classifier from path rules.
func NewPathClassifier(rules PathRules) *PathClassifier {
	return &PathClassifier{
		substrings: rules.ExemptSubstrings,
		prefixes:   rules.ExemptPrefixes,
		suffixes:   rules.ExemptExtensions,
		zones:      rules.GuardedZones,
	}
}

// IsExempt reports whether any exemption rule matches the normalized path.
// An empty path is never exempt.
func (c *PathClassifier) IsExempt(p string) bool {
	if p == "" {
		return false
	}
	p = NormalizePath(p)

	for _, s := range c.substrings {
		if s != "" && strings.Contains(p, s) {
			return true
		}
	}
	for _, prefix := range c.prefixes {
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, suffix := range c.suffixes {
		if suffix != "" && strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// IsGuardedZone reports whether the normalized path contains a guarded zone
// as a whole path segment. "src/main/A.kt" and "/repo/src/A.kt" are guarded;
// "mysrc/A.kt" and "src.bak/A.kt" are not.
func (c *PathClassifier) IsGuardedZone(p string) bool {
	if p == "" {
		return false
	}
	p = NormalizePath(p)
	for _, zone := range c.zones {
		if HasSegment(p, zone) {
			return true
		}
	}
	return false
}

// Guarded reports whether a change to p must be backed by an active plan.
func (c *PathClassifier) Guarded(p string) bool {
	return !c.IsExempt(p) && c.IsGuardedZone(p)
}

// Zones returns the configured guarded zone names.
func (c *PathClassifier) Zones() []string {
	return c.zones
}

// HasSegment reports whether seg occurs in p bounded by the start of the
// string or a "/" on the left and by a "/" or the end of the string on the
// right. seg may itself contain "/" (e.g. "common/config").
func HasSegment(p, seg string) bool {
	seg = strings.Trim(seg, "/")
	if seg == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(p[from:], seg)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(seg)
		leftOK := start == 0 || p[start-1] == '/'
		rightOK := end == len(p) || p[end] == '/'
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}
