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
	"unicode"
)

// SplitCompoundCommand splits a shell command on unquoted &&, ||, ;, and |
// operators, returning each segment trimmed. Escaped or quoted delimiters
// are not split on.
func SplitCompoundCommand(cmd string) []string {
	var segments []string
	var cur strings.Builder
	inSingle := false
	inDouble := false
	escaped := false

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			segments = append(segments, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(cmd); i++ {
		ch := cmd[i]

		switch {
		case escaped:
			escaped = false
		case ch == '\\' && !inSingle:
			escaped = true
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case i+1 < len(cmd) && (cmd[i:i+2] == "&&" || cmd[i:i+2] == "||"):
			flush()
			i++
			continue
		case ch == ';' || ch == '|' || ch == '\n':
			flush()
			continue
		}
		cur.WriteByte(ch)
	}

	flush()
	return segments
}

// NormalizeCommand takes a raw shell command string and returns a normalized
// version with shell metacharacter obfuscation removed:
//   - Quote stripping: 'rm' → rm, "rm" → rm
//   - Backslash removal: r\m → rm
//   - Env var prefix stripping: FOO=bar rm → rm
//   - Compound commands: each segment normalized independently, joined with " && "
//
// It is not a shell parser. It exists so that the destructive-command table
// is not bypassed by trivial quoting.
func NormalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ""
	}

	segments := SplitCompoundCommand(cmd)
	normalized := make([]string, 0, len(segments))
	for _, seg := range segments {
		if n := normalizeSegment(seg); n != "" {
			normalized = append(normalized, n)
		}
	}

	return strings.Join(normalized, " && ")
}

// normalizeSegment normalizes a single command (no compound operators).
func normalizeSegment(seg string) string {
	tokens := tokenize(strings.TrimSpace(seg))

	start := 0
	for start < len(tokens) && isEnvAssignment(tokens[start]) {
		start++
	}
	return strings.Join(tokens[start:], " ")
}

// isEnvAssignment returns true if token looks like VAR=value.
func isEnvAssignment(token string) bool {
	eq := strings.IndexByte(token, '=')
	if eq <= 0 {
		return false
	}
	name := token[:eq]
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	first := rune(name[0])
	return unicode.IsLetter(first) || first == '_'
}

// tokenize splits a command into tokens, stripping quotes and backslash escapes.
func tokenize(cmd string) []string {
	var tokens []string
	var cur strings.Builder

	for i := 0; i < len(cmd); i++ {
		ch := cmd[i]

		switch {
		case ch == ' ' || ch == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		case ch == '\'':
			for i++; i < len(cmd) && cmd[i] != '\''; i++ {
				cur.WriteByte(cmd[i])
			}
		case ch == '"':
			for i++; i < len(cmd) && cmd[i] != '"'; i++ {
				if cmd[i] == '\\' && i+1 < len(cmd) {
					i++
				}
				cur.WriteByte(cmd[i])
			}
		case ch == '\\' && i+1 < len(cmd):
			i++
			cur.WriteByte(cmd[i])
		default:
			cur.WriteByte(ch)
		}
	}

	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// pathTokens splits a command into the whitespace, quote and redirection
// delimited words that may name a file. Quotes are treated as delimiters
// rather than grouping, so `open('src/a.py','w')` yields "src/a.py".
func pathTokens(cmd string) []string {
	return strings.FieldsFunc(cmd, func(r rune) bool {
		switch r {
		case '\'', '"', '`', '<', '>':
			return true
		}
		return unicode.IsSpace(r)
	})
}

// trimCandidate strips command punctuation that commonly clings to a path
// written inline: a leading "(" or "$(" and trailing separators.
func trimCandidate(tok string) string {
	tok = strings.TrimLeft(strings.TrimPrefix(tok, "$("), "(")
	return strings.TrimRight(tok, ";|,&)")
}
