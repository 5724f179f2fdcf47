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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingContaining(r LintResult, sev LintSeverity, substr string) bool {
	for _, f := range r.Findings {
		if f.Severity == sev && strings.Contains(f.Message, substr) {
			return true
		}
	}
	return false
}

func TestLint_CleanConfig(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"domain", "application", "infrastructure", "presentation"} {
		p := filepath.Join(dir, "docs", "layers", d+".md")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# "+d), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "spring-security-7.md"), nil, 0o644))

	path := filepath.Join(dir, ".plangate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nplan_dir: docs/plan\n"), 0o644))

	result := LintConfigFile(path)
	assert.Empty(t, result.Findings)
	assert.False(t, result.HasErrors())
	assert.Equal(t, path+": no issues found", result.Summary(path))
}

func TestLint_InvalidYAML(t *testing.T) {
	result := LintConfigFile(writeConfig(t, "paths: [unclosed\n"))
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Findings[0].Message, "invalid YAML")
}

func TestLint_MissingFile(t *testing.T) {
	result := LintConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.True(t, result.HasErrors())
	assert.Contains(t, result.Findings[0].Message, "cannot read file")
}

func TestLint_UnknownKeys(t *testing.T) {
	path := writeConfig(t, `version: "1"
plandir: x
paths:
  zones: [src]
tasks:
  colour: blue
`)
	result := LintConfigFile(path)

	assert.True(t, findingContaining(result, LintWarning, `unknown key "plandir" in top level (did you mean "plan_dir"?)`))
	assert.True(t, findingContaining(result, LintWarning, `unknown key "zones" in paths (did you mean "guarded_zones"?)`))
	assert.True(t, findingContaining(result, LintWarning, `unknown key "colour" in tasks`))

	for _, f := range result.Findings {
		if strings.Contains(f.Message, "plandir") {
			assert.Equal(t, 2, f.Line)
		}
	}
}

func TestLint_InvalidConfigIsError(t *testing.T) {
	result := LintConfigFile(writeConfig(t, "dangerous:\n  - pattern: '(['\n    reason: x\n"))
	assert.True(t, result.HasErrors())
	assert.True(t, findingContaining(result, LintError, "invalid pattern"))
}

func TestLint_SemanticWarnings(t *testing.T) {
	path := writeConfig(t, `version: "2"
paths:
  guarded_zones: [src]
  exempt_prefixes: [src/]
dangerous:
  - pattern: 'git\s+reset'
    reason: reset
  - pattern: 'git\s+reset'
    reason: again
  - pattern: '.*'
    reason: everything
layers:
  docs:
    - name: domain
`)
	result := LintConfigFile(path)

	assert.True(t, findingContaining(result, LintWarning, `unknown config version "2"`))
	assert.True(t, findingContaining(result, LintWarning, `guarded zone "src" is exempted`))
	assert.True(t, findingContaining(result, LintInfo, "dangerous rule 2 will never match"))
	assert.True(t, findingContaining(result, LintWarning, "dangerous rule 3 pattern"))
	assert.True(t, findingContaining(result, LintWarning, `layer "domain" has no doc`))
	assert.True(t, findingContaining(result, LintInfo, "docs/spring-security-7.md not found"))
	assert.False(t, result.HasErrors())
	assert.Contains(t, result.Summary("x"), "warning(s)")
}

func TestLintFinding_String(t *testing.T) {
	assert.Equal(t, "a.yaml:3: warning: m", LintFinding{File: "a.yaml", Line: 3, Severity: LintWarning, Message: "m"}.String())
	assert.Equal(t, "a.yaml: error: m", LintFinding{File: "a.yaml", Severity: LintError, Message: "m"}.String())
}
