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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTests_AllPass(t *testing.T) {
	suite := &TestSuite{
		Tests: []TestCase{
			{Name: "edit without plan", Tool: "Edit", Path: "src/A.kt", Gates: []string{"work-plan"}, Expect: "block"},
			{Name: "edit with plan", Tool: "edit", Path: "src/A.kt", ActivePlan: true, Gates: []string{"work-plan"}, Expect: "allow"},
			{Name: "docs edit", Tool: "Write", Path: "docs/a.md", Expect: "allow"},
			{Name: "destructive", Tool: "Bash", Command: "rm -rf /", ActivePlan: true, Expect: "deny", ExpectMessage: "*extremely dangerous*"},
			{Name: "task", Tool: "TaskCreate", Subject: "Implement login", Expect: "block", ExpectMessage: "[plan]*docs/plan/*"},
		},
	}

	results := RunTests(defaultConfig(t), suite, testLogger())
	require.Len(t, results, len(suite.Tests))
	for _, r := range results {
		assert.NoError(t, r.Error, r.Case.Name)
		assert.True(t, r.Passed, "%s: got %s", r.Case.Name, r.Decision.Action)
	}
}

func TestRunTests_SharedSessionMarkers(t *testing.T) {
	suite := &TestSuite{
		Tests: []TestCase{
			{Name: "first", Session: "s", Tool: "Edit", Path: "src/domain/A.kt", Gates: []string{"layer-docs"}, Expect: "block"},
			{Name: "retry", Session: "s", Tool: "Edit", Path: "src/domain/A.kt", Gates: []string{"layer-docs"}, Expect: "allow"},
			{Name: "new session", Tool: "Edit", Path: "src/domain/A.kt", Gates: []string{"layer-docs"}, Expect: "block"},
		},
	}

	for _, r := range RunTests(defaultConfig(t), suite, testLogger()) {
		assert.True(t, r.Passed, r.Case.Name)
	}
}

func TestRunTests_Failures(t *testing.T) {
	suite := &TestSuite{
		Tests: []TestCase{
			{Name: "wrong expectation", Tool: "Edit", Path: "src/A.kt", Expect: "allow"},
			{Name: "wrong message", Tool: "Bash", Command: "git stash drop", Expect: "block", ExpectMessage: "*rm -rf*"},
			{Name: "bad expect", Tool: "Edit", Expect: "require_approval"},
			{Name: "no tool", Expect: "allow"},
			{Name: "unknown tool", Tool: "Browse", Expect: "allow"},
			{Name: "unknown gate", Tool: "Edit", Gates: []string{"nope"}, Expect: "allow"},
		},
	}

	results := RunTests(defaultConfig(t), suite, testLogger())
	assert.False(t, results[0].Passed)
	assert.NoError(t, results[0].Error)
	assert.False(t, results[1].Passed)
	for _, r := range results[2:] {
		assert.Error(t, r.Error, r.Case.Name)
		assert.False(t, r.Passed)
	}
}

func TestLoadTestSuite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gates_test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
config: .plangate.yaml
tests:
  - name: shell write
    tool: Bash
    command: echo hi > src/A.kt
    expect: block
`), 0o644))

	suite, err := LoadTestSuite(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".plangate.yaml"), suite.Config)
	require.Len(t, suite.Tests, 1)
	assert.Equal(t, "echo hi > src/A.kt", suite.Tests[0].Command)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tests: []\n"), 0o644))
	_, err = LoadTestSuite(empty)
	assert.Error(t, err)

	_, err = LoadTestSuite(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("*dangerous*", "[safety] Blocked: x is dangerous\nCommand: y"))
	assert.True(t, globMatch("a?c", "abc"))
	assert.True(t, globMatch("docs/plan/*", "docs/plan/x/y"))
	assert.False(t, globMatch("abc", "abcd"))
	assert.True(t, globMatch("[plan]*", "[plan] Task created"))
}
