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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/peg/plangate/internal/plan"
	"github.com/peg/plangate/internal/reminder"
	"gopkg.in/yaml.v3"
)

// TestSuite is a collection of gate expectations checked against a
// configuration without touching the real plan tree or reminder markers.
type TestSuite struct {
	// Config is the path to the configuration file to test. Empty means
	// the built-in defaults.
	Config string `yaml:"config"`

	// Tests is the list of test cases.
	Tests []TestCase `yaml:"tests"`
}

// TestCase defines a single gate expectation.
type TestCase struct {
	// Name describes what this test verifies.
	Name string `yaml:"name"`

	// Tool is a request kind (edit, write, shell, task_create,
	// task_update) or a host tool name (Edit, Bash, TaskCreate, ...).
	Tool string `yaml:"tool"`

	// Session scopes reminders. Cases sharing a session share markers
	// within one suite run. Default: the case name.
	Session string `yaml:"session,omitempty"`

	Path        string `yaml:"path,omitempty"`
	Patch       string `yaml:"patch,omitempty"`
	Command     string `yaml:"command,omitempty"`
	Subject     string `yaml:"subject,omitempty"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status,omitempty"`

	// ActivePlan simulates an active sub-plan in the plan tree.
	ActivePlan bool `yaml:"active_plan,omitempty"`

	// Gates restricts evaluation to the named gates. Default: all.
	Gates []string `yaml:"gates,omitempty"`

	// Expect is the expected action (allow, block, warn).
	Expect string `yaml:"expect"`

	// ExpectMessage is an optional glob matched against the decision
	// message.
	ExpectMessage string `yaml:"expect_message,omitempty"`
}

// TestResult holds the outcome of running a single test case.
type TestResult struct {
	Case           TestCase
	Passed         bool
	Decision       Decision
	ExpectedAction Action
	Error          error
}

// LoadTestSuite reads a test suite from a YAML file. A relative config
// path is resolved against the suite's directory.
func LoadTestSuite(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test file: %w", err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse test file: %w", err)
	}

	if len(suite.Tests) == 0 {
		return nil, fmt.Errorf("test file contains no tests")
	}

	if suite.Config != "" && !filepath.IsAbs(suite.Config) {
		suite.Config = filepath.Join(filepath.Dir(path), suite.Config)
	}

	return &suite, nil
}

// fixedPlans is a PlanSource that reports a single synthetic sub-plan,
// active or not.
type fixedPlans struct {
	root   string
	active bool
}

func (f fixedPlans) Resolve() plan.Result {
	if !f.active {
		return plan.Result{Root: f.root}
	}
	present := make(map[plan.Document]bool, len(plan.RequiredDocuments))
	for _, d := range plan.RequiredDocuments {
		present[d] = true
	}
	return plan.Result{
		Root: f.root,
		Plans: []plan.SubPlan{{
			Name:         "test-plan",
			Dir:          filepath.Join(f.root, "test-plan"),
			Present:      present,
			HasUnchecked: true,
			UpdatedAt:    time.Unix(0, 0),
		}},
	}
}

// RunTests executes all test cases in a suite. Reminder markers are kept
// in memory and shared across the suite.
func RunTests(cfg *Config, suite *TestSuite, logger *slog.Logger) []TestResult {
	markers := reminder.NewMemoryStore()
	results := make([]TestResult, 0, len(suite.Tests))
	for _, tc := range suite.Tests {
		results = append(results, runSingleTest(cfg, markers, logger, tc))
	}
	return results
}

func runSingleTest(cfg *Config, markers reminder.Store, logger *slog.Logger, tc TestCase) TestResult {
	expectedAction, err := ParseAction(tc.Expect)
	if err != nil {
		return TestResult{Case: tc, Error: fmt.Errorf("invalid expect value %q: %w", tc.Expect, err)}
	}

	if tc.Tool == "" {
		return TestResult{Case: tc, Error: fmt.Errorf("test case %q: tool is required", tc.Name)}
	}
	kind, err := ParseKind(tc.Tool)
	if err != nil {
		if kind = KindForTool(tc.Tool); kind == KindOther {
			return TestResult{Case: tc, Error: fmt.Errorf("test case %q: unknown tool %q", tc.Name, tc.Tool)}
		}
	}

	gates := make([]Gate, 0, len(tc.Gates))
	for _, name := range tc.Gates {
		g, err := ParseGate(name)
		if err != nil {
			return TestResult{Case: tc, Error: fmt.Errorf("test case %q: %w", tc.Name, err)}
		}
		gates = append(gates, g)
	}

	session := tc.Session
	if session == "" {
		session = strings.ReplaceAll(tc.Name, " ", "-")
	}

	req := Request{
		Kind:    kind,
		Tool:    tc.Tool,
		Session: session,
		Path:    tc.Path,
		Patch:   tc.Patch,
		Command: tc.Command,
		Task: TaskFields{
			Subject:     tc.Subject,
			Description: tc.Description,
			Status:      tc.Status,
		},
	}

	eng := New(cfg, fixedPlans{root: cfg.PlanDir, active: tc.ActivePlan}, markers, logger)
	decision := eng.Evaluate(req, gates...)
	passed := decision.Action == expectedAction

	if passed && tc.ExpectMessage != "" {
		passed = globMatch(tc.ExpectMessage, decision.Message)
	}

	return TestResult{
		Case:           tc,
		Passed:         passed,
		Decision:       decision,
		ExpectedAction: expectedAction,
	}
}

// globMatch matches s against a pattern where "*" matches any run of
// characters, newlines and "/" included, and "?" matches one character.
func globMatch(pattern, s string) bool {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, `[\s\S]*`)
	quoted = strings.ReplaceAll(quoted, `\?`, `[\s\S]`)
	re, err := regexp.Compile(`^` + quoted + `$`)
	return err == nil && re.MatchString(s)
}
