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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/peg/plangate/policies"
	"gopkg.in/yaml.v3"
)

// Config is the gate configuration loaded from YAML. The embedded default
// configuration is always loaded first; a project file overrides the fields
// it sets.
type Config struct {
	// Version is the configuration schema version. Currently "1".
	Version string `yaml:"version"`

	// PlanDir is the plan tree location, relative to the project root
	// unless absolute. Default: "docs/plan".
	PlanDir string `yaml:"plan_dir"`

	// Paths holds the exemption and guarded-zone rules.
	Paths PathRules `yaml:"paths"`

	// Layers configures the layer documentation reminders.
	Layers LayerRules `yaml:"layers"`

	// Tasks configures the task-lifecycle reminders.
	Tasks TaskRules `yaml:"tasks"`

	// Dangerous is the ordered destructive-command table. First match wins.
	Dangerous []DangerousRule `yaml:"dangerous"`

	// Reminders configures the reminder marker store.
	Reminders ReminderConfig `yaml:"reminders"`

	dangerous    []compiledDangerous
	taskKeywords *regexp.Regexp
}

// PathRules configures the PathClassifier.
type PathRules struct {
	// GuardedZones are directory names whose subtrees are gated by plan
	// state, matched as whole path segments.
	GuardedZones []string `yaml:"guarded_zones"`

	// ExemptSubstrings exempt any path containing one of them.
	ExemptSubstrings []string `yaml:"exempt_substrings"`

	// ExemptPrefixes exempt relative paths starting with one of them.
	ExemptPrefixes []string `yaml:"exempt_prefixes"`

	// ExemptExtensions exempt configuration and build files by suffix.
	ExemptExtensions []string `yaml:"exempt_extensions"`
}

// LayerDoc maps a layer directory name to the document to read first.
type LayerDoc struct {
	Name string `yaml:"name"`
	Doc  string `yaml:"doc"`
}

// SecurityRule identifies security configuration files: the path must
// contain Segment and, case-insensitively, Keyword.
type SecurityRule struct {
	Segment string `yaml:"segment"`
	Keyword string `yaml:"keyword"`
	Doc     string `yaml:"doc"`
}

// LayerRules configures GateLayerDocs.
type LayerRules struct {
	Docs         []LayerDoc   `yaml:"docs"`
	Security     SecurityRule `yaml:"security"`
	SkipDirs     []string     `yaml:"skip_dirs"`
	TestDirs     []string     `yaml:"test_dirs"`
	TestSuffixes []string     `yaml:"test_suffixes"`
}

// TaskRules configures GatePlanUpdate.
type TaskRules struct {
	// ExemptPatterns exempt tasks whose subject or description contains
	// one of them (documentation, configuration and build work).
	ExemptPatterns []string `yaml:"exempt_patterns"`

	// ExemptKeywords is a case-insensitive regular expression with the
	// same purpose.
	ExemptKeywords string `yaml:"exempt_keywords"`

	// CompletedStatus is the status value that marks a task done.
	// Default: "completed".
	CompletedStatus string `yaml:"completed_status"`
}

// DangerousRule is one entry of the destructive-command table.
type DangerousRule struct {
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason"`
}

type compiledDangerous struct {
	re     *regexp.Regexp
	reason string
}

// ReminderConfig configures the reminder marker store.
type ReminderConfig struct {
	// Dir holds one marker file per (session, topic). Default: a
	// well-known directory under the system temp dir.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(policies.Default(), &cfg); err != nil {
		return nil, fmt.Errorf("engine: parse default config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FileStore loads configuration from a YAML file on disk, layered over the
// embedded defaults.
type FileStore struct {
	path string
}

// NewFileStore creates a config store that reads from the given file path.
// An empty path yields the defaults.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and parses the config file. A missing file is not an error:
// the defaults apply. Invalid YAML or an invalid pattern is an error.
func (s *FileStore) Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(policies.Default(), &cfg); err != nil {
		return nil, fmt.Errorf("engine: parse default config: %w", err)
	}

	if s.path != "" {
		absPath, err := filepath.Abs(s.path)
		if err != nil {
			return nil, fmt.Errorf("engine: resolve path %q: %w", s.path, err)
		}
		data, err := os.ReadFile(absPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("engine: read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("engine: parse config file: %w", err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the file path this store reads from.
func (s *FileStore) Path() string {
	return s.path
}

// PlanRoot resolves the plan tree location against the project root.
// Returns "" when the project root is unknown and PlanDir is relative.
func (cfg *Config) PlanRoot(projectDir string) string {
	if filepath.IsAbs(cfg.PlanDir) {
		return cfg.PlanDir
	}
	if projectDir == "" {
		return ""
	}
	return filepath.Join(projectDir, filepath.FromSlash(cfg.PlanDir))
}

// validate checks the config for structural errors and compiles patterns.
func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.PlanDir) == "" {
		cfg.PlanDir = "docs/plan"
	}
	if strings.TrimSpace(cfg.Tasks.CompletedStatus) == "" {
		cfg.Tasks.CompletedStatus = "completed"
	}

	zones := 0
	for _, z := range cfg.Paths.GuardedZones {
		if strings.Trim(z, "/ ") != "" {
			zones++
		}
	}
	if zones == 0 {
		return fmt.Errorf("engine: paths.guarded_zones must name at least one directory")
	}

	for i, l := range cfg.Layers.Docs {
		if l.Name == "" {
			return fmt.Errorf("engine: layers.docs[%d] has no name", i)
		}
	}

	cfg.dangerous = cfg.dangerous[:0]
	for i, r := range cfg.Dangerous {
		if r.Pattern == "" || r.Reason == "" {
			return fmt.Errorf("engine: dangerous[%d] needs both pattern and reason", i)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return fmt.Errorf("engine: dangerous[%d]: invalid pattern %q: %w", i, r.Pattern, err)
		}
		cfg.dangerous = append(cfg.dangerous, compiledDangerous{re: re, reason: r.Reason})
	}

	cfg.taskKeywords = nil
	if kw := strings.TrimSpace(cfg.Tasks.ExemptKeywords); kw != "" {
		re, err := regexp.Compile("(?i)" + kw)
		if err != nil {
			return fmt.Errorf("engine: tasks.exempt_keywords: %w", err)
		}
		cfg.taskKeywords = re
	}

	return nil
}
