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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LintSeverity represents the severity of a lint finding.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarning
	LintError
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarning:
		return "warning"
	case LintError:
		return "error"
	default:
		return "unknown"
	}
}

// LintFinding represents a single lint diagnostic.
type LintFinding struct {
	File     string
	Line     int
	Severity LintSeverity
	Message  string
}

func (f LintFinding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", f.File, f.Line, f.Severity, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.File, f.Severity, f.Message)
}

// LintResult is the output of linting a configuration file.
type LintResult struct {
	Findings []LintFinding
	Errors   int
	Warnings int
	Infos    int
}

// knownKeys lists the valid keys of each configuration section. The empty
// section name is the document root.
var knownKeys = map[string]map[string]bool{
	"": {
		"version": true, "plan_dir": true, "paths": true, "layers": true,
		"tasks": true, "dangerous": true, "reminders": true,
	},
	"paths": {
		"guarded_zones": true, "exempt_substrings": true,
		"exempt_prefixes": true, "exempt_extensions": true,
	},
	"layers": {
		"docs": true, "security": true, "skip_dirs": true,
		"test_dirs": true, "test_suffixes": true,
	},
	"tasks": {
		"exempt_patterns": true, "exempt_keywords": true, "completed_status": true,
	},
	"reminders": {
		"dir": true,
	},
}

// commonKeyTypos maps frequent mistakes to the intended key.
var commonKeyTypos = map[string]string{
	"plan_directory":   "plan_dir",
	"plandir":          "plan_dir",
	"plans":            "plan_dir",
	"path":             "paths",
	"layer":            "layers",
	"task":             "tasks",
	"danger":           "dangerous",
	"dangerous_rules":  "dangerous",
	"reminder":         "reminders",
	"zones":            "guarded_zones",
	"guarded_zone":     "guarded_zones",
	"exempt_suffixes":  "exempt_extensions",
	"exempt_paths":     "exempt_substrings",
	"exempt_keyword":   "exempt_keywords",
	"completed":        "completed_status",
	"skip_directories": "skip_dirs",
}

// LintConfigFile lints a configuration YAML file and returns findings.
// Layer document references are checked relative to the file's directory,
// which is normally the project root.
func LintConfigFile(path string) LintResult {
	result := LintResult{}
	filename := path

	data, err := os.ReadFile(path)
	if err != nil {
		result.add(LintFinding{File: filename, Severity: LintError, Message: fmt.Sprintf("cannot read file: %v", err)})
		return result
	}

	var rawNode yaml.Node
	if err := yaml.Unmarshal(data, &rawNode); err != nil {
		result.add(LintFinding{File: filename, Severity: LintError, Message: fmt.Sprintf("invalid YAML: %v", err)})
		return result
	}
	lintRawYAML(&rawNode, filename, &result)

	cfg, err := NewFileStore(path).Load()
	if err != nil {
		result.add(LintFinding{File: filename, Severity: LintError, Message: err.Error()})
		return result
	}

	if cfg.Version != "" && cfg.Version != "1" {
		result.add(LintFinding{File: filename, Severity: LintWarning, Message: fmt.Sprintf("unknown config version %q (expected \"1\")", cfg.Version)})
	}

	lintZones(filename, cfg, &result)
	lintDangerous(filename, cfg, &result)
	lintLayerDocs(filename, filepath.Dir(path), cfg, &result)

	return result
}

// lintZones reports guarded zones that an exemption rule covers entirely.
func lintZones(filename string, cfg *Config, result *LintResult) {
	pc := NewPathClassifier(cfg.Paths)
	for _, z := range cfg.Paths.GuardedZones {
		probe := strings.Trim(z, "/") + "/probe"
		if pc.IsExempt(probe) {
			result.add(LintFinding{
				File:     filename,
				Severity: LintWarning,
				Message:  fmt.Sprintf("guarded zone %q is exempted by an exemption rule; the work-plan gate never fires for it", z),
			})
		}
	}
}

// lintDangerous reports rules that match every command and rules shadowed
// by an identical earlier pattern.
func lintDangerous(filename string, cfg *Config, result *LintResult) {
	seen := map[string]int{}
	for i, r := range cfg.Dangerous {
		if prev, ok := seen[r.Pattern]; ok {
			result.add(LintFinding{
				File:     filename,
				Severity: LintInfo,
				Message:  fmt.Sprintf("dangerous rule %d will never match; shadowed by identical rule %d", i+1, prev+1),
			})
			continue
		}
		seen[r.Pattern] = i

		if re, err := regexp.Compile("(?i)" + r.Pattern); err == nil && re.MatchString("") {
			result.add(LintFinding{
				File:     filename,
				Severity: LintWarning,
				Message:  fmt.Sprintf("dangerous rule %d pattern %q matches the empty command; every shell command will be blocked", i+1, r.Pattern),
			})
		}
	}
}

// lintLayerDocs reports layer documents that do not exist under root.
func lintLayerDocs(filename, root string, cfg *Config, result *LintResult) {
	docs := make([]string, 0, len(cfg.Layers.Docs)+1)
	for _, l := range cfg.Layers.Docs {
		if l.Doc == "" {
			result.add(LintFinding{File: filename, Severity: LintWarning, Message: fmt.Sprintf("layer %q has no doc", l.Name)})
			continue
		}
		docs = append(docs, l.Doc)
	}
	if cfg.Layers.Security.Doc != "" {
		docs = append(docs, cfg.Layers.Security.Doc)
	}
	for _, d := range docs {
		p := d
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(d))
		}
		if _, err := os.Stat(p); err != nil {
			result.add(LintFinding{File: filename, Severity: LintInfo, Message: fmt.Sprintf("referenced document %s not found", d)})
		}
	}
}

// lintRawYAML walks the raw YAML AST to detect unknown keys with line
// numbers.
func lintRawYAML(root *yaml.Node, filename string, result *LintResult) {
	if root == nil || len(root.Content) == 0 {
		return
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		result.add(LintFinding{File: filename, Line: doc.Line, Severity: LintError, Message: "config must be a YAML mapping"})
		return
	}

	checkKeys(doc, "", filename, result)
	for section := range knownKeys {
		if section == "" {
			continue
		}
		if node := findMapValue(doc, section); node != nil && node.Kind == yaml.MappingNode {
			checkKeys(node, section, filename, result)
		}
	}
}

func checkKeys(node *yaml.Node, section, filename string, result *LintResult) {
	valid := knownKeys[section]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Kind != yaml.ScalarNode || valid[key.Value] {
			continue
		}
		where := "top level"
		if section != "" {
			where = section
		}
		msg := fmt.Sprintf("unknown key %q in %s", key.Value, where)
		if suggestion, ok := commonKeyTypos[key.Value]; ok {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		result.add(LintFinding{
			File:     filename,
			Line:     key.Line,
			Severity: LintWarning,
			Message:  msg,
		})
	}
}

func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func (r *LintResult) add(f LintFinding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case LintError:
		r.Errors++
	case LintWarning:
		r.Warnings++
	case LintInfo:
		r.Infos++
	}
}

// Summary returns a human-readable summary line.
func (r LintResult) Summary(filename string) string {
	parts := []string{}
	if r.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", r.Errors))
	}
	if r.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", r.Warnings))
	}
	if r.Infos > 0 {
		parts = append(parts, fmt.Sprintf("%d info(s)", r.Infos))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: no issues found", filename)
	}
	return fmt.Sprintf("%s: %s", filename, strings.Join(parts, ", "))
}

// HasErrors returns true if any error-level findings exist.
func (r LintResult) HasErrors() bool {
	return r.Errors > 0
}
