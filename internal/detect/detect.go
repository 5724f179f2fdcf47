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

// Package detect inspects a project directory to tailor the generated
// configuration: where the source code lives, which architectural layers
// exist, and whether a plan tree is already in place.
package detect

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result contains the results of project detection.
type Result struct {
	// SourceRoots are top-level directories that contain source files.
	SourceRoots []string

	// Layers are the known layer names found as directories below a
	// source root.
	Layers []string

	// PlanDir is an existing plan tree, relative to the project, or "".
	PlanDir string

	// ClaudeCode is true when the project has a .claude directory.
	ClaudeCode bool

	// HookInstalled is true when the project's Claude Code settings already
	// run a plangate hook.
	HookInstalled bool

	// BuildTools lists the build systems identified by their marker files.
	BuildTools []string
}

// sourceRootCandidates are checked in order.
var sourceRootCandidates = []string{"src", "app", "lib", "internal", "pkg", "cmd", "server", "client", "packages"}

// planDirCandidates are checked in order.
var planDirCandidates = []string{"docs/plan", "docs/plans", "plans", ".plans"}

// knownLayers are the layer directory names recognized below source roots.
var knownLayers = []string{"domain", "application", "infrastructure", "presentation"}

var buildMarkers = []struct {
	file string
	tool string
}{
	{"build.gradle.kts", "gradle"},
	{"build.gradle", "gradle"},
	{"pom.xml", "maven"},
	{"go.mod", "go"},
	{"package.json", "npm"},
	{"Cargo.toml", "cargo"},
	{"pyproject.toml", "python"},
}

var sourceExtensions = map[string]bool{
	".kt": true, ".kts": true, ".java": true, ".go": true, ".ts": true, ".tsx": true,
	".js": true, ".jsx": true, ".py": true, ".rs": true, ".rb": true, ".cs": true,
	".swift": true, ".scala": true, ".c": true, ".cc": true, ".cpp": true, ".h": true,
}

// maxWalkDepth bounds how deep layer detection descends below a source root.
const maxWalkDepth = 10

// Project performs detection in dir. Unreadable entries are skipped; only
// an unusable dir is an error.
func Project(dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("detect: not a directory: " + dir)
	}

	result := &Result{}

	for _, name := range sourceRootCandidates {
		root := filepath.Join(dir, name)
		if isDir(root) && containsSource(root) {
			result.SourceRoots = append(result.SourceRoots, name)
		}
	}

	var layers []string
	for _, name := range result.SourceRoots {
		layers = append(layers, findLayers(filepath.Join(dir, name))...)
	}
	result.Layers = orderLayers(removeDuplicates(layers))

	for _, rel := range planDirCandidates {
		if isDir(filepath.Join(dir, filepath.FromSlash(rel))) {
			result.PlanDir = rel
			break
		}
	}

	claudeDir := filepath.Join(dir, ".claude")
	if isDir(claudeDir) {
		result.ClaudeCode = true
		result.HookInstalled = settingsRunPlangate(filepath.Join(claudeDir, "settings.json"))
	}

	var tools []string
	for _, m := range buildMarkers {
		if checkFileExists(filepath.Join(dir, m.file)) == nil {
			tools = append(tools, m.tool)
		}
	}
	result.BuildTools = removeDuplicates(tools)

	return result, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// checkFileExists returns nil if the file exists. Permission errors are
// returned too; callers treat every error as "not found".
func checkFileExists(path string) error {
	_, err := os.Stat(path)
	return err
}

var errFound = errors.New("found")

// containsSource reports whether any file below root has a source extension.
func containsSource(root string) bool {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if depth(root, path) > maxWalkDepth || (path != root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return errFound
		}
		return nil
	})
	return errors.Is(err, errFound)
}

// findLayers returns the known layer names that occur as directory names
// below root.
func findLayers(root string) []string {
	known := make(map[string]bool, len(knownLayers))
	for _, l := range knownLayers {
		known[l] = true
	}

	var found []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if depth(root, path) > maxWalkDepth {
			return filepath.SkipDir
		}
		if known[d.Name()] && path != root {
			found = append(found, d.Name())
		}
		return nil
	})
	return found
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// orderLayers sorts layers in their architectural order.
func orderLayers(layers []string) []string {
	rank := make(map[string]int, len(knownLayers))
	for i, l := range knownLayers {
		rank[l] = i
	}
	sort.SliceStable(layers, func(i, j int) bool {
		return rank[layers[i]] < rank[layers[j]]
	})
	return layers
}

// settingsRunPlangate reads a Claude settings file and reports whether a
// hook command invokes plangate.
func settingsRunPlangate(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var settings struct {
		Hooks map[string][]struct {
			Hooks []struct {
				Command string `json:"command"`
			} `json:"hooks"`
		} `json:"hooks"`
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return false
	}

	for _, matchers := range settings.Hooks {
		for _, m := range matchers {
			for _, h := range m.Hooks {
				fields := strings.Fields(h.Command)
				if len(fields) > 1 && filepath.Base(fields[0]) == "plangate" && fields[1] == "hook" {
					return true
				}
			}
		}
	}
	return false
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(slice []string) []string {
	if len(slice) == 0 {
		return []string{}
	}

	keys := make(map[string]bool)
	result := make([]string, 0, len(slice))

	for _, item := range slice {
		if !keys[item] {
			keys[item] = true
			result = append(result, item)
		}
	}

	return result
}
