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

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peg/plangate/internal/detect"
	"github.com/peg/plangate/internal/engine"
	"github.com/peg/plangate/policies"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	var noPlanDir bool
	var detectLayout bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration and create the plan directory",
		Long: `Write the default configuration to .plangate.yaml in the project root.

With --detect (the default) the project is inspected first: guarded zones
are set to the source directories found, layer documents are limited to
the layers present, and an existing plan directory is reused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			projectDir := resolveProjectDir(opts, "")
			path := configPath(opts, projectDir)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("cli: config file already exists at %s (use --force to overwrite)", path)
			} else if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("cli: check config file %s: %w", path, err)
			}

			data := policies.Default()
			if detectLayout {
				result, err := detect.Project(projectDir)
				if err != nil {
					return fmt.Errorf("cli: detect project layout: %w", err)
				}
				printDetection(out, result)
				if data, err = tailorConfig(data, result); err != nil {
					return fmt.Errorf("cli: tailor config: %w", err)
				}
			}

			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("cli: write config file %s: %w", path, err)
			}
			if _, err := fmt.Fprintf(out, "Created %s\n", path); err != nil {
				return fmt.Errorf("cli: write init output: %w", err)
			}

			if noPlanDir {
				return nil
			}
			cfg, err := engine.NewFileStore(path).Load()
			if err != nil {
				return fmt.Errorf("cli: load written config: %w", err)
			}
			root := cfg.PlanRoot(projectDir)
			if root == "" {
				return nil
			}
			if err := os.MkdirAll(root, 0o755); err != nil {
				return fmt.Errorf("cli: create plan directory %s: %w", root, err)
			}
			fmt.Fprintf(out, "Plan directory: %s\n", root)
			fmt.Fprintln(out, "  Each task gets a sub-directory with plan.md, context.md and checklist.md.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&noPlanDir, "no-plan-dir", false, "Do not create the plan directory")
	cmd.Flags().BoolVar(&detectLayout, "detect", true, "Tailor the config to the detected project layout")

	return cmd
}

func printDetection(w io.Writer, r *detect.Result) {
	if len(r.SourceRoots) > 0 {
		fmt.Fprintf(w, "Source roots: %s\n", strings.Join(r.SourceRoots, ", "))
	}
	if len(r.Layers) > 0 {
		fmt.Fprintf(w, "Layers: %s\n", strings.Join(r.Layers, ", "))
	}
	if len(r.BuildTools) > 0 {
		fmt.Fprintf(w, "Build tools: %s\n", strings.Join(r.BuildTools, ", "))
	}
	if r.PlanDir != "" {
		fmt.Fprintf(w, "Existing plan directory: %s\n", r.PlanDir)
	}
	if r.ClaudeCode && !r.HookInstalled {
		fmt.Fprintln(w, "Claude Code project found; run 'plangate setup claude-code' to install the hook.")
	}
}

// tailorConfig rewrites the default config document for the detected
// layout. The document is returned unchanged when nothing was detected, so
// its formatting survives.
func tailorConfig(data []byte, r *detect.Result) ([]byte, error) {
	if len(r.SourceRoots) == 0 && len(r.Layers) == 0 && r.PlanDir == "" {
		return data, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config is not a mapping")
	}
	root := doc.Content[0]

	if r.PlanDir != "" {
		if n := mappingValue(root, "plan_dir"); n != nil {
			n.Value = r.PlanDir
		}
	}
	if len(r.SourceRoots) > 0 {
		if n := mappingValue(mappingValue(root, "paths"), "guarded_zones"); n != nil {
			setStrings(n, r.SourceRoots)
		}
	}
	if len(r.Layers) > 0 {
		if n := mappingValue(mappingValue(root, "layers"), "docs"); n != nil {
			keepLayers(n, r.Layers)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setStrings(seq *yaml.Node, values []string) {
	seq.Kind = yaml.SequenceNode
	seq.Tag = "!!seq"
	seq.Content = seq.Content[:0]
	for _, v := range values {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
	}
}

// keepLayers drops layer document entries whose name is not in names.
func keepLayers(seq *yaml.Node, names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	filtered := seq.Content[:0]
	for _, item := range seq.Content {
		if name := mappingValue(item, "name"); name != nil && !keep[name.Value] {
			continue
		}
		filtered = append(filtered, item)
	}
	seq.Content = filtered
}
