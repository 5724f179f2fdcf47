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

package plan

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	taskListParser     goldmark.Markdown
	taskListParserOnce sync.Once
)

func getTaskListParser() goldmark.Markdown {
	taskListParserOnce.Do(func() {
		taskListParser = goldmark.New(goldmark.WithExtensions(extension.TaskList))
	})
	return taskListParser
}

// Progress summarizes the task list of a plan document.
type Progress struct {
	Done  int
	Total int

	// Open holds the text of each unchecked item, in document order.
	Open []string
}

// Percent returns completion as an integer percentage. An empty task list
// counts as 0%.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

// ParseProgress counts the GFM task-list items in a Markdown document.
//
// Unlike SubPlan.HasUnchecked, which looks for the literal marker, this
// follows Markdown structure: a "- [ ]" inside a code block is not a task.
func ParseProgress(source []byte) Progress {
	doc := getTaskListParser().Parser().Parse(text.NewReader(source))

	var p Progress
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != extast.KindTaskCheckBox {
			return ast.WalkContinue, nil
		}
		box := n.(*extast.TaskCheckBox)
		p.Total++
		if box.IsChecked {
			p.Done++
		} else {
			p.Open = append(p.Open, itemText(box, source))
		}
		return ast.WalkSkipChildren, nil
	})
	return p
}

// itemText collects the inline text that follows a check box.
func itemText(box ast.Node, source []byte) string {
	var b strings.Builder
	for n := box.NextSibling(); n != nil; n = n.NextSibling() {
		collectText(n, source, &b)
	}
	return strings.TrimSpace(b.String())
}

func collectText(n ast.Node, source []byte, b *strings.Builder) {
	if t, ok := n.(*ast.Text); ok {
		b.Write(t.Segment.Value(source))
		if t.SoftLineBreak() || t.HardLineBreak() {
			b.WriteByte(' ')
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		collectText(c, source, b)
	}
}

// ReadProgress parses the plan document of a sub-plan.
func ReadProgress(p SubPlan) (Progress, error) {
	data, err := os.ReadFile(p.DocPath(DocPlan))
	if err != nil {
		return Progress{}, fmt.Errorf("plan: read progress of %s: %w", p.Name, err)
	}
	return ParseProgress(data), nil
}
