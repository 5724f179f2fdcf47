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

// Package plan resolves work-plan state from the plan tree.
//
// A plan root holds one directory per sub-plan. A sub-plan is valid when
// plan.md, context.md and checklist.md all exist as regular files, and
// active when it is valid and plan.md still contains an unchecked item
// ("- [ ]"). State is recomputed on every call; nothing is cached.
//
// Resolution fails open. A missing root, an unreadable directory or an
// unreadable document never produces an error for the caller to handle:
// the affected sub-plans are simply not active.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Document names one of the required sub-plan documents.
type Document string

const (
	DocPlan      Document = "plan.md"
	DocContext   Document = "context.md"
	DocChecklist Document = "checklist.md"
)

// RequiredDocuments is the document triad every sub-plan must contain.
var RequiredDocuments = []Document{DocPlan, DocContext, DocChecklist}

// UncheckedMarker denotes incomplete work in plan.md.
const UncheckedMarker = "- [ ]"

// CheckedMarker denotes a finished item in plan.md.
const CheckedMarker = "- [x]"

// SubPlan is the derived state of one sub-plan directory.
type SubPlan struct {
	// Name is the directory name under the plan root.
	Name string

	// Dir is the sub-plan directory path.
	Dir string

	// Present records which required documents exist as regular files.
	Present map[Document]bool

	// HasUnchecked is true when plan.md contains UncheckedMarker.
	HasUnchecked bool

	// UpdatedAt is the latest modification time of the present documents.
	UpdatedAt time.Time

	// Err is set when the sub-plan could not be fully read. A sub-plan
	// with Err is never active.
	Err error
}

// IsValid reports whether all required documents are present.
func (p SubPlan) IsValid() bool {
	for _, d := range RequiredDocuments {
		if !p.Present[d] {
			return false
		}
	}
	return true
}

// IsActive reports whether the sub-plan is valid and has unchecked work.
func (p SubPlan) IsActive() bool {
	return p.Err == nil && p.IsValid() && p.HasUnchecked
}

// Missing returns the required documents that are absent, in triad order.
func (p SubPlan) Missing() []Document {
	var out []Document
	for _, d := range RequiredDocuments {
		if !p.Present[d] {
			out = append(out, d)
		}
	}
	return out
}

// DocPath returns the path of a document inside the sub-plan.
func (p SubPlan) DocPath(d Document) string {
	return filepath.Join(p.Dir, string(d))
}

// Result is the outcome of one scan of the plan root. Err is set when the
// root itself could not be listed; Plans is then empty.
type Result struct {
	Root  string
	Plans []SubPlan
	Err   error
}

// Active returns the active sub-plans, most recently updated first.
func (r Result) Active() []SubPlan {
	var out []SubPlan
	for _, p := range r.Plans {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ErrNoRoot is reported when the plan root is unset.
var ErrNoRoot = errors.New("plan: plan root is not set")

// Resolver scans a plan root.
type Resolver struct {
	root string
	fsys fs.FS
}

// NewResolver returns a resolver over the plan root on the local disk.
// An empty root yields a resolver that never finds plans.
func NewResolver(root string) *Resolver {
	r := &Resolver{root: root}
	if root != "" {
		r.fsys = os.DirFS(root)
	}
	return r
}

// NewResolverFS returns a resolver over fsys. root is used only to build
// the Dir of each sub-plan.
func NewResolverFS(root string, fsys fs.FS) *Resolver {
	return &Resolver{root: root, fsys: fsys}
}

// Root returns the plan root path.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve scans the plan root once. Every sub-plan is evaluated
// independently; a failure in one never aborts its siblings.
func (r *Resolver) Resolve() Result {
	res := Result{Root: r.root}
	if r.fsys == nil {
		res.Err = ErrNoRoot
		return res
	}

	info, err := fs.Stat(r.fsys, ".")
	if err != nil {
		res.Err = fmt.Errorf("plan: stat root %q: %w", r.root, err)
		return res
	}
	if !info.IsDir() {
		res.Err = fmt.Errorf("plan: root %q is not a directory", r.root)
		return res
	}

	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		res.Err = fmt.Errorf("plan: list root %q: %w", r.root, err)
		return res
	}

	for _, e := range entries {
		if !r.isDir(e) {
			continue
		}
		res.Plans = append(res.Plans, r.inspect(e.Name()))
	}
	return res
}

// isDir reports whether e is a directory. Symlinks and other non-regular
// entries are resolved through the file system, so a linked sub-plan
// directory counts and a dangling link does not.
func (r *Resolver) isDir(e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type().IsRegular() {
		return false
	}
	info, err := fs.Stat(r.fsys, e.Name())
	return err == nil && info.IsDir()
}

// ListSubPlans returns every sub-plan under the root, or nothing when the
// root is unusable.
func (r *Resolver) ListSubPlans() []SubPlan {
	return r.Resolve().Plans
}

// FindActive returns the active sub-plans, most recently updated first.
func (r *Resolver) FindActive() []SubPlan {
	return r.Resolve().Active()
}

func (r *Resolver) inspect(name string) SubPlan {
	p := SubPlan{
		Name:    name,
		Dir:     filepath.Join(r.root, name),
		Present: make(map[Document]bool, len(RequiredDocuments)),
	}

	for _, d := range RequiredDocuments {
		info, err := fs.Stat(r.fsys, name+"/"+string(d))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		p.Present[d] = true
		if mt := info.ModTime(); mt.After(p.UpdatedAt) {
			p.UpdatedAt = mt
		}
	}

	if !p.Present[DocPlan] {
		return p
	}
	content, err := fs.ReadFile(r.fsys, name+"/"+string(DocPlan))
	if err != nil {
		p.Err = fmt.Errorf("plan: read %s/%s: %w", name, DocPlan, err)
		return p
	}
	p.HasUnchecked = bytes.Contains(content, []byte(UncheckedMarker))
	return p
}
