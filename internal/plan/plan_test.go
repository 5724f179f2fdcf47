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
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePlan creates a sub-plan directory on disk with the given documents.
func writePlan(t *testing.T, root, name string, docs map[Document]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for d, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(d)), []byte(content), 0o644))
	}
	return dir
}

func fullDocs(planContent string) map[Document]string {
	return map[Document]string{
		DocPlan:      planContent,
		DocContext:   "context",
		DocChecklist: "checklist",
	}
}

func TestResolve_RootUnusable(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		res := NewResolver("").Resolve()
		assert.ErrorIs(t, res.Err, ErrNoRoot)
		assert.Empty(t, res.Plans)
		assert.Empty(t, NewResolver("").FindActive())
	})

	t.Run("missing", func(t *testing.T) {
		r := NewResolver(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, r.Resolve().Err)
		assert.Empty(t, r.ListSubPlans())
		assert.Empty(t, r.FindActive())
	})

	t.Run("not a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plan")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		r := NewResolver(file)
		assert.Error(t, r.Resolve().Err)
		assert.Empty(t, r.FindActive())
	})
}

func TestResolve_ValidityAndActivity(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, "only-plan", map[Document]string{DocPlan: "- [ ] step\n"})
	writePlan(t, root, "all-done", fullDocs("- [x] one\n- [x] two\n"))
	writePlan(t, root, "active", fullDocs("# Plan\n\n- [x] one\n- [ ] two\n"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.md"), []byte("- [ ]"), 0o644))

	r := NewResolver(root)
	plans := r.ListSubPlans()
	require.Len(t, plans, 3, "files directly under the root are not sub-plans")

	byName := map[string]SubPlan{}
	for _, p := range plans {
		byName[p.Name] = p
	}

	onlyPlan := byName["only-plan"]
	assert.False(t, onlyPlan.IsValid())
	assert.True(t, onlyPlan.HasUnchecked)
	assert.False(t, onlyPlan.IsActive())
	assert.Equal(t, []Document{DocContext, DocChecklist}, onlyPlan.Missing())

	done := byName["all-done"]
	assert.True(t, done.IsValid())
	assert.False(t, done.IsActive())

	active := byName["active"]
	assert.True(t, active.IsActive())
	assert.Equal(t, filepath.Join(root, "active", "plan.md"), active.DocPath(DocPlan))

	got := r.FindActive()
	require.Len(t, got, 1)
	assert.Equal(t, "active", got[0].Name)
}

func TestResolve_DocumentDirectoryDoesNotCount(t *testing.T) {
	root := t.TempDir()
	dir := writePlan(t, root, "odd", map[Document]string{DocPlan: "- [ ] a\n", DocContext: "c"})
	require.NoError(t, os.Mkdir(filepath.Join(dir, string(DocChecklist)), 0o755))

	plans := NewResolver(root).ListSubPlans()
	require.Len(t, plans, 1)
	assert.False(t, plans[0].IsValid())
	assert.False(t, plans[0].Present[DocChecklist])
}

func TestResolve_FollowsSymlinkedSubPlan(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	target := writePlan(t, elsewhere, "shared", fullDocs("- [ ] step\n"))
	stray := filepath.Join(elsewhere, "notes.md")
	require.NoError(t, os.WriteFile(stray, []byte("- [ ]"), 0o644))

	if err := os.Symlink(target, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(stray, filepath.Join(root, "file-link")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "gone"), filepath.Join(root, "dangling")))

	r := NewResolver(root)
	plans := r.ListSubPlans()
	require.Len(t, plans, 1, "only the directory link is a sub-plan")
	assert.Equal(t, "linked", plans[0].Name)
	assert.True(t, plans[0].IsValid())

	active := r.FindActive()
	require.Len(t, active, 1)
	assert.Equal(t, filepath.Join(root, "linked", "plan.md"), active[0].DocPath(DocPlan))
}

func TestResolve_MonotonicInDocuments(t *testing.T) {
	root := t.TempDir()
	dir := writePlan(t, root, "growing", map[Document]string{DocPlan: "- [ ] a\n"})
	r := NewResolver(root)

	assert.False(t, r.ListSubPlans()[0].IsValid())

	require.NoError(t, os.WriteFile(filepath.Join(dir, string(DocContext)), nil, 0o644))
	assert.False(t, r.ListSubPlans()[0].IsValid())

	require.NoError(t, os.WriteFile(filepath.Join(dir, string(DocChecklist)), nil, 0o644))
	assert.True(t, r.ListSubPlans()[0].IsValid())
	assert.Len(t, r.FindActive(), 1)
}

type brokenReadFS struct {
	fstest.MapFS
	broken string
}

func (b brokenReadFS) ReadFile(name string) ([]byte, error) {
	if name == b.broken {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrPermission}
	}
	return b.MapFS.ReadFile(name)
}

func TestResolve_UnreadablePlanSkipsOnlyThatSubPlan(t *testing.T) {
	fsys := brokenReadFS{
		MapFS: fstest.MapFS{
			"a/plan.md":      {Data: []byte("- [ ] a")},
			"a/context.md":   {Data: []byte("c")},
			"a/checklist.md": {Data: []byte("c")},
			"b/plan.md":      {Data: []byte("- [ ] b")},
			"b/context.md":   {Data: []byte("c")},
			"b/checklist.md": {Data: []byte("c")},
		},
		broken: "a/plan.md",
	}

	res := NewResolverFS("/plans", fsys).Resolve()
	require.NoError(t, res.Err)
	require.Len(t, res.Plans, 2)

	active := res.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Name)
	assert.Equal(t, filepath.Join("/plans", "b"), active[0].Dir)

	for _, p := range res.Plans {
		if p.Name == "a" {
			assert.ErrorIs(t, p.Err, fs.ErrPermission)
			assert.False(t, p.IsActive())
		}
	}
}

func TestActive_MostRecentFirst(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(time.Hour)
	file := func(data string, mt time.Time) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte(data), ModTime: mt}
	}
	fsys := fstest.MapFS{
		"old-plan/plan.md":         file("- [ ] x", old),
		"old-plan/context.md":      file("c", old),
		"old-plan/checklist.md":    file("c", old),
		"latest-plan/plan.md":      file("- [ ] x", old),
		"latest-plan/context.md":   file("c", recent),
		"latest-plan/checklist.md": file("c", old),
		"tie-b/plan.md":            file("- [ ] x", old),
		"tie-b/context.md":         file("c", old),
		"tie-b/checklist.md":       file("c", old),
	}

	active := NewResolverFS("plans", fsys).FindActive()
	require.Len(t, active, 3)
	assert.Equal(t, "latest-plan", active[0].Name)
	assert.Equal(t, recent, active[0].UpdatedAt)
	assert.Equal(t, "old-plan", active[1].Name)
	assert.Equal(t, "tie-b", active[2].Name)
}
