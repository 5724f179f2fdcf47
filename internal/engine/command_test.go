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
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestCommandClassifier(t *testing.T) *CommandClassifier {
	t.Helper()
	return NewCommandClassifier(NewPathClassifier(defaultConfig(t).Paths))
}

func TestMutationSignal(t *testing.T) {
	cc := newTestCommandClassifier(t)

	tests := []struct {
		name   string
		cmd    string
		signal string // empty: not mutating
	}{
		// Write verbs.
		{"touch", "touch src/A.kt", "verb"},
		{"mkdir", "mkdir -p src/main/new", "verb"},
		{"sudo rm", "sudo rm src/A.kt", "verb"},
		{"cp", "cp src/A.kt src/B.kt", "verb"},
		{"mv after cd", "cd /repo && mv src/a src/b", "verb"},
		{"git checkout path", "git checkout -- src/A.kt", "vcs-write"},
		{"git apply", "git apply fix.patch src/", "vcs-write"},

		// In-place editors.
		{"sed -i", "sed -i 's/a/b/' src/A.kt", "in-place"},
		{"sed -Ei", "sed -Ei 's/a/b/' src/A.kt", "in-place"},
		{"perl -pi", "perl -pi -e 's/a/b/' src/A.kt", "in-place"},
		{"sed --in-place", "sed --in-place 's/a/b/' src/A.kt", "in-place"},
		{"sed -i.bak", "sed -i.bak 's/a/b/' src/A.kt", "in-place"},
		{"ruby -pi", "ruby -pi -e 'gsub(/a/, \"b\")' src/a.rb", "in-place"},
		{"perl -i after -p", "perl -p -i -e 's/a/b/' src/A.kt", "in-place"},

		// Redirection.
		{"tee", "cat x | tee src/B.kt", "tee"},
		{"echo redirect", "echo hi > src/File.kt", "echo-redirect"},
		{"echo redirect glued", "echo hi >src/File.kt", "echo-redirect"},
		{"printf append", "printf x >> src/A.kt", "echo-redirect"},
		{"ls redirect into zone", "ls > src/listing.txt", "zone-redirect"},
		{"quoted redirect target", `ls >> "src/out.txt"`, "zone-redirect"},

		// Embedded interpreters.
		{"python open w", `python3 -c "open('src/a.py','w').write('x')"`, "interpreter-write"},
		{"python open a", `python -c "open('/repo/src/a.py', 'a')"`, "interpreter-write"},
		{"python pathlib", `python3 -c "from pathlib import Path; Path('src/a.txt').write_text('x')"`, "interpreter-write"},
		{"python open r+", `python -c "open('src/a.py','r+')"`, "interpreter-write"},
		{"python open rb+", `python3 -c "f = open('src/a.bin', 'rb+')"`, "interpreter-write"},
		{"node writeFileSync", `node -e "fs.writeFileSync('src/x.js', 'a')"`, "interpreter-write"},

		// Read-only inspection.
		{"cat", "cat src/A.kt", ""},
		{"ls and grep", "ls src && grep -rn foo src/", ""},
		{"find", "find src -name '*.kt'", ""},
		{"head tail wc", "head src/A.kt | tail -n 2 | wc -l", ""},
		{"rg", "rg TODO src", ""},
		{"stat tree less", "stat src/A.kt; tree src; less src/A.kt", ""},
		{"sed print", "sed -n 1p src/A.kt", ""},
		{"perl module flag", "perl -Mstrict -ne 'print' src/a.pl", ""},
		{"perl include dir", "perl -Iinc -ne 'print' src/a.pl", ""},
		{"sed script with i", "sed -n '/import/p' src/A.kt", ""},
		{"sed then grep -i", "sed -n 1p src/A.kt | grep -i foo", ""},
		{"python open r", `python3 -c "print(open('src/a.py', 'r').read())"`, ""},
		{"git diff", "git diff src/", ""},
		{"stderr redirect", "cat src/A.kt 2> /dev/null", ""},
		{"stderr to stdout", "cat src/A.kt 2>&1 | less", ""},
		{"dev null", "cat src/A.kt > /dev/null", ""},
		{"python read", `python3 -c "print(open('src/a.py').read())"`, ""},
		{"verb inside path", "cat src/install/notes.txt", ""},
		{"echo zone word", "echo src", ""},

		// No zone reference at all.
		{"touch elsewhere", "touch build/out.txt", ""},
		{"echo redirect elsewhere", "echo hi > notes.txt", ""},
		{"zone-like word", "touch mysrc/a", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, ok := cc.MutationSignal(tt.cmd)
			assert.Equal(t, tt.signal != "", ok, "mutating")
			assert.Equal(t, tt.signal, signal)
			assert.Equal(t, ok, cc.IsMutating(tt.cmd))
		})
	}
}

func TestMutationSignal_ReadUtilityRedirectIsAWrite(t *testing.T) {
	// Output redirection after a read utility counts as a write even when
	// the target is outside the zone; the classifier is a heuristic.
	cc := newTestCommandClassifier(t)
	assert.True(t, cc.IsMutating("cat src/A.kt > /tmp/copy.kt"))
	assert.Empty(t, cc.GuardedTargets("cat /tmp/x > /tmp/y"))
}

func TestExtractTargetPaths(t *testing.T) {
	cc := newTestCommandClassifier(t)

	tests := []struct {
		name string
		cmd  string
		want []string
	}{
		{"ordered with duplicates", "cp src/a.kt src/b.kt; cat src/a.kt", []string{"src/a.kt", "src/b.kt", "src/a.kt"}},
		{"redirect target", "echo hi >src/A.kt", []string{"src/A.kt"}},
		{"append target", "echo hi >> ./src/A.kt && ls", []string{"./src/A.kt"}},
		{"quoted", `python -c "open('src/a.py','w')"`, []string{"src/a.py"}},
		{"subshell", "$(touch src/a)", []string{"src/a"}},
		{"no zone", "echo hi > mysrc/a", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cc.ExtractTargetPaths(tt.cmd))
		})
	}
}

func TestGuardedTargets(t *testing.T) {
	cc := newTestCommandClassifier(t)

	assert.Equal(t, []string{"src/A.kt"}, cc.GuardedTargets("touch docs/src/x.md src/A.kt src/app.yml"))
	assert.Empty(t, cc.GuardedTargets("touch docs/src/x.md"))
	assert.True(t, cc.IsMutating("touch docs/src/x.md"), "exemption is applied to targets, not to intent")
}

func TestCommandClassifier_CustomZones(t *testing.T) {
	cc := NewCommandClassifier(NewPathClassifier(PathRules{GuardedZones: []string{"app", "lib"}}))

	assert.True(t, cc.IsMutating("echo x > lib/a.rb"))
	assert.True(t, cc.IsMutating("ls > app/out"))
	assert.False(t, cc.IsMutating("echo x > src/a.rb"))
	assert.Equal(t, []string{"app/a", "lib/b"}, cc.ExtractTargetPaths("mv app/a lib/b"))
}
