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
	"strings"
	"testing"
)

func FuzzNormalizeCommand(f *testing.F) {
	f.Add("rm -rf /")
	f.Add("'rm' -rf /")
	f.Add(`r\m -rf /`)
	f.Add("FOO=bar rm -rf /")
	f.Add("a && b || c ; d | e")
	f.Add(`echo "hello 'world'"`)
	f.Add("")
	f.Add("''''")
	f.Add(`\\\\`)

	f.Fuzz(func(t *testing.T, cmd string) {
		// Must not panic.
		_ = NormalizeCommand(cmd)
		_ = SplitCompoundCommand(cmd)
	})
}

func FuzzCommandClassifier(f *testing.F) {
	f.Add("echo hi > src/A.kt")
	f.Add("cat src/A.kt | grep x")
	f.Add(`python3 -c "open('src/a.py','w').write('x')"`)
	f.Add("sed -i s/a/b/ src/x")
	f.Add("$(touch src/a)")
	f.Add(">>>>src")
	f.Add("")

	cc := NewCommandClassifier(NewPathClassifier(PathRules{GuardedZones: []string{"src"}}))

	f.Fuzz(func(t *testing.T, cmd string) {
		targets := cc.ExtractTargetPaths(cmd)
		for _, p := range targets {
			if p == "" {
				t.Fatal("empty target path")
			}
		}
		if cc.IsMutating(cmd) && len(targets) == 0 {
			t.Fatalf("mutating without a zone target: %q", cmd)
		}
		if !strings.Contains(cmd, "src") && cc.IsMutating(cmd) {
			t.Fatalf("mutating without mentioning the zone: %q", cmd)
		}
	})
}
