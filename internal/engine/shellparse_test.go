// Copyright 2026 The Plangate Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"testing"
)

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want string
	}{
		// Basic passthrough
		{"simple", "rm -rf /", "rm -rf /"},
		{"empty", "", ""},
		{"whitespace", "  ls  -la  ", "ls -la"},

		// Quote stripping evasion vectors
		{"single quotes", "'rm' -rf /", "rm -rf /"},
		{"double quotes", `"rm" -rf /`, "rm -rf /"},
		{"mixed quotes", `'rm' "-rf" /`, "rm -rf /"},
		{"quotes around arg", `rm '-rf' /`, "rm -rf /"},
		{"quoted spaces", `echo "hello world"`, "echo hello world"},
		{"single quoted spaces", `echo 'hello world'`, "echo hello world"},

		// Backslash escaping evasion vector
		{"backslash escape", `r\m -rf /`, "rm -rf /"},
		{"backslash in middle", `ca\t /etc/passwd`, "cat /etc/passwd"},
		{"multiple backslashes", `r\m -r\f /`, "rm -rf /"},

		// Env var prefix stripping
		{"env prefix", "FOO=bar rm -rf /", "rm -rf /"},
		{"multiple env", "FOO=bar BAZ=qux rm -rf /", "rm -rf /"},
		{"env with path", "PATH=/usr/bin:/bin ls", "ls"},
		{"only env", "FOO=bar", ""},

		// Compound commands
		{"and", "rm -rf / && echo done", "rm -rf / && echo done"},
		{"or", "rm -rf / || echo failed", "rm -rf / && echo failed"},
		{"semicolon", "rm -rf /; echo done", "rm -rf / && echo done"},
		{"pipe", "cat /etc/passwd | grep root", "cat /etc/passwd && grep root"},
		{"complex compound", "'rm' -rf / && echo done", "rm -rf / && echo done"},

		// Edge cases
		{"empty quotes", `'' ls`, "ls"},
		{"nested double in single", `'he said "hi"' arg`, `he said "hi" arg`},
		{"escaped delimiter", `echo 'a&&b'`, "echo a&&b"},
		{"backticks preserved", "echo `whoami`", "echo `whoami`"},
		{"dollar expansion preserved", "echo $(whoami)", "echo $(whoami)"},
		{"backslash at end", `rm\`, `rm\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCommand(tt.cmd)
			if got != tt.want {
				t.Errorf("NormalizeCommand(%q) = %q, want %q", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestSplitCompoundCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want []string
	}{
		{"simple", "ls", []string{"ls"}},
		{"and", "a && b", []string{"a", "b"}},
		{"or", "a || b", []string{"a", "b"}},
		{"semicolon", "a ; b", []string{"a", "b"}},
		{"pipe", "a | b", []string{"a", "b"}},
		{"mixed", "a && b | c ; d", []string{"a", "b", "c", "d"}},
		{"quoted pipe", "echo 'a|b'", []string{"echo 'a|b'"}},
		{"quoted and", `echo "a&&b"`, []string{`echo "a&&b"`}},
		{"empty", "", nil},
		{"empty segments", "a ;; b", []string{"a", "b"}},
		{"newline", "cd src\ntouch src/A.kt", []string{"cd src", "touch src/A.kt"}},
		{"escaped semicolon", `find . -exec rm {} \;`, []string{`find . -exec rm {} \;`}},
		{"redirect stays", "echo hi > src/A.kt", []string{"echo hi > src/A.kt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCompoundCommand(tt.cmd)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitCompoundCommand(%q) = %v (len %d), want %v (len %d)",
					tt.cmd, got, len(got), tt.want, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeCommand_EvasionVectors(t *testing.T) {
	// All of these should normalize to "rm -rf /"
	evasions := []string{
		"rm -rf /",
		"'rm' -rf /",
		`"rm" -rf /`,
		`r\m -rf /`,
		`'r'm -rf /`,
		`FOO=bar rm -rf /`,
	}
	for _, cmd := range evasions {
		got := NormalizeCommand(cmd)
		if got != "rm -rf /" {
			t.Errorf("NormalizeCommand(%q) = %q, want %q", cmd, got, "rm -rf /")
		}
	}
}

func TestPathTokens(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want []string
	}{
		{"words", "cp a src/b", []string{"cp", "a", "src/b"}},
		{"redirect glued", "echo hi >src/A.kt", []string{"echo", "hi", "src/A.kt"}},
		{"append", "echo hi >>src/A.kt", []string{"echo", "hi", "src/A.kt"}},
		{"quotes split", `python -c "open('src/a.py','w')"`, []string{"python", "-c", "open(", "src/a.py", ",", "w", ")"}},
		{"tabs and newlines", "ls\tsrc\nwc", []string{"ls", "src", "wc"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pathTokens(tt.cmd)
			if len(got) != len(tt.want) {
				t.Fatalf("pathTokens(%q) = %q, want %q", tt.cmd, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTrimCandidate(t *testing.T) {
	tests := []struct {
		tok  string
		want string
	}{
		{"src/A.kt;", "src/A.kt"},
		{"src/A.kt&&", "src/A.kt"},
		{"src/a,", "src/a"},
		{"(src/a)", "src/a"},
		{"$(src/gen.sh)", "src/gen.sh"},
		{"$HOME/src", "$HOME/src"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := trimCandidate(tt.tok); got != tt.want {
			t.Errorf("trimCandidate(%q) = %q, want %q", tt.tok, got, tt.want)
		}
	}
}
