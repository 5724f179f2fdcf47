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

// Package build holds the version metadata stamped into the plangate
// binary:
//
//	go build -ldflags "-X github.com/peg/plangate/internal/build.version=v0.3.0 \
//	  -X github.com/peg/plangate/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/peg/plangate/internal/build.Date=$(date -u +%FT%TZ)"
//
// A binary installed with `go install` reports its module version instead.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// version is set by ldflags.
var version = "dev"

// Version is the release version, or "dev" for local builds.
var Version = resolveVersion(version, debug.ReadBuildInfo)

// Commit is the short git commit hash. Set by ldflags.
var Commit = "unknown"

// Date is the UTC build timestamp. Set by ldflags.
var Date = "unknown"

func resolveVersion(stamped string, readInfo func() (*debug.BuildInfo, bool)) string {
	if stamped != "" && stamped != "dev" {
		return stamped
	}
	if info, ok := readInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// String returns the two-line version banner printed by `plangate version`.
func String() string {
	return fmt.Sprintf("plangate %s (%s) built %s\nGo %s", Version, Commit, Date, runtime.Version())
}
