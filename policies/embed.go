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

// Package policies embeds the default gate configuration.
package policies

import (
	_ "embed"
)

// DefaultFile is the file name `plangate init` writes the defaults to.
const DefaultFile = ".plangate.yaml"

//go:embed default.yaml
var defaultYAML []byte

// Default returns a copy of the embedded default configuration YAML.
func Default() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}
