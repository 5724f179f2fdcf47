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

// Package sdk embeds plangate's gates in agent runtimes that call tool
// functions in-process instead of through a hook command.
//
// A Gate loads the project configuration, reads the project's plan tree and
// keeps reminder markers like the hook does. Wrapped tool functions are
// evaluated before they run; a blocked call returns *ErrBlocked without
// invoking the function.
//
// Basic usage:
//
//	gate, err := sdk.New("/path/to/project")
//	safeEdit := gate.Wrap("Edit", edit)
//	ctx = sdk.WithSession(ctx, sessionID)
//	result, err := safeEdit(ctx, map[string]any{"file_path": "src/Order.kt"})
//	// If blocked: err is *ErrBlocked
package sdk

import "fmt"

// ErrBlocked is returned when a tool call is blocked by a gate.
type ErrBlocked struct {
	// Tool is the tool that was blocked (e.g. "Edit").
	Tool string

	// Gate is the first gate that blocked.
	Gate string

	// Message is the explanation shown to the agent.
	Message string
}

// Error implements the error interface.
func (e *ErrBlocked) Error() string {
	if e.Gate != "" {
		return fmt.Sprintf("plangate: blocked %q by gate %q: %s", e.Tool, e.Gate, e.Message)
	}
	return fmt.Sprintf("plangate: blocked %q: %s", e.Tool, e.Message)
}
