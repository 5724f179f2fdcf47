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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	src := []byte(`# Login feature

## Steps

- [x] Add Email value object
- [ ] Wire **login** service
- [ ] Controller tests

` + "```" + `
- [ ] not a task, inside a code block
` + "```" + `
`)

	p := ParseProgress(src)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Done)
	assert.Equal(t, 33, p.Percent())
	require.Len(t, p.Open, 2)
	assert.Equal(t, "Wire login service", p.Open[0])
	assert.Equal(t, "Controller tests", p.Open[1])
}

func TestParseProgress_NoTasks(t *testing.T) {
	p := ParseProgress([]byte("just prose\n"))
	assert.Zero(t, p.Total)
	assert.Zero(t, p.Percent())
	assert.Empty(t, p.Open)
}

func TestReadProgress(t *testing.T) {
	root := t.TempDir()
	writePlan(t, root, "p", fullDocs("- [x] a\n- [x] b\n"))

	plans := NewResolver(root).ListSubPlans()
	require.Len(t, plans, 1)

	p, err := ReadProgress(plans[0])
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent())

	_, err = ReadProgress(SubPlan{Name: "gone", Dir: root + "/gone"})
	assert.Error(t, err)
}
