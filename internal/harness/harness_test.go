package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/namedb/internal/store"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "backup_restore.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)

	a, err := MarshalSnapshot(TraceSnapshot{ScenarioName: scenario.Name, Trace: first.Trace})
	require.NoError(t, err)
	b, err := MarshalSnapshot(TraceSnapshot{ScenarioName: scenario.Name, Trace: second.Trace})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_DetectsWrongExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong
description: every expectation here is wrong
steps:
  - op: create
    name: a
    expect: {ok: false, id: 9}
  - op: delete
    id: 1
    expect: {changed: false}
  - op: list
    expect: {error: STALE_HANDLE}
  - op: list
    expect:
      records: [{id: 1, name: a}]
assertions:
  - type: final_records
    records: [{id: 1, name: a}]
  - type: trace_count
    op: create
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "expected ok=false, got true")
	assert.Contains(t, joined, "expected id 9, got 1")
	assert.Contains(t, joined, "expected changed=false, got true")
	assert.Contains(t, joined, "expected error STALE_HANDLE, got ok")
	assert.Contains(t, joined, "expected records")
	assert.Contains(t, joined, "Assertion failed: final_records")
	assert.Contains(t, joined, "Assertion failed: trace_count")
}

func TestRun_UnexpectedErrorFailsStep(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
description: import of a missing file without an expect clause
steps:
  - op: import
    path: nowhere.db
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] (import): unexpected error")
	assert.Equal(t, string(store.CodeImportFailed), result.Trace[0].Outcome)
}

func TestRun_UnknownHandle(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unknown_handle
description: steps on a handle that was never opened
steps:
  - op: list
    handle: ghost
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown handle "ghost"`)
}

func TestRun_ExportWritesIntoScenarioDir(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: export_dir
description: export lands under the files directory
steps:
  - op: create
    name: x
  - op: export
    path: nested/out.db
`))
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := Run(context.Background(), scenario, dir)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	info, err := os.Stat(filepath.Join(dir, "files", "nested", "out.db"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Nil(t, result.Trace[1].Result)
}

func TestRun_OpenTwiceFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: open_twice
description: a handle name can only be opened once
steps:
  - op: open
    handle: b
  - op: open
    handle: b
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, OutcomeOK, result.Trace[0].Outcome)
	assert.Equal(t, OutcomeError, result.Trace[1].Outcome)
}
