package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/namedb/internal/store"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the command tree with a private data dir and an empty
// environment.
func runCLI(t *testing.T, dataDir string, args ...string) cliResult {
	t.Helper()
	cmd := newRootCommand(&RootOptions{env: map[string]string{}})
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))

	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	if data != nil {
		resp.Data = data
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	return resp
}

func TestCLI_BasicScenario(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, dir, "add", "Buy", "milk")
	require.NoError(t, res.err)
	assert.Equal(t, "added 1\tBuy milk\n", res.stdout)

	res = runCLI(t, dir, "add", "Call Bob")
	require.NoError(t, res.err)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tBuy milk\n2\tCall Bob\n", res.stdout)

	res = runCLI(t, dir, "update", "1", "Buy", "bread")
	require.NoError(t, res.err)
	assert.Equal(t, "updated 1\n", res.stdout)

	res = runCLI(t, dir, "delete", "2")
	require.NoError(t, res.err)
	assert.Equal(t, "deleted 2\n", res.stdout)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tBuy bread\n", res.stdout)

	_, err := os.Stat(filepath.Join(dir, "example.db"))
	assert.NoError(t, err, "default database name")
}

func TestCLI_AddEachPreservesOrder(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, dir, "--format", "json", "add", "--each", "A", "B", " ", "C")
	require.NoError(t, res.err)

	var data AddResult
	resp := decodeResponse(t, res.stdout, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []store.Record{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}, data.Records)
	assert.Equal(t, 1, data.Skipped)
}

func TestCLI_AddBlankIsSkipped(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, dir, "add", "   ")
	require.NoError(t, res.err)
	assert.Equal(t, "skipped 1 blank name(s)\n", res.stdout)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "no records\n", res.stdout)
}

func TestCLI_ListJSONEmpty(t *testing.T) {
	res := runCLI(t, t.TempDir(), "--format", "json", "list")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"status":"ok","data":{"records":[]}}`, res.stdout)
}

func TestCLI_UpdateMissingIDExitsOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, runCLI(t, dir, "add", "keep").err)

	res := runCLI(t, dir, "--format", "json", "update", "7", "other")
	require.Error(t, res.err)
	assert.Equal(t, ExitNoChange, GetExitCode(res.err))
	assert.JSONEq(t, `{"status":"error","error":{"code":"NOT_FOUND","message":"no record with id 7"}}`, res.stdout)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tkeep\n", res.stdout)
}

func TestCLI_UpdateBlankChangesNothing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, runCLI(t, dir, "add", "keep").err)

	res := runCLI(t, dir, "update", "1", " ")
	require.NoError(t, res.err)
	assert.Equal(t, "blank name, nothing changed\n", res.stdout)
}

func TestCLI_DeleteMissingIDExitsOne(t *testing.T) {
	res := runCLI(t, t.TempDir(), "delete", "3")
	require.Error(t, res.err)
	assert.Equal(t, ExitNoChange, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "Error [NOT_FOUND]: no record with id 3")
}

func TestCLI_InvalidID(t *testing.T) {
	res := runCLI(t, t.TempDir(), "--format", "json", "delete", "two")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))

	resp := decodeResponse(t, res.stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidArgument, resp.Error.Code)
}

func TestCLI_ExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(t.TempDir(), "backup", "names.db")

	require.NoError(t, runCLI(t, dir, "add", "--each", "one", "two").err)

	res := runCLI(t, dir, "--format", "json", "export", backup)
	require.NoError(t, res.err)
	var exported TransferResult
	decodeResponse(t, res.stdout, &exported)
	assert.Equal(t, TransferResult{Database: "example.db", Path: backup}, exported)

	require.NoError(t, runCLI(t, dir, "delete", "1").err)
	require.NoError(t, runCLI(t, dir, "add", "three").err)

	res = runCLI(t, dir, "import", backup)
	require.NoError(t, res.err)
	assert.Equal(t, "imported "+backup+" into example.db\n", res.stdout)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tone\n2\ttwo\n", res.stdout)
}

func TestCLI_ImportIntoOtherDatabase(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(t.TempDir(), "copy.db")

	require.NoError(t, runCLI(t, dir, "--db", "a.db", "add", "from a").err)
	require.NoError(t, runCLI(t, dir, "--db", "a.db", "export", backup).err)
	require.NoError(t, runCLI(t, dir, "--db", "b.db", "import", backup).err)

	res := runCLI(t, dir, "--db", "b.db", "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tfrom a\n", res.stdout)
}

func TestCLI_ImportNotADatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, runCLI(t, dir, "add", "keep").err)

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, bytes.Repeat([]byte("not sqlite "), 100), 0o600))

	res := runCLI(t, dir, "--format", "json", "import", junk)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	resp := decodeResponse(t, res.stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(store.CodeImportFailed), resp.Error.Code)

	res = runCLI(t, dir, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "1\tkeep\n", res.stdout)
}

func TestCLI_ImportMissingFile(t *testing.T) {
	res := runCLI(t, t.TempDir(), "--format", "json", "import", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, res.err)
	resp := decodeResponse(t, res.stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(store.CodeImportFailed), resp.Error.Code)
}

func TestCLI_InvalidDatabaseName(t *testing.T) {
	res := runCLI(t, t.TempDir(), "--format", "json", "--db", "../escape.db", "list")
	require.Error(t, res.err)
	resp := decodeResponse(t, res.stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidConfig, resp.Error.Code)
}

func TestCLI_ConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "namedb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dataDir+"\ndatabase: from-config.db\n"), 0o600))

	cmd := newRootCommand(&RootOptions{env: map[string]string{}})
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "add", "configured"})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(dataDir, "from-config.db"))
	assert.NoError(t, err)
}

func TestCLI_StorageUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	res := runCLI(t, filepath.Join(blocker, "sub"), "--format", "json", "list")
	require.Error(t, res.err)
	resp := decodeResponse(t, res.stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(store.CodeStorageUnavailable), resp.Error.Code)
}
