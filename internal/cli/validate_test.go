package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, opts *RootOptions, path string) (*bytes.Buffer, *bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{path})
	return buf, errBuf, cmd.Execute()
}

func TestValidateValidCatalog(t *testing.T) {
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, writeCatalog(t, goldCatalog))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Catalog valid (2 generations)")
}

func TestValidateValidCatalogJSON(t *testing.T) {
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "json"}, writeCatalog(t, goldCatalog))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(2), data["generations"])
	assert.Equal(t, float64(1), data["administrators"])
}

func TestValidateCatalogDirectory(t *testing.T) {
	dir := filepath.Join("..", "catalogspec", "testdata", "split")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("split catalog fixture not found")
	}

	buf, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Catalog valid")
}

func TestValidateNonExistentPath(t *testing.T) {
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, "/nonexistent/catalog.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, buf.String(), "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestValidatePricedAutoUnlock(t *testing.T) {
	path := writeCatalog(t, `administrators: ["ops"]
generations: [
	{name: "Genesis"},
	{name: "Aura", auto_unlock: true, price: 5},
]
`)
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), "E201")
}

func TestValidateUnknownField(t *testing.T) {
	path := writeCatalog(t, `administrators: ["ops"]
generations: [{name: "Genesis"}]
colour: "blue"
`)
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "json"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
}

func TestValidateForwardPrerequisite(t *testing.T) {
	path := writeCatalog(t, `administrators: ["ops"]
generations: [
	{name: "Genesis"},
	{name: "Gold", prerequisite: 2},
	{name: "Silver"},
]
`)
	buf, _, err := runValidateCmd(t, &RootOptions{Format: "json"}, path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "prerequisite 2 is not an earlier entry")

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["valid"])
	errs := data["errors"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.NotZero(t, first["line"])
}

func TestValidateSyntaxError(t *testing.T) {
	path := writeCatalog(t, `generations: [{name: "Genesis"`)
	_, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateVerboseOutput(t *testing.T) {
	buf, errBuf, err := runValidateCmd(t, &RootOptions{Format: "text", Verbose: true}, writeCatalog(t, goldCatalog))
	require.NoError(t, err)

	// Verbose logs go to stderr to avoid corrupting JSON output
	assert.Contains(t, errBuf.String(), "Loaded 2 generation(s)")
	assert.NotContains(t, buf.String(), "Loaded")
}
