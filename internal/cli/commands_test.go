package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genlock/internal/ir"
)

const goldCatalog = `
default_base_uri: "ipfs://hidden/"
administrators: ["ops"]

generations: [
	{name: "Genesis"},
	{name: "Gold", price: 100, base_uri: "ipfs://gold/"},
]
`

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeCatalog(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// initDB creates a database seeded with goldCatalog.
func initDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "genlock.db")
	out, err := execute(t, "--db", db, "init", writeCatalog(t, goldCatalog))
	require.NoError(t, err, out)
	return db
}

func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestInit_FromCatalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "genlock.db")
	out, err := execute(t, "--db", db, "--format", "json", "init", writeCatalog(t, goldCatalog), "--admin", "root")
	require.NoError(t, err, out)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	// enable genesis, default uri, add gold, enable gold, gold available
	assert.Equal(t, int64(5), resp.Seq)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["generations"])
	assert.Equal(t, float64(256), data["max_generations"])
	assert.Equal(t, []interface{}{"ops", "root"}, data["administrators"])
}

func TestInit_WithoutCatalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "genlock.db")
	out, err := execute(t, "--db", db, "init", "--admin", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "1 generation(s), 1 administrator(s), seq 0")
}

func TestInit_Twice(t *testing.T) {
	db := initDB(t)
	_, err := execute(t, "--db", db, "init", "--admin", "ops")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInit_InvalidCatalogLeavesNoDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "genlock.db")
	bad := writeCatalog(t, `administrators: ["ops"]
generations: [{name: "Genesis"}, {name: "Aura", auto_unlock: true, price: 5}]
`)
	out, err := execute(t, "--db", db, "init", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E201")

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInit_CatalogNeedsAdministrator(t *testing.T) {
	db := filepath.Join(t.TempDir(), "genlock.db")
	noAdmins := writeCatalog(t, `administrators: []
generations: [{name: "Genesis"}]
`)
	_, err := execute(t, "--db", db, "init", noAdmins)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "at least one administrator")
}

func TestCommands_NotInitialized(t *testing.T) {
	_, err := execute(t, "--db", filepath.Join(t.TempDir(), "missing.db"), "generation", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestCommands_UnlockActivateFlow(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, "--db", db, "--format", "json", "generation", "list")
	require.NoError(t, err)
	gens := decode(t, out).Data.([]interface{})
	require.Len(t, gens, 2)
	gold := gens[1].(map[string]interface{})
	assert.Equal(t, "Gold", gold["name"])
	assert.Equal(t, "100", gold["price"])
	assert.Equal(t, true, gold["available"])

	out, err = execute(t, "--db", db, "mint", "7", "--owner", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Minted asset 7 (seq 6)")

	out, err = execute(t, "--db", db, "uri", "7")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://hidden/\n", out)

	out, err = execute(t, "--db", db, "--as", "bob", "unlock", "7", "1", "--payment", "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_REJECTED]: insufficient funds")

	out, err = execute(t, "--db", db, "--as", "bob", "--format", "json", "unlock", "7", "1", "--payment", "100")
	require.NoError(t, err, out)
	resp := decode(t, out)
	assert.Equal(t, int64(7), resp.Seq)
	receipt := resp.Data.(map[string]interface{})
	assert.Equal(t, "100", receipt["price"])
	assert.Equal(t, "0", receipt["refund"])

	out, err = execute(t, "--db", db, "--as", "bob", "activate", "7", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "must be token owner")

	out, err = execute(t, "--db", db, "--as", "alice", "activate", "7", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Asset 7 active generation 1 (seq 8)")

	out, err = execute(t, "--db", db, "uri", "7")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://gold/\n", out)

	out, err = execute(t, "--db", db, "--format", "json", "asset", "7")
	require.NoError(t, err)
	view := decode(t, out).Data.(map[string]interface{})
	assert.Equal(t, "alice", view["owner"])
	assert.Equal(t, float64(1), view["active"])
	assert.Equal(t, []interface{}{float64(0), float64(1)}, view["unlocked"])

	out, err = execute(t, "--db", db, "--format", "json", "events", "--asset", "7")
	require.NoError(t, err)
	events := decode(t, out).Data.([]interface{})
	require.Len(t, events, 3)
	assert.Equal(t, "mint", events[0].(map[string]interface{})["op"])
	assert.Equal(t, "activate_generation", events[2].(map[string]interface{})["op"])

	out, err = execute(t, "--db", db, "replay")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Replay Summary: 8 event(s), seq 8")
	assert.Contains(t, out, "✓ Journal reproduces stored state")
}

func TestCommands_RequireCaller(t *testing.T) {
	db := initDB(t)
	_, err := execute(t, "--db", db, "generation", "disable", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--as is required")
}

func TestCommands_AdministratorOnly(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, "--db", db, "--as", "mallory", "--format", "json", "generation", "disable", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decode(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)
	assert.Equal(t, "caller is not an administrator", resp.Error.Message)

	out, err = execute(t, "--db", db, "--as", "ops", "generation", "disable", "1")
	require.NoError(t, err, out)

	out, err = execute(t, "--db", db, "--format", "json", "generation", "show", "1")
	require.NoError(t, err)
	gold := decode(t, out).Data.(map[string]interface{})
	assert.Equal(t, false, gold["enabled"])
}

func TestCommands_TransferMovesActivationRights(t *testing.T) {
	db := initDB(t)

	_, err := execute(t, "--db", db, "mint", "3", "--owner", "alice")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "--as", "alice", "unlock", "3", "1", "--payment", "100")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "transfer", "3", "carol")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Asset 3 now held by carol")

	_, err = execute(t, "--db", db, "--as", "alice", "activate", "3", "1")
	require.Error(t, err)
	_, err = execute(t, "--db", db, "--as", "carol", "activate", "3", "1")
	require.NoError(t, err)

	_, err = execute(t, "--db", db, "transfer", "99", "carol")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCommands_BurnThenRemint(t *testing.T) {
	db := initDB(t)

	_, err := execute(t, "--db", db, "mint", "5", "--owner", "alice")
	require.NoError(t, err)
	out, err := execute(t, "--db", db, "mint", "5")
	require.Error(t, err)
	assert.Contains(t, out, "token already minted")

	_, err = execute(t, "--db", db, "burn", "5")
	require.NoError(t, err)
	_, err = execute(t, "--db", db, "asset", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	_, err = execute(t, "--db", db, "mint", "5")
	require.NoError(t, err)
	out, err = execute(t, "--db", db, "asset", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "owner:    -")
}

func TestCommands_RemintKeepsOwner(t *testing.T) {
	db := initDB(t)

	_, err := execute(t, "--db", db, "mint", "5", "--owner", "alice")
	require.NoError(t, err)
	out, err := execute(t, "--db", db, "--format", "json", "asset", "5")
	require.NoError(t, err)
	assert.Equal(t, "alice", decode(t, out).Data.(map[string]interface{})["owner"])

	out, err = execute(t, "--db", db, "mint", "5", "--owner", "bob")
	require.Error(t, err)
	assert.Contains(t, out, "token already minted")

	out, err = execute(t, "--db", db, "--format", "json", "asset", "5")
	require.NoError(t, err)
	assert.Equal(t, "alice", decode(t, out).Data.(map[string]interface{})["owner"])
}

func TestMintWithOwner_OwnerWriteFailureLeavesAssetUnminted(t *testing.T) {
	db := initDB(t)
	ctx := context.Background()

	s, err := openSession(ctx, &RootOptions{Database: db})
	require.NoError(t, err)
	seq := s.engine.Seq()
	require.NoError(t, s.store.Close())

	err = mintWithOwner(ctx, s, 9, ir.Identity("alice"))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)

	_, err = s.engine.Asset(9)
	require.Error(t, err)
	assert.Equal(t, seq, s.engine.Seq())
}

func TestCommands_ExcessRefund(t *testing.T) {
	db := initDB(t)

	_, err := execute(t, "--db", db, "mint", "9")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--as", "bob", "--excess", "refund", "--format", "json",
		"unlock", "9", "1", "--payment", "150")
	require.NoError(t, err, out)
	receipt := decode(t, out).Data.(map[string]interface{})
	assert.Equal(t, "150", receipt["paid"])
	assert.Equal(t, "50", receipt["refund"])
}

func TestCommands_GenerationAdd(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, "--db", db, "--as", "ops", "generation", "add",
		"--name", "Aura", "--auto-unlock", "--prerequisite", "1")
	require.NoError(t, err, out)

	out, err = execute(t, "--db", db, "--format", "json", "generation", "show", "2")
	require.NoError(t, err)
	aura := decode(t, out).Data.(map[string]interface{})
	assert.Equal(t, "Aura", aura["name"])
	assert.Equal(t, true, aura["auto_unlock"])
	assert.Equal(t, false, aura["enabled"])
	assert.Equal(t, float64(1), aura["prerequisite"])

	out, err = execute(t, "--db", db, "--as", "ops", "generation", "add",
		"--name", "Priced", "--auto-unlock", "--price", "5")
	require.Error(t, err)
	assert.Contains(t, out, "auto-unlock generation must have no associated price")
}

func TestCommands_InvalidArguments(t *testing.T) {
	db := initDB(t)

	_, err := execute(t, "--db", db, "asset", "not-a-number")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid asset id")

	_, err = execute(t, "--db", db, "--as", "bob", "unlock", "1", "1", "--payment=-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}
