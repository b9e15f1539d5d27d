package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "genlock", cmd.Use)
	assert.Contains(t, cmd.Long, "catalog of generations")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"init", "validate", "generation", "mint", "burn", "transfer", "unlock",
		"activate", "asset", "uri", "events", "replay", "test", "serve",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGenerationSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	subcommands := []string{
		"add", "remove", "enable", "disable", "set-name", "set-base-uri",
		"set-price", "set-prerequisite", "set-availability",
		"set-default-base-uri", "list", "show",
	}

	for _, name := range subcommands {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{"generation", name})
			require.NoError(t, err)
			assert.Equal(t, name, subCmd.Name())
		})
	}

	alias, _, err := cmd.Find([]string{"gen", "list"})
	require.NoError(t, err)
	assert.Equal(t, "list", alias.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, DefaultDatabase, dbFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("as"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("excess"))
}

func TestUnlockCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	unlockCmd, _, err := cmd.Find([]string{"unlock"})
	require.NoError(t, err)

	paymentFlag := unlockCmd.Flags().Lookup("payment")
	require.NotNil(t, paymentFlag)
	assert.Equal(t, "0", paymentFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExcessValidationIntegration(t *testing.T) {
	_, err := execute(t, "--excess", "keep", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown excess policy")
}
