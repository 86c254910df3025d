package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memento/internal/config"
)

func testConfig() config.Config {
	return config.Config{Database: "memento.db", Format: "text", LogLevel: "info"}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	require.NotNil(t, cmd)
	assert.Equal(t, "memento", cmd.Use)
	assert.Contains(t, cmd.Long, "content-addressed")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	commands := [][]string{
		{"region", "new"}, {"region", "list"}, {"region", "show"}, {"region", "rm"},
		{"observe"}, {"plan"}, {"effect"}, {"summarize"},
		{"fork"}, {"merge"}, {"diff"}, {"replay"}, {"prompt"}, {"query"}, {"gc"},
		{"export"}, {"import"}, {"log", "export"}, {"log", "import"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "memento.db", dbFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("dsn"))
}

func TestGlobalFlagsFollowConfig(t *testing.T) {
	cmd := NewRootCommand(config.Config{Database: "agents.db", Format: "json", LogLevel: "debug"})

	assert.Equal(t, "agents.db", cmd.PersistentFlags().Lookup("db").DefValue)
	assert.Equal(t, "json", cmd.PersistentFlags().Lookup("format").DefValue)
	assert.Equal(t, "debug", cmd.PersistentFlags().Lookup("log-level").DefValue)
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	queryCmd, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	for _, name := range []string{"text", "op", "meta", "region", "any", "log"} {
		assert.NotNil(t, queryCmd.Flags().Lookup(name), name)
	}
}

func TestLogExportFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	exportCmd, _, err := cmd.Find([]string{"log", "export"})
	require.NoError(t, err)

	outputFlag := exportCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]string{"agent=planner", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"agent": "planner", "note": "a=b", "empty": ""}, meta)

	_, err = parseMeta([]string{"novalue"})
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, err = parseMeta([]string{"=v"})
	assert.Error(t, err)
}
