package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cellneigh/internal/config"
)

// useTempConfig switches to an empty working directory and loads the
// default configuration into cfg.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)
	cfg = c
	return dir
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"neighbors", "grids", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cellneigh", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestNeighborsCommand_Flags(t *testing.T) {
	for _, name := range []string{"region", "source", "geotransform", "raster-size", "cell-km", "cell-size", "rank", "workers", "output", "format", "save"} {
		assert.NotNil(t, neighborsCmd.Flags().Lookup(name), "neighbors should have --%s flag", name)
	}
}

func TestGridsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range gridsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "delete"} {
		assert.True(t, names[name], "grids should have subcommand %q", name)
	}

	flag := gridsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
