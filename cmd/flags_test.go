package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand() (*cobra.Command, *scanFlags) {
	cmd := &cobra.Command{Use: "testcmd"}
	var f scanFlags
	registerScanFlags(cmd, &f)
	return cmd, &f
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	viper.Set("max-depth", 3)
	viper.Set("jobs", 2)
	viper.Set("keep-days", 14)
	viper.Set("keep-size", "1KiB")
	viper.Set("ignore", []string{"/skip"})

	cmd, f := newFlagCommand()
	cfg, err := f.config(cmd)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 2, cfg.Parallelism)
	assert.Equal(t, 14, cfg.KeepDays)
	assert.EqualValues(t, 1024, cfg.KeepSize)
	assert.Equal(t, []string{"/skip"}, cfg.IgnorePaths)
}

func TestCommandLineBeatsConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	viper.Set("max-depth", 3)
	viper.Set("jobs", 2)

	cmd, f := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("max-depth", "5"))
	require.NoError(t, cmd.Flags().Set("jobs", "7"))

	cfg, err := f.config(cmd)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, 7, cfg.Parallelism)
}

func TestConfigRejectsBadValues(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	cmd, f := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("keep-size", "lots"))
	_, err := f.config(cmd)
	assert.Error(t, err)

	cmd, f = newFlagCommand()
	require.NoError(t, cmd.Flags().Set("keep-days", "-1"))
	_, err = f.config(cmd)
	assert.Error(t, err)
}
