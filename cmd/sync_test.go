package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditlens/loanmarket-api/internal/config"
)

func newSyncFlagSet() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("series", "", "")
	cmd.Flags().Bool("force", false, "")
	cmd.Flags().String("start-date", "", "")
	cmd.Flags().Int("workers", 0, "")
	return cmd
}

func TestParseSyncOpts_Defaults(t *testing.T) {
	cfg = &config.Config{Sync: config.SyncConfig{StartDate: "1980-01-01", Workers: 2}}
	cmd := newSyncFlagSet()

	opts, err := parseSyncOpts(cmd)
	require.NoError(t, err)
	assert.Empty(t, opts.Series)
	assert.False(t, opts.Force)
	assert.Equal(t, time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC), opts.StartDate)
	assert.Equal(t, 2, cfg.Sync.Workers)
}

func TestParseSyncOpts_Flags(t *testing.T) {
	cfg = &config.Config{Sync: config.SyncConfig{StartDate: "1980-01-01", Workers: 2}}
	cmd := newSyncFlagSet()
	require.NoError(t, cmd.Flags().Set("series", "GDP, UNRATE"))
	require.NoError(t, cmd.Flags().Set("force", "true"))
	require.NoError(t, cmd.Flags().Set("start-date", "2020-06-15"))
	require.NoError(t, cmd.Flags().Set("workers", "4"))

	opts, err := parseSyncOpts(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"GDP", "UNRATE"}, opts.Series)
	assert.True(t, opts.Force)
	assert.Equal(t, time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC), opts.StartDate)
	assert.Equal(t, 4, cfg.Sync.Workers)
}

func TestParseSyncOpts_BadDate(t *testing.T) {
	cfg = &config.Config{Sync: config.SyncConfig{StartDate: "1980-01-01"}}
	cmd := newSyncFlagSet()
	require.NoError(t, cmd.Flags().Set("start-date", "June 2020"))

	_, err := parseSyncOpts(cmd)
	assert.Error(t, err)
}
