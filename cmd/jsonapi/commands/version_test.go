package commands

import (
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	resetViper(t)

	cmd := NewVersionCommand("1.2.3", "abc123", "2026-01-01")
	assert.Equal(t, "version", cmd.Use)

	output, err := executeCommand(t, cmd)
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, VersionInfo{Version: "1.2.3", Commit: "abc123", Built: "2026-01-01"}, info)

	viper.Set("output", FormatYAML)

	output, err = executeCommand(t, cmd)
	require.NoError(t, err)
	assert.Contains(t, output, "version: 1.2.3")
}
