package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithoutFileOrEnv(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, settings.Server.Port)
	assert.True(t, settings.WebSocket.CompressionEnabled)
	assert.Equal(t, 1024, settings.WebSocket.CompressionThreshold)
	assert.Equal(t, 100<<20, settings.WebSocket.MaxMessageSize)
	assert.Equal(t, "/data/metadata.json", settings.MetadataPath)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	os.Setenv("YGGDRASIL_SERVER_PORT", "9090")
	defer os.Unsetenv("YGGDRASIL_SERVER_PORT")

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, settings.Server.Port)
}

func TestLoadEnvOverridesNestedWebSocketSetting(t *testing.T) {
	os.Setenv("YGGDRASIL_WEBSOCKET_UPDATE_RATE", "10")
	defer os.Unsetenv("YGGDRASIL_WEBSOCKET_UPDATE_RATE")

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, settings.WebSocket.UpdateRate)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/does-not-exist.yaml")
	assert.Error(t, err)
}
