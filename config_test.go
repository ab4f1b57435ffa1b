package herald

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTHost)
	assert.False(t, cfg.ConstrainedDisplay)
	assert.Empty(t, cfg.Federation)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadConfig_ReadsFederation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
mqtt_host: tls://broker.example.net:8883
mqtt_user: watcher
constrained_display: true
federation:
  - alias: northside
    fingerprint: aaaa1111
    description: main coordinator
  - alias: southside
    fingerprint: bbbb2222
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tls://broker.example.net:8883", cfg.MQTTHost)
	assert.Equal(t, "watcher", cfg.MQTTUser)
	assert.True(t, cfg.ConstrainedDisplay)
	require.Len(t, cfg.Federation, 2)
	assert.Equal(t, "northside", cfg.Federation[0].Alias)

	directory, err := cfg.Directory()
	require.NoError(t, err)
	assert.Equal(t, 2, directory.Size())

	coordinator, known := directory.Resolve("aaaa1111")
	require.True(t, known)
	assert.Equal(t, "northside", coordinator.Alias)
}

func TestConfig_DirectoryRejectsDuplicates(t *testing.T) {
	cfg := &Config{Federation: []CoordinatorConfig{
		{Alias: "a", Fingerprint: "same"},
		{Alias: "b", Fingerprint: "same"},
	}}
	_, err := cfg.Directory()
	assert.Error(t, err)
}
