package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
addr = ":9090"
max_query = 40

[search]
district_limit = 3
fuzzy = false

[essentials]
url = "http://localhost/resources.json"
refresh_minutes = 15
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 40, cfg.Server.MaxQuery)
	assert.Equal(t, 1, cfg.Server.MinQuery)
	assert.Equal(t, 3, cfg.Search.DistrictLimit)
	assert.Equal(t, 5, cfg.Search.EssentialsLimit)
	assert.False(t, cfg.Search.Fuzzy)
	assert.Equal(t, "http://localhost/resources.json", cfg.Essentials.URL)
	assert.Equal(t, 15*time.Minute, cfg.Essentials.RefreshInterval())
	assert.Equal(t, 10*time.Second, cfg.Essentials.Timeout())
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[search]
district_limit = "five"
essentials_limit = 2

[essentials]
timeout_seconds = 3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.DistrictLimit, "bad value keeps the default")
	assert.Equal(t, 2, cfg.Search.EssentialsLimit)
	assert.Equal(t, 3*time.Second, cfg.Essentials.Timeout())
}

func TestInitConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nmin_query = 10\nmax_query = 2\n"), 0644))

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Search.DistrictLimit = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.MinQuery = 0
	assert.Error(t, cfg.Validate())
}
