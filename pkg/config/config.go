/*
Package config manages TOML config for searchserve.
*/
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nepalcovid19/searchserve/internal/utils"
)

// DefaultEssentialsURL is the public crowd-sourced resources feed.
const DefaultEssentialsURL = "https://api.nepalcovid19.org/resources/resources.json"

// Config holds the entire config structure
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Search     SearchConfig     `toml:"search"`
	Essentials EssentialsConfig `toml:"essentials"`
	Datasets   DatasetsConfig   `toml:"datasets"`
	CLI        CliConfig        `toml:"cli"`
}

// ServerConfig has transport related options shared by HTTP and IPC.
type ServerConfig struct {
	Addr         string  `toml:"addr"`
	MinQuery     int     `toml:"min_query"`
	MaxQuery     int     `toml:"max_query"`
	EnableFilter bool    `toml:"enable_filter"`
	RateLimit    float64 `toml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst"`
}

// SearchConfig controls result caps per dataset. A zero limit means uncapped.
type SearchConfig struct {
	RegionLimit     int  `toml:"region_limit"`
	DistrictLimit   int  `toml:"district_limit"`
	EssentialsLimit int  `toml:"essentials_limit"`
	Fuzzy           bool `toml:"fuzzy"`
	CacheSize       int  `toml:"cache_size"`
}

// EssentialsConfig configures the remote resources feed.
type EssentialsConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryCount     int    `toml:"retry_count"`
	RefreshMinutes int    `toml:"refresh_minutes"`
	SnapshotPath   string `toml:"snapshot_path"`
}

// DatasetsConfig points at an optional regions/districts TOML override.
type DatasetsConfig struct {
	Path string `toml:"path"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultNoFilter bool `toml:"default_no_filter"`
	ShowTimings     bool `toml:"show_timings"`
}

// Timeout returns the per-request timeout for the essentials feed.
func (e EssentialsConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the background refresh period; zero disables it.
func (e EssentialsConfig) RefreshInterval() time.Duration {
	return time.Duration(e.RefreshMinutes) * time.Minute
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			MinQuery:     1,
			MaxQuery:     60,
			EnableFilter: true,
			RateLimit:    50,
			RateBurst:    100,
		},
		Search: SearchConfig{
			RegionLimit:     0,
			DistrictLimit:   5,
			EssentialsLimit: 5,
			Fuzzy:           true,
			CacheSize:       512,
		},
		Essentials: EssentialsConfig{
			URL:            DefaultEssentialsURL,
			TimeoutSeconds: 10,
			RetryCount:     2,
			RefreshMinutes: 0,
			SnapshotPath:   "essentials.msgpack",
		},
		CLI: CliConfig{
			DefaultNoFilter: false,
			ShowTimings:     true,
		},
	}
}

// Validate reports settings that would make the server misbehave.
func (c *Config) Validate() error {
	if c.Server.MinQuery < 1 {
		return fmt.Errorf("server.min_query must be >= 1, got %d", c.Server.MinQuery)
	}
	if c.Server.MaxQuery < c.Server.MinQuery {
		return fmt.Errorf("server.max_query (%d) must be >= server.min_query (%d)", c.Server.MaxQuery, c.Server.MinQuery)
	}
	if c.Search.RegionLimit < 0 || c.Search.DistrictLimit < 0 || c.Search.EssentialsLimit < 0 {
		return fmt.Errorf("search limits must not be negative")
	}
	if c.Essentials.TimeoutSeconds < 0 || c.Essentials.RetryCount < 0 || c.Essentials.RefreshMinutes < 0 {
		return fmt.Errorf("essentials timings must not be negative")
	}
	return nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	if err := config.Validate(); err != nil {
		log.Warnf("Invalid config in %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse salvages well-typed keys from a file that failed strict decoding
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	raw, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(raw, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(raw, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(raw, "essentials"); ok {
		extractEssentialsConfig(section, &config.Essentials)
	}
	if section, ok := utils.ExtractSection(raw, "datasets"); ok {
		if val, ok := utils.ExtractString(section, "path"); ok {
			config.Datasets.Path = val
		}
	}
	if section, ok := utils.ExtractSection(raw, "cli"); ok {
		if val, ok := utils.ExtractBool(section, "default_no_filter"); ok {
			config.CLI.DefaultNoFilter = val
		}
		if val, ok := utils.ExtractBool(section, "show_timings"); ok {
			config.CLI.ShowTimings = val
		}
	}
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		server.Addr = val
	}
	if val, ok := utils.ExtractInt64(data, "min_query"); ok {
		server.MinQuery = val
	}
	if val, ok := utils.ExtractInt64(data, "max_query"); ok {
		server.MaxQuery = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		server.EnableFilter = val
	}
	if val, ok := data["rate_limit"].(float64); ok {
		server.RateLimit = val
	} else if val, ok := utils.ExtractInt64(data, "rate_limit"); ok {
		server.RateLimit = float64(val)
	}
	if val, ok := utils.ExtractInt64(data, "rate_burst"); ok {
		server.RateBurst = val
	}
}

func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "region_limit"); ok {
		search.RegionLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "district_limit"); ok {
		search.DistrictLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "essentials_limit"); ok {
		search.EssentialsLimit = val
	}
	if val, ok := utils.ExtractBool(data, "fuzzy"); ok {
		search.Fuzzy = val
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		search.CacheSize = val
	}
}

func extractEssentialsConfig(data map[string]any, ess *EssentialsConfig) {
	if val, ok := utils.ExtractString(data, "url"); ok {
		ess.URL = val
	}
	if val, ok := utils.ExtractInt64(data, "timeout_seconds"); ok {
		ess.TimeoutSeconds = val
	}
	if val, ok := utils.ExtractInt64(data, "retry_count"); ok {
		ess.RetryCount = val
	}
	if val, ok := utils.ExtractInt64(data, "refresh_minutes"); ok {
		ess.RefreshMinutes = val
	}
	if val, ok := utils.ExtractString(data, "snapshot_path"); ok {
		ess.SnapshotPath = val
	}
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
