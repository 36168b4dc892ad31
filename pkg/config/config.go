/*
Package config manages TOML config for choiceserve.

Config is loaded with priority: an explicit path, then config.toml in the user
config dir (created with defaults when missing), then builtin defaults. Files
that fail to decode are recovered section by section.
*/
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
	"github.com/charmbracelet/log"
)

// FileName is the name of the config file inside the config dir.
const FileName = "config.toml"

// Config holds the entire config structure
type Config struct {
	Search SearchConfig `toml:"search"`
	Server ServerConfig `toml:"server"`
	CLI    CliConfig    `toml:"cli"`
}

// SearchConfig holds scorer and table options.
type SearchConfig struct {
	AccumulateKeywords bool        `toml:"accumulate_keywords"`
	MinScoreEnabled    bool        `toml:"min_score_enabled"`
	MinScore           int         `toml:"min_score"`
	Limit              int         `toml:"limit"`
	Keys               []fuzzy.Key `toml:"keys"`
}

// ServerConfig has dispatch and transport options.
type ServerConfig struct {
	ImmediateThreshold int `toml:"immediate_threshold"`
	RateIntervalMs     int `toml:"rate_interval_ms"`
	RateBurst          int `toml:"rate_burst"`
	MaxInput           int `toml:"max_input"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	ShowScores   bool `toml:"show_scores"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	keys := make([]fuzzy.Key, len(fuzzy.DefaultKeys))
	copy(keys, fuzzy.DefaultKeys)
	return &Config{
		Search: SearchConfig{
			AccumulateKeywords: false,
			MinScoreEnabled:    false,
			MinScore:           0,
			Limit:              0,
			Keys:               keys,
		},
		Server: ServerConfig{
			ImmediateThreshold: 5000,
			RateIntervalMs:     25,
			RateBurst:          1,
			MaxInput:           512,
		},
		CLI: CliConfig{
			DefaultLimit: 24,
			ShowScores:   false,
		},
	}
}

// FuzzyOptions returns the scorer options of the search section.
func (s SearchConfig) FuzzyOptions() fuzzy.Options {
	keys := make([]fuzzy.Key, 0, len(s.Keys))
	for _, k := range s.Keys {
		if k.Name == "" {
			continue
		}
		if k.Weight <= 0 {
			k.Weight = 1
		}
		keys = append(keys, k)
	}
	return fuzzy.Options{
		Keys:            keys,
		MinScore:        s.MinScore,
		MinScoreEnabled: s.MinScoreEnabled,
		Limit:           s.Limit,
	}
}

// RateInterval returns the coalescing window for large corpora.
func (s ServerConfig) RateInterval() time.Duration {
	if s.RateIntervalMs <= 0 {
		return 0
	}
	return time.Duration(s.RateIntervalMs) * time.Millisecond
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath(FileName)
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from -config flag
// 2. Default path: [UserConfigDir]/choiceserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if utils.IsFile(customConfigPath) {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s. Trying default path...", customConfigPath)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.IsFile(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if err := utils.DecodeTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every section that still parses and defaults the rest
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

// extractSearchConfig extracts search configuration from a map
func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractBool(data, "accumulate_keywords"); ok {
		search.AccumulateKeywords = val
	}
	if val, ok := utils.ExtractBool(data, "min_score_enabled"); ok {
		search.MinScoreEnabled = val
	}
	if val, ok := utils.ExtractInt64(data, "min_score"); ok {
		search.MinScore = val
	}
	if val, ok := utils.ExtractInt64(data, "limit"); ok {
		search.Limit = val
	}
	if tables, ok := utils.ExtractTables(data, "keys"); ok {
		var keys []fuzzy.Key
		for _, t := range tables {
			name, ok := utils.ExtractString(t, "name")
			if !ok || name == "" {
				continue
			}
			weight, ok := utils.ExtractFloat64(t, "weight")
			if !ok {
				weight = 1
			}
			keys = append(keys, fuzzy.Key{Name: name, Weight: weight})
		}
		if len(keys) > 0 {
			search.Keys = keys
		}
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "immediate_threshold"); ok {
		server.ImmediateThreshold = val
	}
	if val, ok := utils.ExtractInt64(data, "rate_interval_ms"); ok {
		server.RateIntervalMs = val
	}
	if val, ok := utils.ExtractInt64(data, "rate_burst"); ok {
		server.RateBurst = val
	}
	if val, ok := utils.ExtractInt64(data, "max_input"); ok {
		server.MaxInput = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractBool(data, "show_scores"); ok {
		cli.ShowScores = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	return SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.AbsPath(configPath)
}

// SaveConfig writes config to configPath through a temp file, so readers never
// see a half-written file.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		log.Errorf("Failed to write config: %v", err)
		return err
	}
	return os.Rename(tmp, configPath)
}

// Update changes the server and search values that are set and saves to file
func (c *Config) Update(configPath string, immediateThreshold, rateIntervalMs, maxInput *int, accumulateKeywords *bool) error {
	if immediateThreshold != nil {
		c.Server.ImmediateThreshold = *immediateThreshold
	}
	if rateIntervalMs != nil {
		c.Server.RateIntervalMs = *rateIntervalMs
	}
	if maxInput != nil {
		c.Server.MaxInput = *maxInput
	}
	if accumulateKeywords != nil {
		c.Search.AccumulateKeywords = *accumulateKeywords
	}
	return SaveConfig(c, configPath)
}
