// Package config loads runtime configuration from a YAML file and
// MARXIV_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DataDir holds the database, the appearance cache and logs.
	DataDir string `mapstructure:"data_dir"`
	// PageSize is the default number of search results per page.
	PageSize int `mapstructure:"page_size"`
	// LogFile receives structured logs. Empty means stderr only.
	LogFile string `mapstructure:"log_file"`

	HTTP struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"http"`

	Arxiv struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"arxiv"`

	Serve struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"serve"`
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "marxiv.db")
}

// CachePath returns the appearance fast-cache location under DataDir.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "appearance.json")
}

func defaultDataDir() string {
	if dir := os.Getenv("MARXIV_DATA_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return ".marxiv"
	}
	return filepath.Join(base, ".marxiv")
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "marxiv")
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, ".config", "marxiv")
}

// Load reads the configuration. cfgFile overrides the default config
// file location when non-empty; a missing default file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("page_size", 10)
	v.SetDefault("log_file", "")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("arxiv.base_url", "")
	v.SetDefault("serve.addr", "localhost:8787")

	v.SetEnvPrefix("MARXIV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
