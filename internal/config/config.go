// Package config loads the optional .edk2nav.yaml settings file. Every field
// has a usable default; command-line flags override whatever the file says.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no explicit
// config path is given.
const DefaultFileName = ".edk2nav.yaml"

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	WorkspaceRoot string    `yaml:"workspace_root"`
	PlatformDir   string    `yaml:"platform_dir"`
	CacheDir      string    `yaml:"cache_dir"`
	CacheTTLHours int       `yaml:"cache_ttl_hours"`
	Log           LogConfig `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		CacheDir:      defaultCacheDir(),
		CacheTTLHours: 24,
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

func defaultCacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "edk2nav")
	}
	return ".edk2nav-cache"
}

// Load reads the config file at path, or DefaultFileName in the working
// directory when path is empty. An absent default file yields the defaults;
// an absent explicit file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.CacheTTLHours <= 0 {
		cfg.CacheTTLHours = 24
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir()
	}
	return cfg, nil
}

// CacheTTL converts the configured hour count to a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}
