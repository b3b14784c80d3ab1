package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
)

type ConfigCache struct {
	cloudsDir string
	cache     map[string]*Config
	mu        sync.RWMutex
}

func NewConfigCache(cloudsDir string) *ConfigCache {
	return &ConfigCache{
		cloudsDir: cloudsDir,
		cache:     make(map[string]*Config),
	}
}

// DefaultConfig builds the configuration of a cloud from its built-in profile.
func DefaultConfig(c cloud.Cloud) *Config {
	profile := c.Profile()
	return &Config{
		Name:       profile.Name,
		Sources:    append([]string(nil), profile.Sources...),
		Repository: profile.Repository,
		Settings: ConfigSettings{
			Enabled:         true,
			RefreshInterval: DefaultRefreshInterval,
			MaxItems:        DefaultMaxItems,
			Timeout:         DefaultTimeout,
			ReleasePages:    DefaultReleasePages,
		},
	}
}

// Run loads every <cloud>.yml in the clouds directory. Without the
// directory, every known cloud runs on its defaults.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.cloudsDir); os.IsNotExist(err) {
		slog.Info("Clouds directory not found, using defaults", "dir", cc.cloudsDir)
		cc.mu.Lock()
		defer cc.mu.Unlock()
		for _, c := range cloud.All() {
			cc.cache[c.String()] = DefaultConfig(c)
		}
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.cloudsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		cloudName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(cloudName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "cloud", cloudName, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(cloudName string) (*Config, error) {
	c, err := cloud.Parse(cloudName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCloud, cloudName)
	}

	configFile := cc.getConfigFilePath(cloudName)
	cloudConfig, err := cc.parseConfig(configFile, DefaultConfig(c))
	if err != nil {
		return nil, err
	}

	cloudConfig.Name = c.String()

	if err := cc.validateConfig(cloudConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[cloudConfig.Name] = cloudConfig

	return cloudConfig, nil
}

func (cc *ConfigCache) GetConfig(cloudName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	cloudConfig, ok := cc.cache[strings.ToLower(cloudName)]
	if !ok {
		return nil, fmt.Errorf("%w: no configuration for '%s'", ErrUnknownCloud, cloudName)
	}
	return cloudConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// parseConfig decodes the file over defaults, so omitted keys keep their
// default values.
func (cc *ConfigCache) parseConfig(configFile string, defaults *Config) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cloudConfig := defaults
	if err := yaml.Unmarshal(data, cloudConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cloudConfig.Settings.RefreshInterval == 0 {
		cloudConfig.Settings.RefreshInterval = DefaultRefreshInterval
	}
	if cloudConfig.Settings.MaxItems == 0 {
		cloudConfig.Settings.MaxItems = DefaultMaxItems
	}
	if cloudConfig.Settings.Timeout == 0 {
		cloudConfig.Settings.Timeout = DefaultTimeout
	}
	if cloudConfig.Settings.ReleasePages == 0 {
		cloudConfig.Settings.ReleasePages = DefaultReleasePages
	}

	return cloudConfig, nil
}

func (cc *ConfigCache) validateConfig(cloudConfig *Config) error {
	if cloudConfig == nil {
		return errors.New("cloudConfig is nil")
	}

	if cloudConfig.Repository == "" {
		return errors.New("repository is required")
	}
	if owner, name, ok := strings.Cut(cloudConfig.Repository, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("repository must be owner/name, got %q", cloudConfig.Repository)
	}

	for i, source := range cloudConfig.Sources {
		if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
			return fmt.Errorf("invalid source URL at index %d: %s", i, source)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": cloudConfig.Settings.RefreshInterval,
		"max items":        cloudConfig.Settings.MaxItems,
		"timeout":          cloudConfig.Settings.Timeout,
		"release pages":    cloudConfig.Settings.ReleasePages,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range cloudConfig.Filters {
		if filter.Field != "title" && filter.Field != "link" {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(cloudName string) string {
	return filepath.Join(cc.cloudsDir, cloudName+".yml")
}
