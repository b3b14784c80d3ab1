package feed

import (
	"errors"
	"time"
)

// ErrUnknownCloud is returned for configuration files or requests naming a
// cloud the tracker does not know.
var ErrUnknownCloud = errors.New("unknown cloud")

// Configuration types

type Config struct {
	Name       string            // Derived from filename (without .yml extension)
	Sources    []string          `yaml:"sources"`
	Repository string            `yaml:"repository"` // owner/name of the Terraform provider
	Synonyms   map[string]string `yaml:"synonyms"`
	Settings   ConfigSettings    `yaml:"settings"`
	Filters    []ConfigFilter    `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`       // seconds
	ReleasePages    int  `yaml:"release_pages"` // changelog pages per incremental run
}

func (s ConfigSettings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s ConfigSettings) RefreshDuration() time.Duration {
	return time.Duration(s.RefreshInterval) * time.Second
}

type ConfigFilter struct {
	Field    string   `yaml:"field"` // title or link
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Settings defaults
const (
	DefaultRefreshInterval = 6 * 3600
	DefaultMaxItems        = 30
	DefaultTimeout         = 30
	DefaultReleasePages    = 1
)
