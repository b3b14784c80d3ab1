package database

import (
	"time"
)

type Cloud struct {
	Name          string // Cloud short name, also the configuration file name
	Repository    string // Terraform provider repository, owner/name
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Release is a cached changelog entry, stored with its date as published.
type Release struct {
	Repository  string
	Version     string
	PublishedAt string
	Body        string
}

type RecordFilter struct {
	Cloud  string // empty for every cloud
	Status string // Supported or Not Supported, empty for both
	Limit  int    // 0 for no limit
}

type CloudStats struct {
	Cloud        string  `json:"cloud"`
	Total        int     `json:"total"`
	Supported    int     `json:"supported"`
	NotSupported int     `json:"not_supported"`
	AverageLag   float64 `json:"average_lag"` // over supported records
}
