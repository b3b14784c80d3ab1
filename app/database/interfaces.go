package database

import (
	"context"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type CloudRepository interface {
	GetCloud(ctx context.Context, name string) (*Cloud, error)
	GetClouds(ctx context.Context) ([]Cloud, error)

	UpsertCloud(ctx context.Context, name, repository string) error
	UpdateFetchTimes(ctx context.Context, name string, fetchedAt, nextFetch time.Time) error
}

// AnnouncementRepository keeps every announcement ever collected, so old
// announcements are reconciled again as new releases appear.
type AnnouncementRepository interface {
	GetAnnouncements(ctx context.Context, cloud string) ([]tracker.RawAnnouncement, error)
	GetAnnouncementCount(ctx context.Context, cloud string) (int, error)

	// UpsertAnnouncements stores the batch and reports how many were new.
	UpsertAnnouncements(ctx context.Context, cloud string, items []tracker.RawAnnouncement) (int, error)
}

type ReleaseRepository interface {
	GetReleases(ctx context.Context, repository string) ([]Release, error)
	GetReleaseCount(ctx context.Context, repository string) (int, error)

	UpsertReleases(ctx context.Context, releases []Release) (int, error)
}

type RecordRepository interface {
	SnapshotStore

	GetRecords(ctx context.Context, filter RecordFilter) ([]tracker.Record, error)
	GetRecordStats(ctx context.Context) ([]CloudStats, error)
}

// SnapshotStore persists the full, sorted set of records.
type SnapshotStore interface {
	Load(ctx context.Context) ([]tracker.Record, error)
	Save(ctx context.Context, records []tracker.Record) error
}
