package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

var fixedNow = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	original := timeNow
	timeNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { timeNow = original })

	db, err := Open(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	return db
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestCloudRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCloudRepository(newTestDB(t))

	missing, err := repo.GetCloud(ctx, "aws")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.UpsertCloud(ctx, "aws", "hashicorp/terraform-provider-aws"))
	require.NoError(t, repo.UpsertCloud(ctx, "gcp", "hashicorp/terraform-provider-google"))

	next := fixedNow.Add(6 * time.Hour)
	require.NoError(t, repo.UpdateFetchTimes(ctx, "aws", fixedNow, next))

	require.NoError(t, repo.UpsertCloud(ctx, "aws", "example/terraform-provider-aws"))

	got, err := repo.GetCloud(ctx, "aws")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "example/terraform-provider-aws", got.Repository)
	require.NotNil(t, got.NextFetchAt, "re-registering keeps the schedule")
	assert.True(t, next.Equal(*got.NextFetchAt))
	assert.True(t, fixedNow.Equal(*got.LastFetchedAt))

	clouds, err := repo.GetClouds(ctx)
	require.NoError(t, err)
	require.Len(t, clouds, 2)
	assert.Equal(t, "aws", clouds[0].Name)
	assert.Nil(t, clouds[1].NextFetchAt)

	assert.Error(t, repo.UpdateFetchTimes(ctx, "azure", fixedNow, next))
}

func TestAnnouncementRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, NewCloudRepository(db).UpsertCloud(ctx, "aws", "hashicorp/terraform-provider-aws"))
	repo := NewAnnouncementRepository(db)

	added, err := repo.UpsertAnnouncements(ctx, "aws", []tracker.RawAnnouncement{
		{Title: "Amazon EKS now supports Kubernetes 1.30", Link: "https://example.com/eks", Published: "Thu, 23 May 2024 17:00:00 GMT"},
		{Title: "AWS launches widget compression", Published: "2024-01-10"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = repo.UpsertAnnouncements(ctx, "aws", []tracker.RawAnnouncement{
		{Title: "AWS launches widget compression", Link: "https://example.com/widget", Updated: "2024-01-12"},
		{Title: "Amazon S3 adds a feature"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	items, err := repo.GetAnnouncements(ctx, "aws")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Amazon EKS now supports Kubernetes 1.30", items[0].Title)
	assert.Equal(t, tracker.RawAnnouncement{
		Title:     "AWS launches widget compression",
		Link:      "https://example.com/widget",
		Published: "2024-01-10",
		Updated:   "2024-01-12",
	}, items[1], "empty values never overwrite stored ones")

	count, err := repo.GetAnnouncementCount(ctx, "aws")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	others, err := repo.GetAnnouncements(ctx, "gcp")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestAnnouncementRepositoryRequiresRegisteredCloud(t *testing.T) {
	repo := NewAnnouncementRepository(newTestDB(t))

	_, err := repo.UpsertAnnouncements(context.Background(), "azure", []tracker.RawAnnouncement{{Title: "Azure Monitor: x"}})
	assert.Error(t, err)
}

func TestReleaseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReleaseRepository(newTestDB(t))
	const aws = "hashicorp/terraform-provider-aws"

	added, err := repo.UpsertReleases(ctx, []Release{
		{Repository: aws, Version: "v5.40.0", PublishedAt: "2024-03-01T12:00:00Z", Body: "first"},
		{Repository: aws, Version: "v5.39.0", PublishedAt: "2024-02-22T12:00:00Z", Body: "older"},
		{Repository: "hashicorp/terraform-provider-google", Version: "v5.20.0", PublishedAt: "2024-03-04T12:00:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = repo.UpsertReleases(ctx, []Release{
		{Repository: aws, Version: "v5.40.0", PublishedAt: "2024-03-01T12:00:00Z", Body: "edited"},
		{Repository: aws, Version: "v5.41.0", PublishedAt: "2024-03-08T12:00:00Z", Body: "newest"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	releases, err := repo.GetReleases(ctx, aws)
	require.NoError(t, err)
	require.Len(t, releases, 3)
	assert.Equal(t, []string{"v5.39.0", "v5.40.0", "v5.41.0"}, []string{releases[0].Version, releases[1].Version, releases[2].Version})
	assert.Equal(t, "edited", releases[1].Body)

	count, err := repo.GetReleaseCount(ctx, aws)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestReleaseRepositoryCountsOnlyUpsertedRepositories(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewReleaseRepository(db)
	const aws = "hashicorp/terraform-provider-aws"
	const google = "hashicorp/terraform-provider-google"

	_, err := repo.UpsertReleases(ctx, []Release{
		{Repository: google, Version: "v5.20.0", PublishedAt: "2024-03-04T12:00:00Z"},
		{Repository: google, Version: "v5.21.0", PublishedAt: "2024-03-11T12:00:00Z"},
	})
	require.NoError(t, err)

	count, err := countReleases(ctx, db, []string{aws})
	require.NoError(t, err)
	assert.Zero(t, count, "other repositories are not counted")

	added, err := repo.UpsertReleases(ctx, []Release{
		{Repository: aws, Version: "v5.40.0", PublishedAt: "2024-03-01T12:00:00Z"},
		{Repository: google, Version: "v5.21.0", PublishedAt: "2024-03-11T12:00:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	count, err = countReleases(ctx, db, []string{aws, google})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func sampleRecords() []tracker.Record {
	return []tracker.Record{
		{ID: "gcp-cloud-run--gpu", Cloud: cloud.GCP, Service: "Cloud Run", Feature: "Cloud Run: GPU", Status: "Supported", Version: "v5.30.0", Lag: 10, Date: "2024-05-01"},
		{ID: "aws-a", Cloud: cloud.AWS, Service: "EKS", Feature: "a", Status: "Supported", Version: "v5.52.0", Lag: 4, Date: "2024-04-01"},
		{ID: "aws-b", Cloud: cloud.AWS, Service: "General", Feature: "b", Status: "Not Supported", Version: "--", Lag: 91, Date: "2024-01-10"},
		{ID: "aws-c", Cloud: cloud.AWS, Service: "S3", Feature: "c", Link: "https://example.com/c", Status: "Supported", Version: "v5.1.0", Lag: 8, Date: "2023-12-01"},
	}
}

func TestRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestDB(t))

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, sampleRecords()))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), loaded)

	awsSupported, err := repo.GetRecords(ctx, RecordFilter{Cloud: "aws", Status: "Supported"})
	require.NoError(t, err)
	require.Len(t, awsSupported, 2)
	assert.Equal(t, "a", awsSupported[0].Feature)

	limited, err := repo.GetRecords(ctx, RecordFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, cloud.GCP, limited[0].Cloud)

	require.NoError(t, repo.Save(ctx, sampleRecords()[:1]))
	replaced, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, replaced, 1)
}

func TestRecordRepositoryStats(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestDB(t))
	require.NoError(t, repo.Save(ctx, sampleRecords()))

	stats, err := repo.GetRecordStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, []CloudStats{
		{Cloud: "aws", Total: 3, Supported: 2, NotSupported: 1, AverageLag: 6},
		{Cloud: "gcp", Total: 1, Supported: 1, NotSupported: 0, AverageLag: 10},
	}, stats)
}
