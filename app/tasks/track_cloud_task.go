package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/changelog"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

// Deps are the collaborators shared by every TrackCloudTask.
type Deps struct {
	Fetcher   *feed.Fetcher
	Parser    *feed.Parser
	Filterer  *feed.Filterer
	Changelog *changelog.Client

	CloudRepo        database.CloudRepository
	AnnouncementRepo database.AnnouncementRepository
	ReleaseRepo      database.ReleaseRepository
	Snapshot         *SnapshotUpdater

	// PacingDelay separates consecutive external calls of one task.
	PacingDelay time.Duration
	// Below BackfillThreshold snapshot records, BackfillPages release
	// pages are scanned instead of the cloud's release_pages.
	BackfillThreshold int
	BackfillPages     int

	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// TrackResult summarizes one run of a TrackCloudTask.
type TrackResult struct {
	Announcements    int // fetched from the cloud's sources this run
	NewAnnouncements int
	Releases         int // fetched from the provider repository this run
	NewReleases      int
	SourceErrors     int
	Reconciled       int
	Supported        int
	Backfill         bool
	ReleaseErr       error // release fetch failure of this run
}

// Collected reports whether the run retrieved anything at all.
func (r TrackResult) Collected() bool {
	return r.Announcements > 0 || r.Releases > 0
}

// TrackCloudTask collects a cloud's announcements and its provider's
// releases, reconciles every known announcement and merges the records
// into the snapshot.
type TrackCloudTask struct {
	Task
	CloudConfig *feed.Config
	Result      TrackResult
	deps        *Deps
}

func NewTrackCloudTask(cloudConfig *feed.Config, deps *Deps) *TrackCloudTask {
	return &TrackCloudTask{
		Task:        NewTask(TaskTypeTrackCloud, cloudConfig.Name),
		CloudConfig: cloudConfig,
		deps:        deps,
	}
}

func (t *TrackCloudTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.CloudConfig.Settings.Enabled {
		slog.Debug("Cloud disabled, skipping", "cloud", t.Cloud)
		return nil
	}

	c, err := cloud.Parse(t.CloudConfig.Name)
	if err != nil {
		return fmt.Errorf("%w: %s", feed.ErrUnknownCloud, t.CloudConfig.Name)
	}

	t.Result = TrackResult{}
	startedAt := t.deps.now()

	if err := t.deps.CloudRepo.UpsertCloud(ctx, t.Cloud, t.CloudConfig.Repository); err != nil {
		return fmt.Errorf("failed to register cloud: %w", err)
	}

	if err := t.collectAnnouncements(ctx); err != nil {
		return err
	}

	if err := t.collectReleases(ctx); err != nil {
		return err
	}

	if !t.Result.Collected() && t.Result.SourceErrors > 0 && t.Result.ReleaseErr != nil {
		return fmt.Errorf("no data collected for %s: %w", t.Cloud, t.Result.ReleaseErr)
	}

	records, err := t.reconcile(ctx, c)
	if err != nil {
		return err
	}

	if _, err := t.deps.Snapshot.Update(ctx, records); err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	nextFetch := startedAt.Add(t.CloudConfig.Settings.RefreshDuration())
	if err := t.deps.CloudRepo.UpdateFetchTimes(ctx, t.Cloud, startedAt, nextFetch); err != nil {
		return fmt.Errorf("failed to update fetch times: %w", err)
	}

	slog.Info("Task completed",
		"type", "TrackCloud",
		"cloud", t.Cloud,
		"duration", t.GetDuration(),
		"announcements", t.Result.Announcements,
		"new_announcements", t.Result.NewAnnouncements,
		"releases", t.Result.Releases,
		"new_releases", t.Result.NewReleases,
		"reconciled", t.Result.Reconciled,
		"supported", t.Result.Supported,
		"backfill", t.Result.Backfill,
		"source_errors", t.Result.SourceErrors)

	return nil
}

// collectAnnouncements fetches every source in turn. A failing source is
// logged and skipped.
func (t *TrackCloudTask) collectAnnouncements(ctx context.Context) error {
	settings := t.CloudConfig.Settings

	for i, source := range t.CloudConfig.Sources {
		if i > 0 {
			if err := pace(ctx, t.deps.PacingDelay); err != nil {
				return err
			}
		}

		data, err := t.deps.Fetcher.Run(ctx, source, settings.TimeoutDuration())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Failed to fetch announcements", "cloud", t.Cloud, "source", source, "error", err)
			t.Result.SourceErrors++
			continue
		}

		items, err := t.deps.Parser.Run(data, settings.MaxItems)
		if err != nil {
			slog.Warn("Failed to parse announcements", "cloud", t.Cloud, "source", source, "error", err)
			t.Result.SourceErrors++
			continue
		}
		items = t.deps.Filterer.Run(items, t.CloudConfig)

		added, err := t.deps.AnnouncementRepo.UpsertAnnouncements(ctx, t.Cloud, items)
		if err != nil {
			return fmt.Errorf("failed to store announcements: %w", err)
		}

		t.Result.Announcements += len(items)
		t.Result.NewAnnouncements += added
	}

	return nil
}

// collectReleases refreshes the release cache. Releases fetched before a
// fetch error are still stored and the fetch error is kept in the result;
// only storage errors abort the task.
func (t *TrackCloudTask) collectReleases(ctx context.Context) error {
	pages := t.CloudConfig.Settings.ReleasePages

	records, err := t.deps.Snapshot.Records(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(records) < t.deps.BackfillThreshold && t.deps.BackfillPages > pages {
		pages = t.deps.BackfillPages
		t.Result.Backfill = true
		slog.Info("Snapshot below backfill threshold, scanning more releases", "cloud", t.Cloud, "records", len(records), "pages", pages)
	}

	if len(t.CloudConfig.Sources) > 0 {
		if err := pace(ctx, t.deps.PacingDelay); err != nil {
			return err
		}
	}

	releases, fetchErr := t.deps.Changelog.FetchReleases(ctx, t.CloudConfig.Repository, pages)
	if fetchErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.Result.ReleaseErr = fetchErr
		if errors.Is(fetchErr, changelog.ErrRateLimited) {
			slog.Warn("GitHub rate limit reached, using cached releases", "cloud", t.Cloud, "fetched", len(releases), "error", fetchErr)
		} else {
			slog.Warn("Failed to fetch releases", "cloud", t.Cloud, "fetched", len(releases), "error", fetchErr)
		}
	}

	rows := make([]database.Release, 0, len(releases))
	for _, r := range releases {
		rows = append(rows, database.Release{
			Repository:  t.CloudConfig.Repository,
			Version:     r.Version(),
			PublishedAt: r.Published(),
			Body:        r.Body,
		})
	}

	added, err := t.deps.ReleaseRepo.UpsertReleases(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to store releases: %w", err)
	}

	t.Result.Releases = len(releases)
	t.Result.NewReleases = added

	return nil
}

// reconcile scores every known announcement of the cloud, stored ones and
// those only present in the snapshot, against every cached release.
func (t *TrackCloudTask) reconcile(ctx context.Context, c cloud.Cloud) ([]tracker.Record, error) {
	raw, err := t.deps.AnnouncementRepo.GetAnnouncements(ctx, t.Cloud)
	if err != nil {
		return nil, fmt.Errorf("failed to load announcements: %w", err)
	}

	snapshot, err := t.deps.Snapshot.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	raw = withSnapshotAnnouncements(raw, snapshot, c)

	releases, err := t.deps.ReleaseRepo.GetReleases(ctx, t.CloudConfig.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to load releases: %w", err)
	}

	entries := make([]tracker.ChangelogEntry, 0, len(releases))
	undated := 0
	for _, r := range releases {
		entry, ok := tracker.NewChangelogEntry(r.Version, r.PublishedAt, r.Body)
		if !ok {
			undated++
			continue
		}
		entries = append(entries, entry)
	}
	if undated > 0 {
		slog.Debug("Skipping undated releases", "cloud", t.Cloud, "repository", t.CloudConfig.Repository, "count", undated)
	}

	now := t.deps.now()

	clock := func() time.Time { return now }
	normalizer := tracker.NewNormalizer(tracker.NewResolver(t.CloudConfig.Synonyms), clock)
	reconciler := tracker.NewReconciler(clock)

	announcements := make([]tracker.Announcement, 0, len(raw))
	for _, item := range raw {
		announcements = append(announcements, normalizer.Run(c, item))
	}

	results := reconciler.RunAll(announcements, entries)
	for _, r := range results {
		if r.Status == tracker.Supported {
			t.Result.Supported++
		}
	}
	t.Result.Reconciled = len(results)

	return tracker.ToRecords(results), nil
}

// withSnapshotAnnouncements adds the cloud's snapshot records that are not
// stored as announcements, so their lag keeps being recomputed.
func withSnapshotAnnouncements(raw []tracker.RawAnnouncement, snapshot []tracker.Record, c cloud.Cloud) []tracker.RawAnnouncement {
	known := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		known[item.Title] = struct{}{}
	}

	for _, record := range snapshot {
		if record.Cloud != c {
			continue
		}
		if _, ok := known[record.Feature]; ok {
			continue
		}
		known[record.Feature] = struct{}{}
		raw = append(raw, tracker.RawAnnouncement{
			Title:     record.Feature,
			Link:      record.Link,
			Published: record.Date,
		})
	}
	return raw
}
