package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

// SnapshotUpdater serializes read-merge-write cycles on the snapshot. The
// primary store is the source of truth; mirrors receive a copy of every
// merged snapshot.
type SnapshotUpdater struct {
	mu      sync.Mutex
	primary database.SnapshotStore
	mirrors []database.SnapshotStore
	merger  *tracker.Merger
}

func NewSnapshotUpdater(primary database.SnapshotStore, mirrors ...database.SnapshotStore) *SnapshotUpdater {
	return &SnapshotUpdater{
		primary: primary,
		mirrors: mirrors,
		merger:  tracker.NewMerger(),
	}
}

// Update merges fresh records into the snapshot and returns the result.
func (u *SnapshotUpdater) Update(ctx context.Context, fresh []tracker.Record) ([]tracker.Record, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	existing, err := u.primary.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	merged := u.merger.Run(existing, fresh)

	if err := u.primary.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	u.saveMirrors(ctx, merged)

	return merged, nil
}

// Sync copies the primary snapshot to the mirrors, re-sorted.
func (u *SnapshotUpdater) Sync(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	records, err := u.primary.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}
	tracker.SortRecords(records)
	u.saveMirrors(ctx, records)
	return len(records), nil
}

func (u *SnapshotUpdater) Records(ctx context.Context) ([]tracker.Record, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.primary.Load(ctx)
}

// A stale mirror only affects the API; the primary already holds the data.
func (u *SnapshotUpdater) saveMirrors(ctx context.Context, records []tracker.Record) {
	for _, mirror := range u.mirrors {
		if err := mirror.Save(ctx, records); err != nil {
			slog.Warn("Failed to update snapshot mirror", "records", len(records), "error", err)
		}
	}
}
