package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type failingStore struct{}

func (failingStore) Load(context.Context) ([]tracker.Record, error) {
	return nil, errors.New("unavailable")
}

func (failingStore) Save(context.Context, []tracker.Record) error {
	return errors.New("unavailable")
}

func testRecord(c cloud.Cloud, feature, date string) tracker.Record {
	return tracker.Record{
		ID:      tracker.RecordID(c.String(), feature),
		Cloud:   c,
		Service: tracker.GeneralService,
		Feature: feature,
		Status:  tracker.NotSupported.String(),
		Version: tracker.NoVersion,
		Date:    date,
	}
}

func TestSnapshotUpdaterMergesIntoPrimaryAndMirrors(t *testing.T) {
	dir := t.TempDir()
	primary := database.NewFileSnapshotStore(filepath.Join(dir, "primary.json"))
	mirror := database.NewFileSnapshotStore(filepath.Join(dir, "mirror.json"))
	u := NewSnapshotUpdater(primary, mirror)
	ctx := context.Background()

	_, err := u.Update(ctx, []tracker.Record{testRecord(cloud.AWS, "a", "2024-01-01")})
	require.NoError(t, err)
	merged, err := u.Update(ctx, []tracker.Record{testRecord(cloud.GCP, "b", "2024-02-01")})
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, "b", merged[0].Feature)

	mirrored, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, merged, mirrored)
}

func TestSnapshotUpdaterIgnoresMirrorFailures(t *testing.T) {
	primary := database.NewFileSnapshotStore(filepath.Join(t.TempDir(), "primary.json"))
	u := NewSnapshotUpdater(primary, failingStore{})

	_, err := u.Update(context.Background(), []tracker.Record{testRecord(cloud.Azure, "a", "2024-01-01")})
	require.NoError(t, err)

	records, err := u.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSnapshotUpdaterPrimaryFailure(t *testing.T) {
	u := NewSnapshotUpdater(failingStore{})

	_, err := u.Update(context.Background(), nil)
	assert.Error(t, err)

	_, err = u.Sync(context.Background())
	assert.Error(t, err)
}

func TestSnapshotUpdaterSync(t *testing.T) {
	dir := t.TempDir()
	primary := database.NewFileSnapshotStore(filepath.Join(dir, "primary.json"))
	mirror := database.NewFileSnapshotStore(filepath.Join(dir, "mirror.json"))
	ctx := context.Background()
	require.NoError(t, primary.Save(ctx, []tracker.Record{
		testRecord(cloud.AWS, "old", "2023-01-01"),
		testRecord(cloud.AWS, "new", "2024-01-01"),
	}))

	n, err := NewSnapshotUpdater(primary, mirror).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mirrored, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", mirrored[0].Feature)
}
