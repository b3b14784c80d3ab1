package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
)

// SyncCloudConfigTask registers a configured cloud in the database.
type SyncCloudConfigTask struct {
	Task
	CloudConfig *feed.Config
	cloudRepo   database.CloudRepository
}

func NewSyncCloudConfigTask(cloudConfig *feed.Config, cloudRepo database.CloudRepository) *SyncCloudConfigTask {
	return &SyncCloudConfigTask{
		Task:        NewTask(TaskTypeSyncCloudConfig, cloudConfig.Name),
		CloudConfig: cloudConfig,
		cloudRepo:   cloudRepo,
	}
}

func (t *SyncCloudConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.cloudRepo.UpsertCloud(ctx, t.CloudConfig.Name, t.CloudConfig.Repository)
	if err != nil {
		slog.Error("Task failed", "type", "SyncCloudConfig", "cloud", t.Cloud, "error", err)
		return fmt.Errorf("failed to sync cloud config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncCloudConfig",
		"cloud", t.Cloud,
		"repository", t.CloudConfig.Repository,
		"duration", t.GetDuration())

	return nil
}
