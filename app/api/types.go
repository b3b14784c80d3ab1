package api

import (
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tasks"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type GeneratorInterface interface {
	Run(c cloud.Cloud, records []tracker.Record) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// feedItems caps the records rendered into a cloud feed.
const feedItems = 100

type Handler struct {
	cloudRepo   database.CloudRepository
	recordRepo  database.RecordRepository
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
	version     string
}
