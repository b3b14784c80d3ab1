package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to run cloud tracking in the
// background.
// Example usage:
//
//	scheduler := NewScheduler(configCache, cloudRepo, deps, workerCount, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewTrackCloudTask(cloudConfig, deps))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueCloud(cloudName string) (string, error)
}
