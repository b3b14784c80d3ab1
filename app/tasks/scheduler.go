package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
)

var (
	ErrQueueFull     = errors.New("task queue is full")
	ErrCloudDisabled = errors.New("cloud is disabled")
	ErrCloudQueued   = errors.New("cloud is already queued or running")
)

const (
	queueSize       = 300
	taskTimeout     = 15 * time.Minute
	maxRetryBackoff = 30 * time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *feed.ConfigCache
	cloudRepo   database.CloudRepository
	deps        *Deps
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	inFlight map[string]string // cloud -> tracking task ID
}

func NewScheduler(configCache *feed.ConfigCache, cloudRepo database.CloudRepository, deps *Deps,
	workerCount int, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		cloudRepo:   cloudRepo,
		deps:        deps,
		interval:    interval,
		workerCount: max(workerCount, 1),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		inFlight:    make(map[string]string),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers to exit. Pending
// tasks are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueCloud queues a tracking run of an enabled cloud unless one is
// already queued or running, and returns the task ID.
func (s *Scheduler) EnqueueCloud(cloudName string) (string, error) {
	cloudConfig, err := s.configCache.GetConfig(cloudName)
	if err != nil {
		return "", err
	}
	if !cloudConfig.Settings.Enabled {
		return "", fmt.Errorf("%w: %s", ErrCloudDisabled, cloudConfig.Name)
	}
	return s.enqueueTracking(cloudConfig)
}

func (s *Scheduler) enqueueTracking(cloudConfig *feed.Config) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.inFlight[cloudConfig.Name]; ok {
		return id, fmt.Errorf("%w: %s", ErrCloudQueued, cloudConfig.Name)
	}

	task := NewTrackCloudTask(cloudConfig, s.deps)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	s.inFlight[cloudConfig.Name] = task.GetID()
	return task.GetID(), nil
}

func (s *Scheduler) release(task TaskInterface) {
	if task.GetType() != TaskTypeTrackCloud {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[task.GetCloud()] == task.GetID() {
		delete(s.inFlight, task.GetCloud())
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	cloudConfigs := s.configCache.GetConfigs()
	if len(cloudConfigs) == 0 {
		slog.Debug("No cloud configurations found")
		return
	}

	slog.Debug("Processing cloud configurations", "count", len(cloudConfigs))

	for _, cloudConfig := range cloudConfigs {
		syncTask := NewSyncCloudConfigTask(cloudConfig, s.cloudRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncCloudConfigTask", "cloud", cloudConfig.Name, "error", err)
		}
	}

	s.enqueueTasks()
}

// enqueueTasks queues every enabled cloud that is due for a refresh.
func (s *Scheduler) enqueueTasks() {
	cloudConfigs := s.configCache.GetEnabledConfigs()
	if len(cloudConfigs) == 0 {
		slog.Debug("No enabled cloud configurations found")
		return
	}

	now := s.deps.now().UTC()
	for _, cloudConfig := range cloudConfigs {
		registered, err := s.cloudRepo.GetCloud(s.ctx, cloudConfig.Name)
		if err != nil {
			slog.Warn("Failed to get cloud from database, skipping", "cloud", cloudConfig.Name, "error", err)
			continue
		}

		if registered != nil && registered.NextFetchAt != nil && registered.NextFetchAt.After(now) {
			slog.Debug("Cloud not due for refresh yet", "cloud", cloudConfig.Name, "next_fetch_at", registered.NextFetchAt)
			continue
		}

		if _, err := s.enqueueTracking(cloudConfig); err != nil {
			if errors.Is(err, ErrCloudQueued) {
				slog.Debug("Cloud already queued", "cloud", cloudConfig.Name)
				continue
			}
			slog.Warn("Failed to enqueue TrackCloudTask", "cloud", cloudConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "cloud", task.GetCloud(), "retry_count", task.GetRetryCount(), "error", err)

	if s.ctx.Err() != nil || !task.CanRetry() {
		if s.ctx.Err() == nil {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryBackoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "cloud", task.GetCloud(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := pace(s.ctx, retryDelay); err != nil {
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task)
			return
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			s.release(task)
		}
	}()
}

// retryBackoff doubles from one second per attempt, capped.
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		return maxRetryBackoff
	}
	return min(time.Duration(1<<uint(attempt-1))*time.Second, maxRetryBackoff)
}
