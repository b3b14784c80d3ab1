package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

// RunOnce tracks every enabled cloud concurrently and waits for all of
// them. It returns tracker.ErrNoInput when no cloud collected anything,
// and joins the errors of failed clouds otherwise.
func RunOnce(ctx context.Context, configCache *feed.ConfigCache, deps *Deps) (map[string]TrackResult, error) {
	cloudConfigs := configCache.GetEnabledConfigs()

	names := make([]string, 0, len(cloudConfigs))
	for name := range cloudConfigs {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]TrackResult, len(names))
		errs    []error
	)

	for _, name := range names {
		task := NewTrackCloudTask(cloudConfigs[name], deps)

		wg.Add(1)
		go func() {
			defer wg.Done()

			task.Start()
			err := task.Execute(ctx)

			mu.Lock()
			defer mu.Unlock()
			results[task.GetCloud()] = task.Result
			if err != nil {
				slog.Error("Cloud tracking failed", "cloud", task.GetCloud(), "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", task.GetCloud(), err))
			}
		}()
	}
	wg.Wait()

	collected := false
	for _, result := range results {
		if result.Collected() {
			collected = true
			break
		}
	}
	if !collected {
		return results, errors.Join(append([]error{tracker.ErrNoInput}, errs...)...)
	}

	return results, errors.Join(errs...)
}
