package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tasks"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

func NewHandler(configCache *feed.ConfigCache, cloudRepo database.CloudRepository,
	recordRepo database.RecordRepository, generator GeneratorInterface,
	scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		cloudRepo:   cloudRepo,
		recordRepo:  recordRepo,
		generator:   generator,
		configCache: configCache,
		scheduler:   scheduler,
		version:     version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("cloud")
	target, err := cloud.Parse(name)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	records, err := h.recordRepo.GetRecords(c.Request.Context(), database.RecordFilter{Cloud: target.String(), Limit: feedItems})
	if err != nil {
		slog.Error("Database error", "operation", "get_records", "cloud", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(target, records)
	if err != nil {
		slog.Error("RSS generation error", "cloud", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(records)))
	c.Header("X-Feed-Name", target.String())

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetRecords(c *gin.Context) {
	filter := database.RecordFilter{}

	if name := c.Query("cloud"); name != "" {
		target, err := cloud.Parse(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown cloud", "cloud": name})
			return
		}
		filter.Cloud = target.String()
	}

	if s := c.Query("status"); s != "" {
		status, ok := tracker.ParseStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status", "status": s})
			return
		}
		filter.Status = status.String()
	}

	if l := c.Query("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit", "limit": l})
			return
		}
		filter.Limit = limit
	}

	records, err := h.recordRepo.GetRecords(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "get_records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.recordRepo.GetRecordStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_record_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"clouds": stats})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if clouds, err := h.cloudRepo.GetClouds(c.Request.Context()); err == nil {
		health["clouds"] = len(clouds)
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListClouds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	clouds := make([]map[string]interface{}, 0, len(configs))

	for _, target := range cloud.All() {
		cloudConfig, ok := configs[target.String()]
		if !ok {
			continue
		}

		cloudInfo := map[string]interface{}{
			"name":             cloudConfig.Name,
			"title":            target.Profile().Title,
			"sources":          cloudConfig.Sources,
			"repository":       cloudConfig.Repository,
			"enabled":          cloudConfig.Settings.Enabled,
			"max_items":        cloudConfig.Settings.MaxItems,
			"release_pages":    cloudConfig.Settings.ReleasePages,
			"refresh_interval": cloudConfig.Settings.RefreshDuration().String(),
			"filters":          len(cloudConfig.Filters),
		}

		if registered, err := h.cloudRepo.GetCloud(c.Request.Context(), cloudConfig.Name); err == nil && registered != nil {
			cloudInfo["last_fetched_at"] = registered.LastFetchedAt
			cloudInfo["next_fetch_at"] = registered.NextFetchAt
			cloudInfo["updated_at"] = registered.UpdatedAt
		}

		clouds = append(clouds, cloudInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"clouds": clouds,
		"total":  len(clouds),
	})
}

func (h *Handler) APIRunCloud(c *gin.Context) {
	name := c.Param("cloud")

	taskID, err := h.scheduler.EnqueueCloud(name)
	switch {
	case err == nil:
	case errors.Is(err, feed.ErrUnknownCloud):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cloud configuration not found"})
		return
	case errors.Is(err, tasks.ErrCloudDisabled):
		c.JSON(http.StatusConflict, gin.H{"error": "Cloud is disabled"})
		return
	case errors.Is(err, tasks.ErrCloudQueued):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Cloud is already queued or running",
			"task_id": taskID,
		})
		return
	default:
		slog.Error("Error enqueueing tracking task", "cloud", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue tracking task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Tracking task enqueued",
		"task": gin.H{
			"id":    taskID,
			"type":  tasks.TaskTypeTrackCloud,
			"cloud": name,
		},
	})
}
