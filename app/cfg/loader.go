package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/tracker.db" description:"SQLite database file"`
	SnapshotPath string `long:"snapshot-path" env:"SNAPSHOT_PATH" default:"./r2c_lag_data.json" description:"JSON snapshot of reconciled records"`

	// Application configuration
	CloudsDir         string `long:"clouds-dir" env:"CLOUDS_DIR" default:"./clouds" description:"Directory containing cloud configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://lag.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for cloud tracking"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Once              bool   `long:"once" env:"ONCE" description:"Track every enabled cloud once and exit"`

	// Collection configuration
	UserAgent         string `long:"user-agent" env:"USER_AGENT" default:"Terraform Feature Lag Tracker/1.0" description:"User agent string for HTTP requests"`
	GitHubToken       string `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub token for the releases API (optional)"`
	PacingDelay       int    `long:"pacing-delay" env:"PACING_DELAY" default:"500" description:"Delay between external requests of one cloud in milliseconds"`
	BackfillThreshold int    `long:"backfill-threshold" env:"BACKFILL_THRESHOLD" default:"50" description:"Snapshot size below which releases are backfilled"`
	BackfillPages     int    `long:"backfill-pages" env:"BACKFILL_PAGES" default:"5" description:"Release pages scanned during a backfill"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SnapshotPath:      raw.SnapshotPath,
		CloudsDir:         raw.CloudsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Once:              raw.Once,
		UserAgent:         raw.UserAgent,
		GitHubToken:       raw.GitHubToken,
		PacingDelay:       raw.PacingDelay,
		BackfillThreshold: raw.BackfillThreshold,
		BackfillPages:     raw.BackfillPages,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func validate(raw *rawCfg) error {
	if raw.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.PacingDelay < 0 || raw.BackfillThreshold < 0 || raw.BackfillPages < 0 {
		return fmt.Errorf("pacing delay and backfill settings must not be negative")
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// PacingDuration is the delay between consecutive external requests.
func (c *Cfg) PacingDuration() time.Duration {
	return time.Duration(c.PacingDelay) * time.Millisecond
}

func (c *Cfg) SchedulerDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
