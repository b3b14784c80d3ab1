package cfg

type Cfg struct {
	// Storage configuration
	DBPath       string
	SnapshotPath string

	// Application configuration
	CloudsDir         string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	Once              bool

	// Collection configuration
	UserAgent         string
	GitHubToken       string
	PacingDelay       int
	BackfillThreshold int
	BackfillPages     int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
