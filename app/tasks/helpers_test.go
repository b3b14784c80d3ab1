package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/changelog"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

var fixedNow = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

type announcement struct {
	Title   string
	PubDate string
}

// upstream fakes the cloud feeds and the GitHub releases API.
type upstream struct {
	mu           sync.Mutex
	feeds        map[string][]announcement      // cloud -> items
	releases     map[string][]changelog.Release // repository -> releases
	feedStatus   int
	githubStatus int
	pagesServed  map[string][]string
}

func newUpstream() *upstream {
	return &upstream{
		feeds:       make(map[string][]announcement),
		releases:    make(map[string][]changelog.Release),
		pagesServed: make(map[string][]string),
	}
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/repos/") {
		if u.githubStatus != 0 {
			if u.githubStatus == http.StatusForbidden {
				w.Header().Set("X-RateLimit-Remaining", "0")
			}
			w.WriteHeader(u.githubStatus)
			return
		}
		repo := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/repos/"), "/releases")
		page := r.URL.Query().Get("page")
		u.pagesServed[repo] = append(u.pagesServed[repo], page)

		var n int
		fmt.Sscan(page, &n)
		all := u.releases[repo]
		start, end := (n-1)*100, n*100
		batch := []changelog.Release{}
		if start < len(all) {
			batch = all[start:min(end, len(all))]
		}
		if end < len(all) {
			w.Header().Set("Link", fmt.Sprintf(`<%s?per_page=100&page=%d>; rel="next"`, r.URL.Path, n+1))
		}
		json.NewEncoder(w).Encode(batch)
		return
	}

	if u.feedStatus != 0 {
		w.WriteHeader(u.feedStatus)
		return
	}
	cloudName := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/feeds/"), ".xml")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>whats new</title>`)
	for i, item := range u.feeds[cloudName] {
		fmt.Fprintf(&b, "<item><title>%s</title><link>https://example.com/%s/%d</link><pubDate>%s</pubDate></item>",
			item.Title, cloudName, i, item.PubDate)
	}
	b.WriteString("</channel></rss>")
	w.Write([]byte(b.String()))
}

func (u *upstream) set(fn func(u *upstream)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(u)
}

type testEnv struct {
	upstream    *upstream
	server      *httptest.Server
	deps        *Deps
	configCache *feed.ConfigCache
	cloudsDir   string
	db          *database.DB
	snapshot    *database.FileSnapshotStore
	records     database.RecordRepository
}

func newTestEnv(t *testing.T, clouds ...string) *testEnv {
	t.Helper()

	up := newUpstream()
	server := httptest.NewServer(up)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cloudsDir := filepath.Join(dir, "clouds")
	require.NoError(t, os.MkdirAll(cloudsDir, 0o755))
	for _, name := range clouds {
		content := fmt.Sprintf("sources:\n  - %q\nsettings:\n  refresh_interval: 3600\n", server.URL+"/feeds/"+name+".xml")
		require.NoError(t, os.WriteFile(filepath.Join(cloudsDir, name+".yml"), []byte(content), 0o644))
	}
	configCache := feed.NewConfigCache(cloudsDir)
	require.NoError(t, configCache.Run())

	db, err := database.Open(filepath.Join(dir, "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	snapshot := database.NewFileSnapshotStore(filepath.Join(dir, "r2c_lag_data.json"))
	records := database.NewRecordRepository(db)

	deps := &Deps{
		Fetcher:          feed.NewFetcher(server.Client(), "test"),
		Parser:           feed.NewParser(),
		Filterer:         feed.NewFilterer(),
		Changelog:        changelog.NewClient(server.Client(), "test", changelog.WithBaseURL(server.URL)),
		CloudRepo:        database.NewCloudRepository(db),
		AnnouncementRepo: database.NewAnnouncementRepository(db),
		ReleaseRepo:      database.NewReleaseRepository(db),
		Snapshot:         NewSnapshotUpdater(snapshot, records),
		Now:              func() time.Time { return fixedNow },
	}

	return &testEnv{
		upstream:    up,
		server:      server,
		deps:        deps,
		configCache: configCache,
		cloudsDir:   cloudsDir,
		db:          db,
		snapshot:    snapshot,
		records:     records,
	}
}

func (e *testEnv) cloudConfig(t *testing.T, name string) *feed.Config {
	t.Helper()
	cloudConfig, err := e.configCache.GetConfig(name)
	require.NoError(t, err)
	return cloudConfig
}

func (e *testEnv) snapshotRecords(t *testing.T) []tracker.Record {
	t.Helper()
	records, err := e.snapshot.Load(context.Background())
	require.NoError(t, err)
	return records
}

func widgetUpstream(u *upstream) {
	u.feeds["aws"] = []announcement{
		{Title: "AWS launches widget compression", PubDate: "Wed, 10 Jan 2024 00:00:00 GMT"},
	}
	u.releases["hashicorp/terraform-provider-aws"] = []changelog.Release{
		{TagName: "v1.3", PublishedAt: "2024-03-01T00:00:00Z", Body: "Widget compression support"},
		{TagName: "v1.2", PublishedAt: "2024-02-01T00:00:00Z", Body: "Bug fixes for gadget handling"},
		{TagName: "v1.0", PublishedAt: "2024-01-05T00:00:00Z", Body: "Widget compression support"},
	}
}

// writeConfig replaces a cloud's configuration file and reloads it.
func (e *testEnv) writeConfig(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.cloudsDir, name+".yml"), []byte(content), 0o644))
	_, err := e.configCache.LoadConfig(name)
	require.NoError(t, err)
}
