// Package changelog reads Terraform provider release notes from GitHub.
package changelog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

// ErrRateLimited is returned when GitHub refuses a request for quota
// reasons. Releases fetched before the refusal are still returned.
var ErrRateLimited = errors.New("github rate limit exceeded")

const (
	DefaultBaseURL = "https://api.github.com/"
	perPage        = 100
)

// Release is a GitHub release with its dates kept as RFC 3339 strings.
type Release struct {
	TagName     string `json:"tag_name,omitempty"`
	Name        string `json:"name,omitempty"`
	Body        string `json:"body,omitempty"`
	Draft       bool   `json:"draft,omitempty"`
	Prerelease  bool   `json:"prerelease,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Published is the release date, falling back to the creation date.
func (r Release) Published() string {
	return cmp.Or(r.PublishedAt, r.CreatedAt)
}

func (r Release) Version() string {
	return cmp.Or(r.TagName, r.Name)
}

// Entry converts the release for reconciliation. It reports false for a
// release without a usable date.
func (r Release) Entry() (tracker.ChangelogEntry, bool) {
	return tracker.NewChangelogEntry(r.Version(), r.Published(), r.Body)
}

func newRelease(r *github.RepositoryRelease) Release {
	return Release{
		TagName:     r.GetTagName(),
		Name:        r.GetName(),
		Body:        r.GetBody(),
		Draft:       r.GetDraft(),
		Prerelease:  r.GetPrerelease(),
		PublishedAt: formatTimestamp(r.PublishedAt),
		CreatedAt:   formatTimestamp(r.CreatedAt),
	}
}

func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

type Client struct {
	github *github.Client
	pacing time.Duration
}

type config struct {
	baseURL string
	token   string
	pacing  time.Duration
}

type Option func(*config)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *config) { c.baseURL = baseURL }
}

// WithToken authenticates requests, which raises the API quota.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithPacing waits d between consecutive page requests.
func WithPacing(d time.Duration) Option {
	return func(c *config) { c.pacing = d }
}

func NewClient(httpClient *http.Client, userAgent string, opts ...Option) *Client {
	cfg := config{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}

	gh := github.NewClient(httpClient)
	if cfg.token != "" {
		gh = gh.WithAuthToken(cfg.token)
	}
	if userAgent != "" {
		gh.UserAgent = userAgent
	}
	if cfg.baseURL != DefaultBaseURL {
		baseURL, err := url.Parse(strings.TrimRight(cfg.baseURL, "/") + "/")
		if err != nil {
			slog.Warn("Invalid GitHub base URL, using default", "base_url", cfg.baseURL, "error", err)
		} else {
			gh.BaseURL = baseURL
		}
	}

	return &Client{github: gh, pacing: cfg.pacing}
}

// FetchReleases reads up to pages pages of releases of repo (owner/name),
// newest first, skipping drafts. Paging stops when GitHub reports no next
// page.
func (c *Client) FetchReleases(ctx context.Context, repo string, pages int) ([]Release, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	pages = max(pages, 1)

	opts := &github.ListOptions{PerPage: perPage, Page: 1}

	var releases []Release
	for fetched := 1; ; fetched++ {
		batch, resp, err := c.github.Repositories.ListReleases(ctx, owner, name, opts)
		if err != nil {
			if isRateLimit(err) {
				err = fmt.Errorf("%w: %w", ErrRateLimited, err)
			}
			return releases, fmt.Errorf("failed to fetch releases page %d of %s: %w", opts.Page, repo, err)
		}

		for _, r := range batch {
			if r.GetDraft() {
				continue
			}
			releases = append(releases, newRelease(r))
		}

		slog.Debug("Releases page fetched", "repository", repo, "page", opts.Page, "count", len(batch))

		if resp.NextPage == 0 || fetched >= pages {
			break
		}
		opts.Page = resp.NextPage

		if c.pacing > 0 {
			timer := time.NewTimer(c.pacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return releases, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return releases, nil
}

// isRateLimit reports primary and secondary quota refusals. GitHub
// answers an exhausted quota with 403 and X-RateLimit-Remaining 0, or 429.
func isRateLimit(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusTooManyRequests
}
