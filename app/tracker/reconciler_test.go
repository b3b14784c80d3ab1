package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func entry(version string, at time.Time, body string) ChangelogEntry {
	return ChangelogEntry{Version: version, PublishedAt: at, Body: body}
}

func widgetAnnouncement(t *testing.T) Announcement {
	t.Helper()
	a := NewNormalizer(nil, clock).Run(cloud.AWS, RawAnnouncement{
		Title:     "AWS launches widget compression",
		Published: "2024-01-10T00:00:00Z",
	})
	require.Equal(t, []string{"compression", "widget"}, a.Tokens)
	return a
}

func TestReconcileEarliestQualifyingEntry(t *testing.T) {
	a := widgetAnnouncement(t)
	entries := []ChangelogEntry{
		entry("v1.3", day(2024, 3, 1), "widget compression support"),
		entry("v1.0", day(2024, 1, 5), "widget compression support"),
		entry("v1.2", day(2024, 2, 1), "bug fixes for gadget handling"),
	}

	got := NewReconciler(clock).Run(a, entries)

	assert.Equal(t, Supported, got.Status)
	assert.Equal(t, "v1.3", got.Version)
	assert.Equal(t, 51, got.LagDays)
	require.NotNil(t, got.Match)
	assert.Equal(t, 1.0, got.Match.Score)
	assert.Equal(t, SignalNone, got.Match.Signal)
}

func TestReconcileHalfTokenScoreClearsDefaultThreshold(t *testing.T) {
	a := widgetAnnouncement(t)
	entries := []ChangelogEntry{
		entry("v1.2", day(2024, 2, 1), "new widget data source"),
		entry("v1.3", day(2024, 3, 1), "widget compression support"),
	}

	got := NewReconciler(clock).Run(a, entries)

	assert.Equal(t, Supported, got.Status)
	assert.Equal(t, "v1.2", got.Version, "first qualifying entry wins, not the best one")
	assert.Equal(t, 22, got.LagDays)
	assert.Equal(t, 0.5, got.Match.Score)
}

func TestReconcileNotSupportedCountsDaysSinceGA(t *testing.T) {
	a := widgetAnnouncement(t)
	entries := []ChangelogEntry{
		entry("v0.9", day(2023, 12, 1), "widget compression support"),
		entry("v1.1", day(2024, 1, 20), "unrelated fixes"),
	}

	got := NewReconciler(clock).Run(a, entries)

	assert.Equal(t, NotSupported, got.Status)
	assert.Empty(t, got.Version)
	assert.Nil(t, got.Match)
	assert.Equal(t, 91, got.LagDays)
}

func TestReconcileWithoutCandidates(t *testing.T) {
	a := widgetAnnouncement(t)

	got := NewReconciler(clock).Run(a, nil)

	assert.Equal(t, NotSupported, got.Status)
	assert.Equal(t, 91, got.LagDays)
}

func TestReconcileLagNeverNegative(t *testing.T) {
	ga := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	a := Announcement{Cloud: cloud.AWS, GADate: ga, Tokens: []string{"widget"}}

	sameInstant := NewReconciler(clock).Run(a, []ChangelogEntry{entry("v1", ga, "widget")})
	assert.Equal(t, Supported, sameInstant.Status)
	assert.Equal(t, 0, sameInstant.LagDays)

	skewed := NewReconciler(clock).Run(a, []ChangelogEntry{entry("v1", ga.Add(-2*time.Second), "widget")})
	assert.Equal(t, NotSupported, skewed.Status, "entries before GA are never eligible")

	future := Announcement{Cloud: cloud.AWS, GADate: fixedNow.Add(72 * time.Hour), Tokens: []string{"widget"}}
	pending := NewReconciler(clock).Run(future, nil)
	assert.Equal(t, 0, pending.LagDays)
}

func TestScoreThresholdOrdering(t *testing.T) {
	assert.LessOrEqual(t, SignalResource.Threshold(), SignalService.Threshold())
	assert.LessOrEqual(t, SignalService.Threshold(), SignalNone.Threshold())

	// One hit out of five tokens scores exactly 0.20.
	a := Announcement{
		Cloud:         cloud.AWS,
		ServiceToken:  "widget",
		ResourceGuess: "aws_widget",
		Tokens:        []string{"alpha", "bravo", "charlie", "delta", "echo"},
	}

	resource := Score(a, "new resource: aws_widget with alpha")
	assert.True(t, resource.ResourceMatch)
	assert.Equal(t, SignalResource, resource.Signal)
	assert.Equal(t, 0.2, resource.Score)
	assert.True(t, resource.Accepted)

	service := Score(a, "widget improvements for alpha")
	assert.False(t, service.ResourceMatch)
	assert.True(t, service.ServiceMatch)
	assert.Equal(t, ServiceThreshold, service.Threshold)
	assert.False(t, service.Accepted)

	none := Score(a, "alpha only")
	assert.Equal(t, SignalNone, none.Signal)
	assert.False(t, none.Accepted)

	// One hit out of four is 0.25: enough with the service signal only.
	a.Tokens = a.Tokens[:4]
	assert.True(t, Score(a, "widget improvements for alpha").Accepted)
	assert.False(t, Score(a, "alpha only").Accepted)
}

func TestScoreResourceMatchDoesNotBypassThreshold(t *testing.T) {
	a := Announcement{
		Cloud:         cloud.AWS,
		ServiceToken:  "eks",
		ResourceGuess: "aws_eks",
		Tokens:        []string{"hybrid", "nodes"},
	}
	m := Score(a, "* resource/aws_eks_cluster: fix crash on import")
	assert.True(t, m.ResourceMatch)
	assert.Equal(t, 0.0, m.Score)
	assert.False(t, m.Accepted)

	empty := Announcement{Cloud: cloud.AWS, ServiceToken: "eks", ResourceGuess: "aws_eks"}
	m = Score(empty, "new resource: aws_eks_pod_identity")
	assert.True(t, m.ResourceMatch)
	assert.Equal(t, 0.0, m.Score, "an empty token set scores zero")
	assert.False(t, m.Accepted)
}

func TestScoreUsesSubstringContainment(t *testing.T) {
	a := Announcement{Cloud: cloud.GCP, Tokens: []string{"sql"}}

	m := Score(a, "resource/google_alloydb: postgresql 16 support")

	assert.Equal(t, 1, m.Hits, "sql is found inside postgresql")
	assert.True(t, m.Accepted)
}

func TestReconcileIsDeterministicAndLeavesCandidatesUntouched(t *testing.T) {
	a := widgetAnnouncement(t)
	entries := []ChangelogEntry{
		entry("v1.3", day(2024, 3, 1), "widget compression support"),
		entry("v1.4", day(2024, 3, 1), "widget compression support"),
		entry("v1.2", day(2024, 2, 1), "unrelated"),
	}
	before := append([]ChangelogEntry(nil), entries...)

	r := NewReconciler(clock)
	first := r.Run(a, entries)
	second := r.Run(a, entries)

	assert.Equal(t, first, second)
	assert.Equal(t, before, entries)
	assert.Equal(t, "v1.3", first.Version, "equal instants keep input order")
}

func TestReconcileNeverSelectsEntriesBeforeGA(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"widget", "compression", "bucket", "cluster", "replication", "alpha"}
	base := day(2024, 1, 1)
	r := NewReconciler(clock)

	for i := 0; i < 500; i++ {
		a := Announcement{
			Cloud:  cloud.AWS,
			GADate: base.Add(time.Duration(rng.Intn(90*24)) * time.Hour),
			Tokens: []string{words[rng.Intn(len(words))], words[rng.Intn(len(words))]},
		}
		entries := make([]ChangelogEntry, rng.Intn(8))
		for j := range entries {
			entries[j] = entry(
				"v"+string(rune('a'+j)),
				base.Add(time.Duration(rng.Intn(120*24))*time.Hour),
				words[rng.Intn(len(words))]+" "+words[rng.Intn(len(words))],
			)
		}

		got := r.Run(a, entries)
		assert.GreaterOrEqual(t, got.LagDays, 0)
		if got.Status != Supported {
			continue
		}
		for _, e := range entries {
			if e.Version == got.Version {
				assert.False(t, e.PublishedAt.Before(a.GADate), "iteration %d matched %s before GA", i, e.Version)
			}
		}
	}
}

func TestRunAll(t *testing.T) {
	a := widgetAnnouncement(t)
	b := a
	b.Feature = "other"
	b.Tokens = []string{"nothing"}

	results := NewReconciler(clock).RunAll([]Announcement{a, b}, []ChangelogEntry{
		entry("v1.3", day(2024, 3, 1), "widget compression support"),
	})

	require.Len(t, results, 2)
	assert.Equal(t, Supported, results[0].Status)
	assert.Equal(t, NotSupported, results[1].Status)
}
