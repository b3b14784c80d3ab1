package tracker

import (
	"sort"
	"strings"
	"time"
)

// Acceptance thresholds on the token score, by strongest signal present.
const (
	ResourceThreshold = 0.20
	ServiceThreshold  = 0.25
	DefaultThreshold  = 0.30
)

type Signal int

const (
	SignalNone Signal = iota
	SignalService
	SignalResource
)

func (s Signal) String() string {
	switch s {
	case SignalResource:
		return "resource"
	case SignalService:
		return "service"
	default:
		return "tokens"
	}
}

// Threshold is the minimum token score a candidate needs under the signal.
// The signals lower the bar; they never accept on their own.
func (s Signal) Threshold() float64 {
	switch s {
	case SignalResource:
		return ResourceThreshold
	case SignalService:
		return ServiceThreshold
	default:
		return DefaultThreshold
	}
}

// Match is the outcome of scoring one announcement against one body.
type Match struct {
	ResourceMatch bool
	ServiceMatch  bool
	Hits          int
	Score         float64
	Signal        Signal
	Threshold     float64
	Accepted      bool
}

// Score compares an announcement with a lowercased changelog body using
// plain substring containment, so "sql" is found inside "postgresql".
func Score(a Announcement, body string) Match {
	m := Match{
		ResourceMatch: a.ResourceGuess != "" && strings.Contains(body, a.ResourceGuess),
		ServiceMatch:  a.ServiceToken != "" && strings.Contains(body, a.ServiceToken),
	}

	for _, t := range a.Tokens {
		if strings.Contains(body, t) {
			m.Hits++
		}
	}
	if len(a.Tokens) > 0 {
		m.Score = float64(m.Hits) / float64(len(a.Tokens))
	}

	switch {
	case m.ResourceMatch:
		m.Signal = SignalResource
	case m.ServiceMatch:
		m.Signal = SignalService
	default:
		m.Signal = SignalNone
	}
	m.Threshold = m.Signal.Threshold()
	m.Accepted = m.Score >= m.Threshold
	return m
}

type Reconciler struct {
	now func() time.Time
}

// NewReconciler returns a reconciler that measures the lag of unsupported
// announcements against now.
func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// Run finds the earliest entry published at or after the announcement's GA
// date whose body clears the threshold. entries is not modified.
func (r *Reconciler) Run(a Announcement, entries []ChangelogEntry) Reconciled {
	eligible := make([]ChangelogEntry, 0, len(entries))
	for _, e := range entries {
		if !e.PublishedAt.Before(a.GADate) {
			eligible = append(eligible, e)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].PublishedAt.Before(eligible[j].PublishedAt)
	})

	for _, e := range eligible {
		m := Score(a, e.Body)
		if !m.Accepted {
			continue
		}
		return Reconciled{
			Announcement: a,
			Status:       Supported,
			Version:      e.Version,
			LagDays:      max(0, daysBetween(a.GADate, e.PublishedAt)),
			Match:        &m,
		}
	}

	return Reconciled{
		Announcement: a,
		Status:       NotSupported,
		LagDays:      max(0, daysBetween(a.GADate, r.now())),
	}
}

// RunAll reconciles every announcement against the same candidate set.
func (r *Reconciler) RunAll(announcements []Announcement, entries []ChangelogEntry) []Reconciled {
	results := make([]Reconciled, 0, len(announcements))
	for _, a := range announcements {
		results = append(results, r.Run(a, entries))
	}
	return results
}
