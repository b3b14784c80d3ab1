// Package tracker is the reconciliation core. It normalizes cloud
// announcements, scores them against provider changelog entries and merges
// the enriched records into the persisted snapshot. Everything here is pure
// and synchronous; fetching and storage live in the collector packages.
package tracker

import (
	"errors"
	"strings"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
)

// ErrNoInput is returned by orchestrators when a run collected neither
// announcements nor changelog entries from any source.
var ErrNoInput = errors.New("no announcements or changelog entries collected")

// NoVersion is written in place of a version for unsupported records.
const NoVersion = "--"

type Status int

const (
	NotSupported Status = iota
	Supported
)

func (s Status) String() string {
	if s == Supported {
		return "Supported"
	}
	return "Not Supported"
}

// ParseStatus accepts the persisted labels and a few loose spellings used in
// API query strings.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)) {
	case "supported":
		return Supported, true
	case "notsupported", "unsupported":
		return NotSupported, true
	}
	return NotSupported, false
}

// RawAnnouncement is an announcement exactly as a collector saw it.
type RawAnnouncement struct {
	Title     string
	Link      string
	Published string
	Updated   string
}

// Announcement is a normalized announcement, ready to be reconciled.
type Announcement struct {
	Cloud          cloud.Cloud
	Service        string // pattern-extracted, untruncated
	ServiceDisplay string
	ServiceToken   string
	ResourceGuess  string
	Feature        string
	Link           string
	GADate         time.Time
	Tokens         []string
}

// ChangelogEntry is one release of a provider repository.
type ChangelogEntry struct {
	Version     string
	PublishedAt time.Time
	Body        string // lowercased
}

// NewChangelogEntry builds an entry with a lowercased body and a zoned
// publish instant. It reports false when the release has no usable date:
// such an entry cannot be ordered against GA dates and must not be matched.
func NewChangelogEntry(version, published, body string) (ChangelogEntry, bool) {
	at, err := ParseInstant(published)
	if err != nil {
		return ChangelogEntry{}, false
	}
	return ChangelogEntry{
		Version:     version,
		PublishedAt: at,
		Body:        strings.ToLower(body),
	}, true
}

// Reconciled is an announcement enriched with its support outcome.
type Reconciled struct {
	Announcement
	Status  Status
	Version string // empty when unsupported
	LagDays int
	Match   *Match // scoring details of the accepted entry
}

// Record is the persisted form of a reconciled announcement.
type Record struct {
	ID      string      `json:"id"`
	Cloud   cloud.Cloud `json:"cloud"`
	Service string      `json:"service"`
	Feature string      `json:"feature"`
	Link    string      `json:"link"`
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Lag     int         `json:"lag"`
	Date    string      `json:"date"`
}

// Key is the identity of a record: the same cloud and the same literal
// title are the same announcement, whatever feed it came from.
func (r Record) Key() string {
	return r.Cloud.String() + "\x00" + r.Feature
}

func (r Record) Supported() bool {
	return r.Status == Supported.String()
}
