package tracker

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// idFeatureWidth caps how much of the feature text goes into a record id.
	idFeatureWidth = 40
	dateLayout     = "2006-01-02"
)

// ToRecord converts a reconciled announcement to its persisted form.
func ToRecord(r Reconciled) Record {
	version := r.Version
	if r.Status != Supported || version == "" {
		version = NoVersion
	}
	return Record{
		ID:      RecordID(r.Cloud.String(), r.Feature),
		Cloud:   r.Cloud,
		Service: r.ServiceDisplay,
		Feature: r.Feature,
		Link:    r.Link,
		Status:  r.Status.String(),
		Version: version,
		Lag:     r.LagDays,
		Date:    r.GADate.UTC().Format(dateLayout),
	}
}

// ToRecords converts a batch of reconciled announcements.
func ToRecords(results []Reconciled) []Record {
	records := make([]Record, 0, len(results))
	for _, r := range results {
		records = append(records, ToRecord(r))
	}
	return records
}

// RecordID derives a display id from the cloud and a prefix of the feature
// text: lowercased, every non-alphanumeric rune replaced by a hyphen. Two
// records can share an id; identity is Record.Key.
func RecordID(cloudName, feature string) string {
	prefix := []rune(feature)
	if len(prefix) > idFeatureWidth {
		prefix = prefix[:idFeatureWidth]
	}
	raw := cloudName + "-" + string(prefix)
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return '-'
	}, raw)
}

type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// Run returns the union of existing and fresh records, deduplicated by
// identity with fresh records winning, sorted most recent first. An empty
// existing set is a full rebuild.
func (m *Merger) Run(existing, fresh []Record) []Record {
	byKey := make(map[string]Record, len(existing)+len(fresh))
	for _, r := range existing {
		byKey[r.Key()] = r
	}
	for _, r := range fresh {
		byKey[r.Key()] = r
	}

	merged := make([]Record, 0, len(byKey))
	for _, r := range byKey {
		merged = append(merged, r)
	}
	SortRecords(merged)
	return merged
}

// SortRecords orders records by date descending, then cloud and feature,
// which is a total order over distinct identities.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Cloud != b.Cloud {
			return a.Cloud < b.Cloud
		}
		return a.Feature < b.Feature
	})
}
