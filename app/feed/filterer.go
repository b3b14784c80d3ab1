package feed

import (
	"log/slog"
	"strings"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops the announcements rejected by the cloud's filters. Excludes
// are checked before includes; matching is case-insensitive containment.
func (f *Filterer) Run(items []tracker.RawAnnouncement, cloudConfig *Config) []tracker.RawAnnouncement {
	if len(cloudConfig.Filters) == 0 {
		return items
	}

	kept := make([]tracker.RawAnnouncement, 0, len(items))
	for _, item := range items {
		if reason, filtered := f.applyFilters(item, cloudConfig.Filters); filtered {
			slog.Debug("Announcement filtered", "cloud", cloudConfig.Name, "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) applyFilters(item tracker.RawAnnouncement, filters []ConfigFilter) (string, bool) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return "excluded by " + filter.Field + ": " + exclude, true
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return "no " + filter.Field + " include matched", true
			}
		}
	}

	return "", false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item tracker.RawAnnouncement, field string) string {
	switch field {
	case "title":
		return item.Title
	case "link":
		return item.Link
	default:
		return ""
	}
}
