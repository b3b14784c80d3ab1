package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS or Atom document into raw announcements, keeping at
// most maxItems entries in feed order (all of them when maxItems <= 0).
// Dates are passed through as the feed wrote them.
func (p *Parser) Run(data []byte, maxItems int) ([]tracker.RawAnnouncement, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := feed.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	announcements := make([]tracker.RawAnnouncement, 0, len(items))
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		announcements = append(announcements, p.normalizeItem(item))
	}

	return announcements, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) tracker.RawAnnouncement {
	raw := tracker.RawAnnouncement{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(cmp.Or(item.Link, item.GUID)),
		Published: item.Published,
		Updated:   item.Updated,
	}

	// Some feeds use a date format only gofeed understands.
	if raw.Published == "" && item.PublishedParsed != nil {
		raw.Published = item.PublishedParsed.Format(time.RFC3339)
	}
	if raw.Updated == "" && item.UpdatedParsed != nil {
		raw.Updated = item.UpdatedParsed.Format(time.RFC3339)
	}

	return raw
}
