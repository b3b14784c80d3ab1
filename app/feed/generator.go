package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

type Generator struct {
	baseURL string
	version string
}

// NewGenerator returns an RSS writer whose self links point at baseURL.
func NewGenerator(baseURL, version string) *Generator {
	return &Generator{baseURL: baseURL, version: version}
}

// Run renders a cloud's records, most recent first as given, as RSS 2.0.
func (g *Generator) Run(c cloud.Cloud, records []tracker.Record) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownCloud, int(c))
	}
	profile := c.Profile()

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("%s features in Terraform", profile.Title), 4)
	g.writeElement(&buf, "link", "https://github.com/"+profile.Repository, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Support status of %s announcements in %s", profile.Title, profile.Repository), 4)

	selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, profile.Name)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(records) > 0 {
		lastBuildDate = cmp.Or(recordTime(records[0]), lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Terraform-Feature-Lag-Tracker/%s", g.version), 4)
	g.writeElement(&buf, "language", "en", 4)

	for _, record := range records {
		g.writeItem(&buf, record)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, record tracker.Record) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(record.Link, record.ID)
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", record.Feature, 6)
	g.writeElement(buf, "link", record.Link, 6)
	g.writeElement(buf, "description", describe(record), 6)

	if t := recordTime(record); !t.IsZero() {
		g.writeElement(buf, "pubDate", t.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "category", record.Service, 6)
	g.writeElement(buf, "category", record.Status, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

func describe(record tracker.Record) string {
	if record.Supported() {
		return fmt.Sprintf("%s: supported in %s, %d days after general availability.",
			record.Service, record.Version, record.Lag)
	}
	return fmt.Sprintf("%s: not supported yet, %d days since general availability.",
		record.Service, record.Lag)
}

// recordTime reads the record's GA date; zero when it cannot be parsed.
func recordTime(record tracker.Record) time.Time {
	t, err := time.Parse(time.DateOnly, record.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}
