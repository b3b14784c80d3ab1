package tracker

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cloud"
)

// GeneralService is the service of announcements the cloud's pattern does
// not recognize.
const GeneralService = "General"

// ServiceDisplayWidth caps the stored service name. Matching never sees the
// truncated value.
const ServiceDisplayWidth = 22

type Normalizer struct {
	resolver *Resolver
	now      func() time.Time
}

// NewNormalizer returns a normalizer resolving services through resolver
// (the built-in mapping when nil) and using now for unparseable dates.
func NewNormalizer(resolver *Resolver, now func() time.Time) *Normalizer {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{resolver: resolver, now: now}
}

func (n *Normalizer) Run(c cloud.Cloud, raw RawAnnouncement) Announcement {
	profile := c.Profile()
	title := strings.TrimSpace(raw.Title)

	service, ok := profile.ExtractService(title)
	if ok {
		service = n.narrowService(profile, service)
	}
	if service == "" {
		service = GeneralService
	}

	// "General" is a placeholder, not a service name, so it carries no
	// service or resource signal.
	var token, guess string
	if service != GeneralService {
		token = n.resolver.ResolveServiceToken(service)
		guess = GuessResourceName(c, token)
	}

	return Announcement{
		Cloud:          c,
		Service:        service,
		ServiceDisplay: truncate(service, ServiceDisplayWidth),
		ServiceToken:   token,
		ResourceGuess:  guess,
		Feature:        title,
		Link:           strings.TrimSpace(raw.Link),
		GADate:         n.gaDate(raw),
		Tokens:         Tokenize(profile, title),
	}
}

// narrowService cuts a title-case capture down to the service name. A known
// name wins; otherwise the capture ends before the first stop word, so
// "Widget Store Now Supports Exports" becomes "Widget Store".
func (n *Normalizer) narrowService(profile *cloud.Profile, service string) string {
	if known, ok := n.resolver.KnownPrefix(service); ok {
		return known
	}
	words := strings.Fields(service)
	for i, word := range words {
		if profile.IsStopWord(strings.ToLower(word)) {
			return strings.Join(words[:i], " ")
		}
	}
	return strings.Join(words, " ")
}

// gaDate prefers the updated timestamp over the published one.
func (n *Normalizer) gaDate(raw RawAnnouncement) time.Time {
	for _, s := range []string{raw.Updated, raw.Published} {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if t, err := ParseInstant(s); err == nil {
			return t
		}
	}
	return n.now().UTC()
}

// Tokenize splits a title on non-alphanumeric runes, lowercases, drops the
// cloud's stop words and, for tokens ending in "s", also keeps the form
// without the trailing "s". The result is sorted and free of duplicates.
func Tokenize(profile *cloud.Profile, title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(fields)*2)
	for _, f := range fields {
		if profile.IsStopWord(f) {
			continue
		}
		set[f] = struct{}{}
		if singular := strings.TrimSuffix(f, "s"); singular != f && singular != "" {
			set[singular] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(set))
	for t := range set {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
