// Package cloud holds the closed set of cloud providers the tracker knows
// about, with the per-cloud matching data (service pattern, stop words,
// resource prefix) and the default announcement sources and provider
// repository for each.
package cloud

import (
	"fmt"
	"regexp"
	"strings"
)

type Cloud int

const (
	AWS Cloud = iota
	Azure
	GCP

	count
)

// Profile is the static matching and sourcing data of one cloud.
type Profile struct {
	Name           string
	Title          string
	ServicePattern *regexp.Regexp
	StopWords      map[string]struct{}
	ResourcePrefix string
	Repository     string
	Sources        []string
}

// capitalized run of words, e.g. "Elastic Kubernetes Service" or "S3 Express One Zone"
const capWords = `[A-Z0-9][\w.\-/]*(?:\s+[A-Z0-9][\w.\-/]*)*`

var commonStopWords = []string{
	"now", "available", "availability", "general", "generally", "announcing",
	"introducing", "launches", "launch", "new", "supports", "support", "adds",
	"preview", "public", "the", "and", "for", "with", "in", "on", "of", "to",
	"a", "an", "is", "at", "by", "from", "via",
}

var profiles = [...]Profile{
	AWS: {
		Name:           "aws",
		Title:          "AWS",
		ServicePattern: regexp.MustCompile(`\b(?:Amazon|AWS)\s+(` + capWords + `)`),
		StopWords:      stopWords("amazon", "aws"),
		ResourcePrefix: "aws_",
		Repository:     "hashicorp/terraform-provider-aws",
		Sources:        []string{"https://aws.amazon.com/about-aws/whats-new/recent/feed/"},
	},
	Azure: {
		Name:  "azure",
		Title: "Azure",
		ServicePattern: regexp.MustCompile(
			`^[^:]{1,40}:\s*(?:Microsoft\s+)?(?:Azure\s+)?(` + capWords + `)|\bAzure\s+(` + capWords + `)`),
		StopWords:      stopWords("azure", "microsoft"),
		ResourcePrefix: "azurerm_",
		Repository:     "hashicorp/terraform-provider-azurerm",
		Sources:        []string{"https://www.microsoft.com/releasecommunications/api/v2/azure/rss"},
	},
	GCP: {
		Name:  "gcp",
		Title: "Google Cloud",
		ServicePattern: regexp.MustCompile(
			`\b(Cloud\s+[A-Z][\w.\-/]*(?:\s+[A-Z][\w.\-/]*)*|BigQuery|Vertex\s+AI|GKE|Google\s+Kubernetes\s+Engine|Compute\s+Engine|Firestore|Spanner|Bigtable|Pub/Sub|Dataflow|Dataproc|Memorystore|Filestore)`),
		StopWords:      stopWords("google", "gcp"),
		ResourcePrefix: "google_",
		Repository:     "hashicorp/terraform-provider-google",
		Sources:        []string{"https://cloud.google.com/feeds/gcp-release-notes.xml"},
	},
}

// Every Cloud constant must have a profile and vice versa.
var (
	_ [len(profiles) - int(count)]struct{}
	_ [int(count) - len(profiles)]struct{}
)

func stopWords(extra ...string) map[string]struct{} {
	words := make(map[string]struct{}, len(commonStopWords)+len(extra))
	for _, w := range commonStopWords {
		words[w] = struct{}{}
	}
	for _, w := range extra {
		words[w] = struct{}{}
	}
	return words
}

// All returns every known cloud in declaration order.
func All() []Cloud {
	clouds := make([]Cloud, 0, count)
	for c := Cloud(0); c < count; c++ {
		clouds = append(clouds, c)
	}
	return clouds
}

// Parse resolves a cloud by its short name, case-insensitively.
func Parse(name string) (Cloud, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := Cloud(0); c < count; c++ {
		if profiles[c].Name == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown cloud %q", name)
}

func (c Cloud) Valid() bool {
	return c >= 0 && c < count
}

func (c Cloud) String() string {
	if !c.Valid() {
		return fmt.Sprintf("cloud(%d)", int(c))
	}
	return profiles[c].Name
}

// Profile returns the matching data of the cloud. It panics for values
// outside the enum.
func (c Cloud) Profile() *Profile {
	if !c.Valid() {
		panic(fmt.Sprintf("no profile for %s", c))
	}
	return &profiles[c]
}

func (c Cloud) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid cloud %d", int(c))
	}
	return []byte(profiles[c].Name), nil
}

func (c *Cloud) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsStopWord reports whether a lowercased token carries no matching signal
// for this cloud.
func (p *Profile) IsStopWord(token string) bool {
	_, ok := p.StopWords[token]
	return ok
}

// ExtractService applies the service pattern to a title and returns the
// first non-empty capture with trailing commas and whitespace removed.
func (p *Profile) ExtractService(title string) (string, bool) {
	m := p.ServicePattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		service := strings.TrimRight(group, ", \t\r\n")
		if service != "" {
			return service, true
		}
	}
	return "", false
}
