package resolution

import (
	"net/url"
	"strings"
)

// Category buckets a source domain for the independence filter. At most
// one evidence item per category is allowed to vote, which stops many
// articles from one outlet (or one kind of outlet) inflating the count.
type Category string

const (
	CategoryNews          Category = "news"
	CategoryGovernment    Category = "government"
	CategoryAcademic      Category = "academic"
	CategoryCorporate     Category = "corporate"
	CategoryInternational Category = "international"
	CategoryOther         Category = "other"
)

// categoryPatterns are matched in order; the first category with a
// substring hit wins, so specific outlets are classified before the
// generic ".com"/".org" corporate bucket.
var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryNews, []string{"cnn.com", "bbc.com", "reuters.com", "ap.org", "npr.org"}},
	{CategoryGovernment, []string{".gov", ".mil", "whitehouse.gov", "congress.gov"}},
	{CategoryAcademic, []string{".edu", "scholar.google.com", "researchgate.net"}},
	{CategoryCorporate, []string{"bloomberg.com", "wsj.com", ".com", ".org"}},
	{CategoryInternational, []string{".uk", ".ca", ".au", ".de", ".fr", ".jp"}},
}

// Classify maps a source domain to its independence category.
func Classify(domain string) Category {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return CategoryOther
	}
	for _, entry := range categoryPatterns {
		for _, p := range entry.patterns {
			if strings.Contains(d, p) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// ExtractDomain pulls the host out of a URL, falling back to the raw
// string lowercased when it does not parse.
func ExtractDomain(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.ToLower(parsed.Host)
}
