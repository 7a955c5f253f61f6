package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// replaySuffix turns a replay page path into its JSON record.
const replaySuffix = ".json"

// ListingPage holds the replay references found on one search result page,
// in document order.
type ListingPage struct {
	Index      int
	References []string
}

// ListingURL builds the search page URL for a format and page index
func ListingURL(baseURL, format string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u = u.JoinPath("search/")
	q := url.Values{}
	q.Set("output", "html")
	q.Set("format", format)
	q.Set("page", fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseListing extracts replay references from search page markup.
// Only anchors with an href are read, so section headers never yield a
// reference. Links carrying a query string (pagination and filter links)
// are skipped. Each surviving href is resolved against baseURL and suffixed
// with ".json".
func ParseListing(index int, markup []byte, baseURL string) (ListingPage, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ListingPage{}, fmt.Errorf("invalid base URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return ListingPage{}, fmt.Errorf("failed to parse listing markup: %w", err)
	}

	page := ListingPage{Index: index, References: []string{}}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.Contains(href, "?") {
			return
		}
		ref, err := base.Parse(href)
		if err != nil {
			return
		}
		page.References = append(page.References, ref.String()+replaySuffix)
	})

	return page, nil
}
