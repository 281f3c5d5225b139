package arxiv

import (
	"encoding/xml"
	"strings"
	"time"
)

// Paper is the metadata for one research paper as returned by the arXiv
// query API. Immutable once fetched.
type Paper struct {
	ID         string
	Title      string
	Abstract   string
	Categories []string
	// Published is normalized to UTC; the API returns zoned timestamps
	// while stored values are plain UTC, so everything is converted
	// before comparison.
	Published time.Time
	URL       string
}

// Atom feed structures for the arXiv query API.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Categories []atomCategory `xml:"category"`
	Published  string         `xml:"published"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// parseEntry converts an atom entry to a Paper.
func parseEntry(entry atomEntry) Paper {
	// Extract the ID from the abs URL, e.g.
	// http://arxiv.org/abs/2301.00001v1 -> 2301.00001v1
	id := entry.ID
	if idx := strings.LastIndex(entry.ID, "/abs/"); idx >= 0 {
		id = entry.ID[idx+5:]
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		categories = append(categories, c.Term)
	}

	published, _ := time.Parse(time.RFC3339, entry.Published)

	return Paper{
		ID:         id,
		Title:      strings.TrimSpace(entry.Title),
		Abstract:   strings.TrimSpace(entry.Summary),
		Categories: categories,
		Published:  published.UTC(),
		URL:        entry.ID,
	}
}
