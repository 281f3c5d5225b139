package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

const (
	pageSize    = 50
	pageDelay   = 3 * time.Second
	maxAttempts = 3
)

// errKind classifies upstream failures so the retry loop dispatches on
// kind, not on concrete error identity.
type errKind int

const (
	kindRateLimited errKind = iota // HTTP 429, exponential backoff
	kindServer                     // 5xx, fixed delay
	kindNetwork                    // connection failures, longer fixed delay
	kindTerminal                   // 4xx and anything not worth retrying
)

type fetchError struct {
	kind errKind
	err  error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// Client fetches paper metadata from the arXiv query API.
type Client struct {
	baseURL     string
	categories  []string
	searchQuery string
	httpClient  *http.Client
	logger      *slog.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewClient builds a client searching the given categories, optionally
// narrowed by a free-text query.
func NewClient(categories []string, searchQuery string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		categories:  categories,
		searchQuery: searchQuery,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// Fetch returns up to maxResults papers published after since, newest
// first. A zero since means no lower bound (first run). The API returns
// results in descending submission order and does not filter by date
// server-side, so the since bound is applied client-side: scanning stops
// at the first result at or before the threshold. An out-of-order result
// would end the scan early; that matches upstream behavior today.
func (c *Client) Fetch(ctx context.Context, maxResults int, since time.Time) ([]Paper, error) {
	query := c.buildQuery()
	if since.IsZero() {
		c.logger.Info("fetching papers", "max", maxResults, "query", query)
	} else {
		c.logger.Info("fetching papers", "max", maxResults, "query", query, "since", since.Format("2006-01-02 15:04"))
	}

	since = since.UTC()

	var papers []Paper
	for start := 0; ; start += pageSize {
		if start > 0 {
			c.sleep(pageDelay)
		}

		feed, err := c.fetchPage(ctx, query, start)
		if err != nil {
			return nil, err
		}

		reachedOld := false
		for _, entry := range feed.Entries {
			paper := parseEntry(entry)
			if !since.IsZero() && !paper.Published.After(since) {
				reachedOld = true
				break
			}
			papers = append(papers, paper)
			if len(papers) >= maxResults {
				break
			}
		}

		if reachedOld {
			c.logger.Info("reached papers older than threshold, stopping", "since", since.Format("2006-01-02 15:04"))
			break
		}
		if len(papers) >= maxResults || len(feed.Entries) < pageSize {
			break
		}
	}

	c.logger.Info("fetched papers", "count", len(papers))
	return papers, nil
}

// fetchPage requests one result page, retrying transient failures with
// kind-specific backoff.
func (c *Client) fetchPage(ctx context.Context, query string, start int) (*atomFeed, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying arXiv request", "attempt", attempt+1, "max", maxAttempts)
		}

		feed, err := c.doRequest(ctx, query, start)
		if err == nil {
			return feed, nil
		}
		lastErr = err

		var fe *fetchError
		if !errors.As(err, &fe) {
			return nil, err
		}
		switch fe.kind {
		case kindRateLimited:
			wait := time.Duration(1<<attempt) * time.Second
			c.logger.Warn("rate limited by arXiv", "wait", wait, "attempt", attempt+1)
			c.sleep(wait)
		case kindServer:
			c.logger.Warn("arXiv server error, retrying", "error", err, "attempt", attempt+1)
			c.sleep(5 * time.Second)
		case kindNetwork:
			c.logger.Warn("network error, retrying", "error", err, "attempt", attempt+1)
			c.sleep(10 * time.Second)
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, query string, start int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", fmt.Sprint(start))
	params.Set("max_results", fmt.Sprint(pageSize))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &fetchError{kind: kindNetwork, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &fetchError{kind: kindRateLimited, err: fmt.Errorf("http %s", resp.Status)}
	case resp.StatusCode >= 500:
		return nil, &fetchError{kind: kindServer, err: fmt.Errorf("http %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, &fetchError{kind: kindTerminal, err: fmt.Errorf("http %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fetchError{kind: kindNetwork, err: err}
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &feed, nil
}

// buildQuery joins the configured categories with OR and ANDs in the
// optional free-text query.
func (c *Client) buildQuery() string {
	cats := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		cats = append(cats, "cat:"+cat)
	}
	query := "(" + strings.Join(cats, " OR ") + ")"
	if c.searchQuery != "" {
		query += " AND (" + c.searchQuery + ")"
	}
	return query
}
