// Package reader is the client for the read-it-later source API: cursor
// pagination over the archive, highlight aggregation, and item
// classification.
package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/reader-sync/internal/httpcall"
	"github.com/jonathan/reader-sync/internal/ratelimit"
	"github.com/jonathan/reader-sync/internal/types"
)

// DefaultBaseURL is the production list endpoint.
const DefaultBaseURL = "https://readwise.io/api/v3"

// Rate limits stay under the documented 20/min API cap.
const (
	DefaultMinRequestInterval = 3 * time.Second
	DefaultRequestsPerMinute  = 15
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Caller  *httpcall.Caller
	Verbose bool
}

// Client talks to the source API. All requests go through the shared
// retrying caller and its rate limiter.
type Client struct {
	baseURL string
	token   string
	caller  *httpcall.Caller
	verbose bool
}

// NewClient creates a source API client. A nil caller gets a default
// retrying caller with the reader rate limits applied.
func NewClient(token string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	caller := opts.Caller
	if caller == nil {
		caller = httpcall.New(httpcall.Options{
			Limiter: ratelimit.New(DefaultMinRequestInterval, DefaultRequestsPerMinute),
		})
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		caller:  caller,
		verbose: opts.Verbose,
	}
}

// listPage fetches one page of the list endpoint.
func (c *Client) listPage(ctx context.Context, query url.Values) (*types.ListResponse, error) {
	header := http.Header{}
	header.Set("Authorization", "Token "+c.token)

	resp, err := c.caller.Do(ctx, httpcall.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/list/",
		Header: header,
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	var page types.ListResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return &page, nil
}

// FetchNewItems walks the archive listing and returns items updated
// after updatedAfter whose IDs are not in processed. Pagination stops
// once maxItems have accumulated (maxItems <= 0 means unbounded).
//
// A failure on the first page is returned to the caller; a failure on
// a later page only truncates the result, since a partial batch is
// still a useful sync run.
func (c *Client) FetchNewItems(ctx context.Context, updatedAfter string, processed map[string]bool, maxItems int) ([]types.SourceItem, error) {
	var items []types.SourceItem
	cursor := ""

	for {
		query := url.Values{}
		query.Set("location", "archive")
		query.Set("withHtmlContent", "false")
		if updatedAfter != "" {
			query.Set("updatedAfter", updatedAfter)
		}
		if cursor != "" {
			query.Set("pageCursor", cursor)
		}

		page, err := c.listPage(ctx, query)
		if err != nil {
			if len(items) == 0 && cursor == "" {
				return nil, fmt.Errorf("failed to fetch archive listing: %w", err)
			}
			log.Printf("[reader] pagination aborted after %d items: %v", len(items), err)
			return items, nil
		}

		added := 0
		for _, raw := range page.Results {
			var item types.SourceItem
			if err := json.Unmarshal(raw, &item); err != nil {
				log.Printf("[reader] skipping undecodable item: %v", err)
				continue
			}
			if item.ID == "" || processed[item.ID] {
				continue
			}
			items = append(items, item)
			added++
			if maxItems > 0 && len(items) >= maxItems {
				if c.verbose {
					log.Printf("[VERBOSE] Reached per-run item cap (%d)", maxItems)
				}
				return items, nil
			}
		}
		if c.verbose {
			log.Printf("[VERBOSE] Fetched page: %d results, %d new (total %d)", len(page.Results), added, len(items))
		}

		cursor = page.NextPageCursor
		if cursor == "" {
			return items, nil
		}
	}
}

// FetchHighlights returns all highlights belonging to itemID, ordered
// by reading position with creation time as the tiebreak. The upstream
// cannot filter by parent, so filtering happens client-side.
func (c *Client) FetchHighlights(ctx context.Context, itemID string) ([]types.Annotation, error) {
	var highlights []types.Annotation
	cursor := ""

	for {
		query := url.Values{}
		query.Set("category", types.CategoryHighlight)
		query.Set("withHtmlContent", "false")
		if cursor != "" {
			query.Set("pageCursor", cursor)
		}

		page, err := c.listPage(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch highlights: %w", err)
		}

		for _, raw := range page.Results {
			var annotation types.Annotation
			if err := json.Unmarshal(raw, &annotation); err != nil {
				continue
			}
			if annotation.ParentID == itemID {
				highlights = append(highlights, annotation)
			}
		}

		cursor = page.NextPageCursor
		if cursor == "" {
			break
		}
	}

	sort.SliceStable(highlights, func(i, j int) bool {
		if highlights[i].Position != highlights[j].Position {
			return highlights[i].Position < highlights[j].Position
		}
		return highlights[i].CreatedAt < highlights[j].CreatedAt
	})
	if c.verbose && len(highlights) > 0 {
		log.Printf("[VERBOSE] Found %d highlights for item %s", len(highlights), itemID)
	}
	return highlights, nil
}
