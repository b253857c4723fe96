// Package capacities writes weblink records to the PKM sink API. It
// owns payload assembly: every free-text field is sanitized and bounded
// before the request is built, and absent fields are omitted entirely.
package capacities

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/reader-sync/internal/httpcall"
	"github.com/jonathan/reader-sync/internal/ratelimit"
	"github.com/jonathan/reader-sync/internal/sanitize"
	"github.com/jonathan/reader-sync/internal/types"
)

// DefaultBaseURL is the production sink API.
const DefaultBaseURL = "https://api.capacities.io"

// The sink API allows 10 weblink saves per minute.
const (
	DefaultMinRequestInterval = 2 * time.Second
	DefaultRequestsPerMinute  = 10
)

// InvalidInputError is returned when input fails validation before any
// network call. It is never worth retrying.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Caller  *httpcall.Caller
	Verbose bool
}

// Client talks to the sink API for one space.
type Client struct {
	baseURL string
	token   string
	spaceID string
	caller  *httpcall.Caller
	verbose bool
}

// NewClient creates a sink API client. A nil caller gets a default
// retrying caller with the sink rate limits applied.
func NewClient(token, spaceID string, opts *Options) *Client {
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
		spaceID: spaceID,
		caller:  caller,
		verbose: opts.Verbose,
	}
}

// WeblinkInput is the raw, unsanitized input for one weblink.
type WeblinkInput struct {
	URL         string
	Title       string
	Description string
	Tags        []string
	Markdown    string
}

// CreateWeblink sanitizes the input, builds the bounded payload, and
// performs the create call. Returns InvalidInputError when the URL
// fails sanitization, or the caller's RequestError when the call
// exhausts its attempts.
func (c *Client) CreateWeblink(ctx context.Context, input WeblinkInput) (*types.WeblinkResult, error) {
	cleanURL := sanitize.URL(input.URL)
	if cleanURL == "" {
		return nil, &InvalidInputError{Field: "url", Message: fmt.Sprintf("not a valid web address: %q", input.URL)}
	}

	payload := types.WeblinkPayload{
		SpaceID:     c.spaceID,
		URL:         cleanURL,
		Title:       sanitize.Text(input.Title, types.MaxTitleLength),
		Description: sanitize.Text(input.Description, types.MaxDescriptionLength),
		Tags:        sanitize.Tags(input.Tags, types.MaxTags, types.MaxTagLength),
		Markdown:    sanitize.Text(input.Markdown, types.MaxMarkdownLength),
	}
	if err := payload.Validate(); err != nil {
		return nil, &InvalidInputError{Field: "payload", Message: err.Error()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal weblink payload: %w", err)
	}
	if c.verbose {
		log.Printf("[VERBOSE] Creating weblink: url=%s title=%q tags=%d md=%d bytes",
			cleanURL, payload.Title, len(payload.Tags), len(payload.Markdown))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Content-Type", "application/json")

	resp, err := c.caller.Do(ctx, httpcall.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/save-weblink",
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var result types.WeblinkResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode weblink response: %w", err)
	}
	return &result, nil
}
