// Package sync drives one end-to-end synchronization pass: fetch
// candidates, filter against the ledger, classify, aggregate
// annotations, write to the sink, and commit each success to the
// ledger. Items are processed strictly one at a time; the upstream
// rate limits are the throughput constraint, not local computation.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/reader-sync/internal/capacities"
	"github.com/jonathan/reader-sync/internal/fetch"
	"github.com/jonathan/reader-sync/internal/ledger"
	"github.com/jonathan/reader-sync/internal/reader"
	"github.com/jonathan/reader-sync/internal/types"
)

// Options wires the collaborators for one Runner.
type Options struct {
	Reader             *reader.Client
	Sink               *capacities.Client
	Ledger             ledger.Ledger
	ReferenceTimestamp string
	MaxItems           int
	DefaultTags        []string
	EnrichMetadata     bool
	Verbose            bool
}

// Summary is the per-run outcome report.
type Summary struct {
	RunID      string
	Candidates int
	Created    int
	Errored    int
	Skipped    int
}

// Runner executes sync passes.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run performs one sync pass. Per-item failures are isolated: an item
// that errors or is skipped never aborts its siblings. Run itself only
// fails when the initial candidate fetch cannot be performed at all;
// items committed before such a failure stay committed.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}

	processed := r.opts.Ledger.IDs()
	log.Printf("[sync %s] starting: %d items already in ledger, updatedAfter=%q",
		summary.RunID, len(processed), r.opts.ReferenceTimestamp)

	items, err := r.opts.Reader.FetchNewItems(ctx, r.opts.ReferenceTimestamp, processed, r.opts.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("sync aborted, candidate fetch failed: %w", err)
	}
	summary.Candidates = len(items)
	log.Printf("[sync %s] fetched %d candidates", summary.RunID, len(items))

	for _, item := range items {
		r.processItem(ctx, item, summary)
	}

	log.Printf("[sync %s] done: %d created, %d errored, %d skipped",
		summary.RunID, summary.Created, summary.Errored, summary.Skipped)
	return summary, nil
}

// processItem runs one candidate through classify -> aggregate ->
// write -> commit. The ledger is only written after the create call
// succeeded; a crash in between means a retried create next run, never
// a silently dropped item.
func (r *Runner) processItem(ctx context.Context, item types.SourceItem, summary *Summary) {
	if r.opts.Ledger.Contains(item.ID) {
		summary.Skipped++
		return
	}

	classification, err := reader.Classify(item)
	if err != nil {
		log.Printf("[sync] skipping %q (%s): %v", item.Title, item.ID, err)
		summary.Skipped++
		return
	}

	title := classification.Title
	description := item.Summary
	if r.opts.EnrichMetadata && !classification.IsEmail && (title == "" || description == "") {
		if meta, metaErr := fetch.Metadata(ctx, classification.CanonicalURL, nil); metaErr == nil {
			if title == "" {
				title = meta.Title
			}
			if description == "" {
				description = meta.Description
			}
		} else if r.opts.Verbose {
			log.Printf("[VERBOSE] metadata enrichment failed for %s: %v", classification.CanonicalURL, metaErr)
		}
	}

	highlights, err := r.opts.Reader.FetchHighlights(ctx, item.ID)
	if err != nil {
		// Annotation loss is not worth dropping the item over.
		log.Printf("[sync] proceeding without highlights for %q: %v", title, err)
		highlights = nil
	}

	body := buildMarkdownBody(item, highlights)
	tags := append(append([]string{}, item.Tags...), r.opts.DefaultTags...)

	result, err := r.opts.Sink.CreateWeblink(ctx, capacities.WeblinkInput{
		URL:         classification.CanonicalURL,
		Title:       title,
		Description: description,
		Tags:        tags,
		Markdown:    body,
	})
	if err != nil {
		var invalid *capacities.InvalidInputError
		if errors.As(err, &invalid) {
			log.Printf("[sync] validation error for %q (%s): %v", title, item.ID, err)
		} else {
			log.Printf("[sync] create failed for %q (%s): %v", title, item.ID, err)
		}
		summary.Errored++
		return
	}

	if err := r.opts.Ledger.Mark(ctx, item.ID); err != nil {
		// The record exists but the commit was lost; the next run will
		// recreate it. Tolerated, but worth a loud log line.
		log.Printf("[sync] ledger commit failed for %s after create (record %s): %v", item.ID, result.ID, err)
		summary.Errored++
		return
	}

	summary.Created++
	log.Printf("[sync] created weblink %s for %q (%d/%d)", result.ID, title, summary.Created, summary.Candidates)
}

// buildMarkdownBody assembles the weblink markdown: author, reading
// progress, the item's own notes, then the annotation section.
func buildMarkdownBody(item types.SourceItem, highlights []types.Annotation) string {
	var parts []string

	if author := strings.TrimSpace(item.Author); author != "" {
		parts = append(parts, "**Author:** "+author)
	}
	if item.ReadingProgress > 0 {
		parts = append(parts, fmt.Sprintf("**Reading Progress:** %.1f%%", item.ReadingProgress*100))
	}
	if notes := strings.TrimSpace(item.Notes); notes != "" {
		parts = append(parts, "## Notes\n\n"+notes)
	}
	if rendered := reader.RenderHighlights(highlights); rendered != "" {
		parts = append(parts, rendered)
	}

	return strings.Join(parts, "\n\n")
}
