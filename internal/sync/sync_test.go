package sync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/reader-sync/internal/capacities"
	"github.com/jonathan/reader-sync/internal/httpcall"
	"github.com/jonathan/reader-sync/internal/ledger"
	"github.com/jonathan/reader-sync/internal/reader"
	"github.com/jonathan/reader-sync/internal/types"
)

// fakeReader serves the list endpoint for both items and highlights.
type fakeReader struct {
	items      []types.SourceItem
	highlights []types.Annotation
}

func (f *fakeReader) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var results []json.RawMessage
		if r.URL.Query().Get("category") == types.CategoryHighlight {
			for _, h := range f.highlights {
				raw, _ := json.Marshal(h)
				results = append(results, raw)
			}
		} else {
			for _, item := range f.items {
				raw, _ := json.Marshal(item)
				results = append(results, raw)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
}

// fakeSink records create calls and can fail them per target URL.
type fakeSink struct {
	calls   atomic.Int32
	created []string
	failURL string
}

func (f *fakeSink) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)

		url, _ := payload["url"].(string)
		if f.failURL != "" && url == f.failURL {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"rejected"}`))
			return
		}
		f.created = append(f.created, url)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "rec-" + url})
	})
}

func newRunner(t *testing.T, src *fakeReader, sink *fakeSink, store ledger.Ledger) *Runner {
	t.Helper()
	readerServer := httptest.NewServer(src.handler())
	sinkServer := httptest.NewServer(sink.handler())
	t.Cleanup(readerServer.Close)
	t.Cleanup(sinkServer.Close)

	noRetry := func() *httpcall.Caller { return httpcall.New(httpcall.Options{MaxAttempts: 1}) }
	return New(Options{
		Reader: reader.NewClient("tok", &reader.Options{BaseURL: readerServer.URL, Caller: noRetry()}),
		Sink:   capacities.NewClient("tok", "space-1", &capacities.Options{BaseURL: sinkServer.URL, Caller: noRetry()}),
		Ledger: store,
	})
}

func openLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	store, err := ledger.OpenFile(filepath.Join(t.TempDir(), "processed.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRun_SkipsAlreadyProcessedItems(t *testing.T) {
	src := &fakeReader{items: []types.SourceItem{
		{ID: "old", Title: "Old", SourceURL: "https://example.com/old"},
		{ID: "new", Title: "New", SourceURL: "https://example.com/new"},
	}}
	sink := &fakeSink{}
	store := openLedger(t)
	require.NoError(t, store.Mark(context.Background(), "old"))

	summary, err := newRunner(t, src, sink, store).Run(context.Background())
	require.NoError(t, err)

	// Exactly one create call, for the unprocessed item only.
	assert.Equal(t, int32(1), sink.calls.Load())
	assert.Equal(t, []string{"https://example.com/new"}, sink.created)
	assert.Equal(t, 1, summary.Created)
	assert.True(t, store.Contains("new"))
	assert.Len(t, store.IDs(), 2)
}

func TestRun_SecondRunCreatesNothing(t *testing.T) {
	src := &fakeReader{items: []types.SourceItem{
		{ID: "a", Title: "A", SourceURL: "https://example.com/a"},
		{ID: "b", Title: "B", SourceURL: "https://example.com/b"},
	}}
	sink := &fakeSink{}
	store := openLedger(t)
	runner := newRunner(t, src, sink, store)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, int32(2), sink.calls.Load())
}

func TestRun_FailureIsolation(t *testing.T) {
	src := &fakeReader{items: []types.SourceItem{
		{ID: "a", Title: "A", SourceURL: "https://example.com/a"},
		{ID: "b", Title: "B", SourceURL: "https://example.com/b"},
	}}
	sink := &fakeSink{failURL: "https://example.com/a"}
	store := openLedger(t)

	summary, err := newRunner(t, src, sink, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Created)
	assert.False(t, store.Contains("a"))
	assert.True(t, store.Contains("b"))
}

func TestRun_SkipsItemsWithoutURL(t *testing.T) {
	src := &fakeReader{items: []types.SourceItem{
		{ID: "orphan", Title: "No URL anywhere"},
		{ID: "ok", Title: "Fine", SourceURL: "https://example.com/ok"},
	}}
	sink := &fakeSink{}
	store := openLedger(t)

	summary, err := newRunner(t, src, sink, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Created)
	assert.False(t, store.Contains("orphan"))
}

func TestRun_BootstrapFailureAbortsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := openLedger(t)
	runner := New(Options{
		Reader: reader.NewClient("tok", &reader.Options{
			BaseURL: server.URL,
			Caller:  httpcall.New(httpcall.Options{MaxAttempts: 1}),
		}),
		Ledger: store,
	})

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.IDs())
}

func TestRun_BodyCarriesNotesProgressAndHighlights(t *testing.T) {
	src := &fakeReader{
		items: []types.SourceItem{{
			ID:              "item-1",
			Title:           "Deep Dive",
			Author:          "Jane Doe",
			SourceURL:       "https://example.com/deep",
			ReadingProgress: 0.842,
			Notes:           "must re-read",
			Tags:            types.TagSet{"Systems Design"},
		}},
		highlights: []types.Annotation{
			{ID: "h1", ParentID: "item-1", Content: "a key insight", Note: "agreed", Position: 1},
		},
	}

	var payload map[string]any
	sinkServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "rec-1"})
	}))
	defer sinkServer.Close()
	readerServer := httptest.NewServer(src.handler())
	defer readerServer.Close()

	store := openLedger(t)
	runner := New(Options{
		Reader: reader.NewClient("tok", &reader.Options{
			BaseURL: readerServer.URL,
			Caller:  httpcall.New(httpcall.Options{MaxAttempts: 1}),
		}),
		Sink: capacities.NewClient("tok", "space-1", &capacities.Options{
			BaseURL: sinkServer.URL,
			Caller:  httpcall.New(httpcall.Options{MaxAttempts: 1}),
		}),
		Ledger:      store,
		DefaultTags: []string{"readwise"},
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)

	md, _ := payload["mdText"].(string)
	assert.Contains(t, md, "**Author:** Jane Doe")
	assert.Contains(t, md, "**Reading Progress:** 84.2%")
	assert.Contains(t, md, "## Notes\n\nmust re-read")
	assert.Contains(t, md, "## Annotations")
	assert.Contains(t, md, "* a key insight")
	assert.Contains(t, md, "*Note: agreed*")

	tags, _ := payload["tags"].([]any)
	assert.Equal(t, []any{"systems-design", "readwise"}, tags)
}
