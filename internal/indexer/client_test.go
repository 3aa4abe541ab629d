package indexer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/cache"
	"github.com/HattoriHanzo12/Random-Faces/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		HiroBaseURL:    srv.URL + "/ordinals/v1",
		ContentBaseURL: srv.URL + "/content",
		TipHeightURL:   srv.URL + "/blocks/tip/height",
	}, testLogger())
	c.sleepFn = func(context.Context, time.Duration) error { return nil }
	return c, srv
}

func TestListRecursiveHTML_FilteredQuery(t *testing.T) {
	var gotQuery atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		_, _ = w.Write([]byte(`{"limit":60,"offset":0,"total":2,"results":[{"id":"a","recursive":true},{"id":"b"}]}`))
	}))

	page, err := c.ListRecursiveHTML(context.Background(), 0, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "a", page.Results[0].ID)

	q := gotQuery.Load().(string)
	assert.Contains(t, q, "mime_type=text%2Fhtml")
	assert.Contains(t, q, "recursive=true")
	assert.Contains(t, q, "order_by=number")
	assert.Contains(t, q, "order=desc")
}

func TestListRecursiveHTML_WidensWhenMimeFilterFails(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("mime_type") != "" {
			http.Error(w, "unsupported filter", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"limit":60,"offset":0,"total":1,"results":[{"id":"a"}]}`))
	}))

	page, err := c.ListRecursiveHTML(context.Background(), 0, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	// Two retried attempts on the filtered shape, then success on the wide one.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListRecursiveHTML_RetriesTransientFailure(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
	}))

	page, err := c.ListRecursiveHTML(context.Background(), 0, 60)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListRecursiveHTML_AllShapesFail(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := c.ListRecursiveHTML(context.Background(), 0, 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hiro list query failed")
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestFetchContent_PrimaryProvider(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/content/abci0" {
			_, _ = w.Write([]byte("<html>face</html>"))
			return
		}
		http.NotFound(w, r)
	}))

	result, err := c.FetchContent(context.Background(), "abci0")
	require.NoError(t, err)
	assert.Equal(t, "ordinals", result.Source)
	assert.Equal(t, "<html>face</html>", result.HTML)
}

func TestFetchContent_FallsBackToMirror(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ordinals/v1/inscriptions/abci0/content" {
			_, _ = w.Write([]byte("<html>mirror</html>"))
			return
		}
		http.Error(w, "unreachable", http.StatusGatewayTimeout)
	}))

	result, err := c.FetchContent(context.Background(), "abci0")
	require.NoError(t, err)
	assert.Equal(t, "hiro", result.Source)
	assert.Equal(t, "<html>mirror</html>", result.HTML)
}

func TestFetchContent_AllProvidersFail(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.FetchContent(context.Background(), "abci0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ordinals: ")
	assert.Contains(t, err.Error(), "hiro: ")
}

func TestFetchContent_BreakerOpensPerProvider(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	c.SetBreakerConfig(circuitbreaker.Config{MaxFailures: 1})

	_, err := c.FetchContent(context.Background(), "abci0")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "one hit per provider")

	// Both provider breakers are open now; no further wire traffic.
	_, err = c.FetchContent(context.Background(), "abci0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchContent_BreakerDoesNotOpenListPath(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ordinals/v1/inscriptions" {
			_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
			return
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	c.SetBreakerConfig(circuitbreaker.Config{MaxFailures: 1})

	_, err := c.FetchContent(context.Background(), "abci0")
	require.Error(t, err)

	// Content breakers are open, the listing breaker is untouched.
	page, err := c.ListRecursiveHTML(context.Background(), 0, 60)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestFetchContent_UsesCache(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	c.SetContentCache(cache.New[string, ContentResult](8, time.Hour))

	_, err := c.FetchContent(context.Background(), "abci0")
	require.NoError(t, err)
	_, err = c.FetchContent(context.Background(), "abci0")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTipHeight(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(" 840000\n"))
	}))

	height, ok := c.TipHeight(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(840000), height)
}

func TestTipHeight_FailureIsBestEffort(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, ok := c.TipHeight(context.Background())
	assert.False(t, ok)
}

func TestTipHeight_GarbageBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a number</html>"))
	}))

	_, ok := c.TipHeight(context.Background())
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	n := int64(99)
	ts := int64(1771545600000)
	row := InscriptionRow{
		ID:               " abci0 ",
		Number:           &n,
		Address:          " bc1q ",
		GenesisTimestamp: &ts,
		Recursive:        true,
		RecursionRefs:    []string{" ref1 ", "", "ref2"},
		ContentType:      "text/html;charset=utf-8",
	}

	c := row.Normalize()
	assert.Equal(t, "abci0", c.InscriptionID)
	assert.Equal(t, "bc1q", c.Address)
	assert.Equal(t, []string{"ref1", "ref2"}, c.RecursionRefs)
	assert.Equal(t, "text/html;charset=utf-8", c.MimeType, "content_type fills in for missing mime_type")
	assert.Equal(t, "2026-02-20T00:00:00.000Z", c.MintedAt)
	assert.Equal(t, "https://ordinals.com/inscription/abci0", c.ExplorerURL)
}
