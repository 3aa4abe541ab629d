// Package indexer is the HTTP client for the public ordinals indexer: the
// paginated Hiro inscription listing, raw content fetch with a mirror
// fallback, and the best-effort chain tip height.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/cache"
	"github.com/HattoriHanzo12/Random-Faces/internal/circuitbreaker"
	"github.com/HattoriHanzo12/Random-Faces/internal/metrics"
	"github.com/HattoriHanzo12/Random-Faces/internal/ratelimit"
)

const userAgent = "RandomFacesMintWatcher/1.0 (+https://github.com/HattoriHanzo12/Random-Faces)"

// ContentResult is fetched inscription content plus the provider that
// served it.
type ContentResult struct {
	HTML   string
	Source string
}

// contentProvider is one ordered strategy for fetching raw content.
// Additional mirrors are added here without touching control flow.
type contentProvider struct {
	name string
	url  func(inscriptionID string) string
}

// Client talks to the inscription indexer hosts.
type Client struct {
	httpClient *http.Client
	hiroBase   string
	tipURL     string
	providers  []contentProvider

	listTimeout    time.Duration
	contentTimeout time.Duration
	tipTimeout     time.Duration

	retryAttempts  int
	retryBaseDelay time.Duration
	sleepFn        func(ctx context.Context, d time.Duration) error

	limiter      *ratelimit.Limiter
	breakers     map[string]*circuitbreaker.Breaker
	contentCache *cache.LRU[string, ContentResult]
	logger       *slog.Logger
}

// listBreakerKey names the listing host's breaker; content providers use
// their provider names.
const listBreakerKey = "hiro-list"

// Config configures a Client. Base URLs must not have trailing slashes.
type Config struct {
	HiroBaseURL    string
	ContentBaseURL string
	TipHeightURL   string
	ListTimeout    time.Duration
	ContentTimeout time.Duration
	TipTimeout     time.Duration
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	hiroBase := strings.TrimSuffix(cfg.HiroBaseURL, "/")
	contentBase := strings.TrimSuffix(cfg.ContentBaseURL, "/")

	c := &Client{
		httpClient:     &http.Client{},
		hiroBase:       hiroBase,
		tipURL:         cfg.TipHeightURL,
		listTimeout:    durationOr(cfg.ListTimeout, 45*time.Second),
		contentTimeout: durationOr(cfg.ContentTimeout, 15*time.Second),
		tipTimeout:     durationOr(cfg.TipTimeout, 10*time.Second),
		retryAttempts:  2,
		retryBaseDelay: 750 * time.Millisecond,
		logger:         logger.With("component", "indexer"),
	}
	c.sleepFn = func(ctx context.Context, d time.Duration) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.providers = []contentProvider{
		{name: "ordinals", url: func(id string) string { return contentBase + "/" + id }},
		{name: "hiro", url: func(id string) string { return hiroBase + "/inscriptions/" + id + "/content" }},
	}
	return c
}

// SetRateLimiter throttles all outbound calls through l.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) { c.limiter = l }

// SetBreakerConfig guards list and content calls with one circuit breaker
// per host, so a dead content mirror cannot open the listing path and vice
// versa. Used in watch mode; one-shot runs leave it unset.
func (c *Client) SetBreakerConfig(cfg circuitbreaker.Config) {
	c.breakers = map[string]*circuitbreaker.Breaker{
		listBreakerKey: circuitbreaker.New(cfg),
	}
	for _, provider := range c.providers {
		c.breakers[provider.name] = circuitbreaker.New(cfg)
	}
}

// breakerFor returns the named breaker, or nil when breakers are not
// configured.
func (c *Client) breakerFor(name string) *circuitbreaker.Breaker {
	return c.breakers[name]
}

// SetContentCache caches fetched content by inscription id. Inscribed
// content is immutable, so cached entries never go stale semantically.
func (c *Client) SetContentCache(lru *cache.LRU[string, ContentResult]) { c.contentCache = lru }

// ListRecursiveHTML fetches one page of recursive inscriptions ordered
// newest-first by number. The first query shape filters by text/html mime
// type; if the indexer rejects it the same page is requested without the
// mime filter, since filter support varies between deployments. Each shape
// is retried with linear backoff before moving on.
func (c *Client) ListRecursiveHTML(ctx context.Context, offset, limit int) (*ListPage, error) {
	baseParams := url.Values{
		"recursive": {"true"},
		"order_by":  {"number"},
		"order":     {"desc"},
		"limit":     {strconv.Itoa(limit)},
		"offset":    {strconv.Itoa(offset)},
	}
	withMime := url.Values{}
	for k, v := range baseParams {
		withMime[k] = v
	}
	withMime.Set("mime_type", "text/html")

	var lastErr error
	for _, params := range []url.Values{withMime, baseParams} {
		listURL := c.hiroBase + "/inscriptions?" + params.Encode()
		var page ListPage
		err := c.withRetry(ctx, c.breakerFor(listBreakerKey), func(ctx context.Context) error {
			body, err := c.fetch(ctx, listURL, c.listTimeout)
			if err != nil {
				return err
			}
			page = ListPage{}
			if err := json.Unmarshal(body, &page); err != nil {
				return fmt.Errorf("unmarshal list response: %w", err)
			}
			return nil
		})
		if err == nil {
			return &page, nil
		}
		lastErr = err
		c.logger.Debug("list query shape failed, widening", "url", listURL, "error", err)
	}

	return nil, fmt.Errorf("hiro list query failed: %w", lastErr)
}

// FetchContent fetches an inscription's raw content, trying each provider in
// order. It fails only when every provider fails, with the error naming each
// provider's failure.
func (c *Client) FetchContent(ctx context.Context, inscriptionID string) (ContentResult, error) {
	if c.contentCache != nil {
		if cached, ok := c.contentCache.Get(inscriptionID); ok {
			metrics.ContentCacheHits.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.ContentCacheHits.WithLabelValues("miss").Inc()
	}

	var failures []string
	for _, provider := range c.providers {
		providerURL := provider.url(inscriptionID)
		var body []byte
		fetchOnce := func(ctx context.Context) error {
			var err error
			body, err = c.fetch(ctx, providerURL, c.contentTimeout)
			return err
		}
		var err error
		if b := c.breakerFor(provider.name); b != nil {
			err = b.Do(ctx, fetchOnce)
		} else {
			err = fetchOnce(ctx)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", provider.name, err.Error()))
			continue
		}
		result := ContentResult{HTML: string(body), Source: provider.name}
		if c.contentCache != nil {
			c.contentCache.Put(inscriptionID, result)
		}
		return result, nil
	}

	return ContentResult{}, fmt.Errorf("%s", strings.Join(failures, "; "))
}

// TipHeight returns the current chain tip height. Best-effort: any failure
// yields ok=false and downstream confirmation falls back to timestamp age.
func (c *Client) TipHeight(ctx context.Context) (int64, bool) {
	body, err := c.fetch(ctx, c.tipURL, c.tipTimeout)
	if err != nil {
		c.logger.Warn("tip height lookup failed, age fallback may apply", "error", err)
		return 0, false
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		c.logger.Warn("tip height response not a number", "body", truncate(string(body), 40))
		return 0, false
	}
	return height, true
}

// withRetry runs fn up to retryAttempts times with linear backoff
// (attempt x base delay), optionally behind the given circuit breaker.
func (c *Client) withRetry(ctx context.Context, breaker *circuitbreaker.Breaker, fn func(context.Context) error) error {
	call := fn
	if breaker != nil {
		call = func(ctx context.Context) error { return breaker.Do(ctx, fn) }
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= c.retryAttempts || ctx.Err() != nil {
			break
		}
		if err := c.sleepFn(ctx, time.Duration(attempt)*c.retryBaseDelay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	host := req.URL.Host
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.IndexerCallDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		ratelimit.RecordCall(host, err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ratelimit.RecordCall(host, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("HTTP %d for %s: %s", resp.StatusCode, rawURL, truncate(string(body), 300))
		ratelimit.RecordCall(host, err)
		return nil, err
	}

	ratelimit.RecordCall(host, nil)
	return body, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
