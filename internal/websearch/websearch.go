// Package websearch implements the Web-Search Fallback (C6): an external
// search call producing ranked snippets plus a generated summary with a
// confidence score. HTTP call shape is grounded on the teacher's
// jina_reranker.go; the Redis-backed result cache is grounded on
// web_search_state.go's session-state pattern, repurposed here to cache by
// (query, lang) instead of by session.
package websearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types/interfaces"
)

// Config configures the external web-search provider and its cache TTL.
type Config struct {
	Endpoint   string
	APIKey     string
	TTL        time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Client is C6.
type Client struct {
	cfg   Config
	http  *http.Client
	redis *redis.Client
}

var _ interfaces.WebSearchClient = (*Client)(nil)

func New(cfg Config, redisClient *redis.Client) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: 8 * time.Second}, redis: redisClient}
}

// Ping satisfies gateway.Pinger, reporting the result cache's reachability;
// web search itself degrades gracefully on provider failure (§4.6), so its
// cache is what actually gates this component's health.
func (c *Client) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

type providerRequest struct {
	Query string `json:"q"`
	N     int    `json:"n"`
	Lang  string `json:"lang"`
}

type providerResponse struct {
	Hits []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
	} `json:"hits"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Search calls the external provider, never raising on provider error
// (§4.6 invariant): any failure yields an empty result with confidence 0.
// Results for identical (query, lang) are cached for the configured TTL.
func (c *Client) Search(ctx context.Context, query string, maxResults int, lang string) interfaces.WebSearchOutcome {
	cacheKey := c.cacheKey(query, lang)

	if c.redis != nil {
		if cached, ok := c.readCache(ctx, cacheKey); ok {
			return cached
		}
	}

	outcome := c.callProvider(ctx, query, maxResults, lang)

	if c.redis != nil && outcome.Confidence > 0 {
		c.writeCache(ctx, cacheKey, outcome)
	}
	return outcome
}

// callProvider retries the provider call up to cfg.MaxRetries times with
// exponential backoff and jitter, the same pattern the Embedding Client
// uses (§5 "Retries"), before giving up. Even after retries are exhausted
// this never raises: §4.6's invariant holds, it just takes longer to reach
// the confidence-0 fallback.
func (c *Client) callProvider(ctx context.Context, query string, maxResults int, lang string) interfaces.WebSearchOutcome {
	var lastErr error
	delay := c.cfg.BaseDelay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)+1))
			select {
			case <-ctx.Done():
				logger.Warnf(ctx, "websearch: context canceled during retry")
				return interfaces.WebSearchOutcome{}
			case <-time.After(jittered):
			}
			delay *= 2
		}
		out, err := c.doRequest(ctx, query, maxResults, lang)
		if err == nil {
			return out
		}
		lastErr = err
		logger.Warnf(ctx, "websearch: attempt %d failed: %v", attempt, err)
	}
	logger.Warnf(ctx, "websearch: all attempts failed: %v", lastErr)
	return interfaces.WebSearchOutcome{}
}

func (c *Client) doRequest(ctx context.Context, query string, maxResults int, lang string) (interfaces.WebSearchOutcome, error) {
	body, err := json.Marshal(providerRequest{Query: query, N: maxResults, Lang: lang})
	if err != nil {
		return interfaces.WebSearchOutcome{}, fmt.Errorf("websearch: marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return interfaces.WebSearchOutcome{}, fmt.Errorf("websearch: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	logger.Infof(ctx, "websearch: POST %s q=%q n=%d lang=%s", c.cfg.Endpoint, query, maxResults, lang)

	resp, err := c.http.Do(req)
	if err != nil {
		return interfaces.WebSearchOutcome{}, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return interfaces.WebSearchOutcome{}, fmt.Errorf("websearch: provider returned status %d: %s", resp.StatusCode, string(data))
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return interfaces.WebSearchOutcome{}, fmt.Errorf("websearch: decode response failed: %w", err)
	}

	out := interfaces.WebSearchOutcome{Summary: pr.Summary, Confidence: pr.Confidence}
	for _, h := range pr.Hits {
		out.Results = append(out.Results, interfaces.WebSearchResult{
			Title: h.Title, URL: h.URL, Snippet: h.Snippet, Confidence: h.Score,
		})
	}
	return out, nil
}

func (c *Client) cacheKey(query, lang string) string {
	sum := sha256.Sum256([]byte(query + "\x00" + lang))
	return "websearch:" + hex.EncodeToString(sum[:])
}

func (c *Client) readCache(ctx context.Context, key string) (interfaces.WebSearchOutcome, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return interfaces.WebSearchOutcome{}, false
	}
	var out interfaces.WebSearchOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return interfaces.WebSearchOutcome{}, false
	}
	return out, true
}

func (c *Client) writeCache(ctx context.Context, key string, outcome interfaces.WebSearchOutcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cfg.TTL).Err(); err != nil {
		logger.Warnf(ctx, "websearch: cache write failed: %v", err)
	}
}

// tempStateKey mirrors the teacher's "tempkb:<sessionID>" naming for
// per-session scratch state (seen URLs across repeated fallback calls in
// one conversation).
func tempStateKey(sessionID string) string {
	return fmt.Sprintf("websearch:tempstate:%s", sessionID)
}
