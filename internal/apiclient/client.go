// Package apiclient is the outbound HTTP JSON client shared by all
// providers: fixed timeout, rate limiting, error normalization, and a
// time-boxed response cache for idempotent calls.
package apiclient

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"socialpress/internal/errs"
	"socialpress/internal/logging"
)

const (
	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 30 * time.Second

	// cacheTTL is how long a cached API response stays valid.
	cacheTTL = time.Hour

	userAgent = "socialpress/1.0"
)

// Options describe one request. A zero Options is a plain GET.
type Options struct {
	Method  string
	Headers map[string]string
	Query   url.Values
	Body    []byte
}

// Client performs outbound JSON requests.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
	cache   *responseCache
	now     func() time.Time
}

// New creates a Client. A zero timeout uses DefaultTimeout; a zero rps
// disables rate limiting.
func New(timeout time.Duration, rps float64, logger *logging.Logger) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
		cache:   newResponseCache(),
		now:     time.Now,
	}
}

// RequestJSON performs the request and decodes the JSON response into
// out. Successful GET responses are cached for an hour when cacheable
// is true; any other method bypasses the cache unconditionally, so
// token-exchange and mutating calls are never served stale.
func (c *Client) RequestJSON(ctx context.Context, rawurl string, opts Options, cacheable bool, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	fullURL := rawurl
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(rawurl, "?") {
			sep = "&"
		}
		fullURL = rawurl + sep + opts.Query.Encode()
	}

	useCache := cacheable && method == http.MethodGet
	key := cacheKey(method, fullURL, opts)

	if useCache {
		if body, ok := c.cache.get(key, c.now()); ok {
			return c.decode(fullURL, body, out)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errs.Wrap(errs.APIError, err, "rate limit wait for %s", fullURL)
		}
	}

	var reqBody io.Reader
	if len(opts.Body) > 0 {
		reqBody = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return errs.Wrap(errs.APIError, err, "building request for %s", rawurl)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API request failed", map[string]any{"url": fullURL, "error": err.Error()})
		return errs.Wrap(errs.APIError, err, "requesting %s", fullURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.APIError, err, "reading response from %s", fullURL)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API request returned non-200 status", map[string]any{
			"url":    fullURL,
			"status": resp.StatusCode,
			"body":   truncate(string(body), 512),
		})
		return errs.New(errs.APIError, "API request failed with status code %d for %s", resp.StatusCode, fullURL)
	}

	if err := c.decode(fullURL, body, out); err != nil {
		return err
	}

	if useCache {
		c.cache.put(key, body, c.now().Add(cacheTTL))
	}
	return nil
}

func (c *Client) decode(url string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("failed to parse API response", map[string]any{
			"url":  url,
			"body": truncate(string(body), 512),
		})
		return errs.Wrap(errs.JSONDecodeError, err, "parsing response from %s", url)
	}
	return nil
}

// cacheKey derives the request identity: method, full URL, canonicalized
// headers, and body.
func cacheKey(method, fullURL string, opts Options) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('|')
	b.WriteString(fullURL)
	b.WriteByte('|')
	keys := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(opts.Headers[k])
		b.WriteByte(';')
	}
	b.WriteByte('|')
	b.Write(opts.Body)
	return fmt.Sprintf("%x", md5.Sum([]byte(b.String())))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
