// Package taplist fetches live tap lists from the upstream retail API.
// The upstream payload is untyped JSON; parsing is duck typed around the
// element that carries a brewInStock array
package taplist

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "taplist-api"
	defaultCacheSize = 32
	maxBodyBytes     = 8 << 20
)

// Options configures the Client
type Options struct {
	// BaseURL is the upstream taplist endpoint, store id goes in ?sid=
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// CacheTTL enables a short lived per-store response cache when > 0
	CacheTTL  time.Duration
	CacheSize int
}

// Client is a read-only upstream taplist client with an optional response cache
type Client struct {
	http  *http.Client
	opts  Options
	cache *expirable.LRU[string, []Brew]
	log   logger.Logger
}

// New creates a Client with sane defaults. BaseURL must be non-empty
func New(o Options) *Client {
	if o.BaseURL == "" {
		panic("taplist: BaseURL required")
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	c := &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("taplist"),
	}
	if o.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []Brew](o.CacheSize, nil, o.CacheTTL)
	}
	return c
}

// FetchTaplist returns the brews currently pouring at a store. Results may be
// served from the TTL cache when enabled
func (c *Client) FetchTaplist(ctx context.Context, storeID string) ([]Brew, error) {
	if storeID == "" {
		return nil, perr.InvalidArgf("taplist: empty store id")
	}
	if c.cache != nil {
		if brews, ok := c.cache.Get(storeID); ok {
			return brews, nil
		}
	}

	u := c.opts.BaseURL + "?sid=" + url.QueryEscape(storeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "taplist new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "taplist fetch failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("store_id", storeID).Msg("taplist close body failed")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, perr.Upstreamf("taplist upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "taplist read body failed")
	}

	brews, err := ParseTaplist(body)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("store_id", storeID).
		Int("brews", len(brews)).
		Dur("latency", time.Since(start)).
		Msg("taplist fetched")

	if c.cache != nil {
		c.cache.Add(storeID, brews)
	}
	return brews, nil
}
