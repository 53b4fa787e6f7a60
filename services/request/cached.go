package request

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"mediameld/services/cache"
)

// Default and minimum cache tiers, in days.
const (
	shortCacheMinDays = 1
	longCacheMinDays  = 14
)

// RequestOptions controls the cache policy of one fetch.
type RequestOptions struct {
	// CacheDays is the freshness window: cached values younger than this are
	// returned without a network call.
	CacheDays int
	// CacheName replaces the URL-derived cache key, or prefixes it when
	// CacheCombineName is set.
	CacheName string
	// CacheCombineName combines CacheName with the URL-derived key instead of
	// replacing it.
	CacheCombineName bool
	// CacheOnly answers from the cache or not at all; the network is never
	// touched.
	CacheOnly bool
	// CacheRefresh ignores cached freshness and forces a live fetch,
	// overwriting the cache on success.
	CacheRefresh bool
	// CacheFallback, when non-nil, is stored and returned if the live fetch
	// fails.
	CacheFallback any
	// CacheForceDays overrides the retention of a stored fallback.
	CacheForceDays int
	// Method defaults to GET, or POST when PostData is set.
	Method string
	// PostData is an optional request body.
	PostData []byte
	// Headers override the client's defaults for this request.
	Headers http.Header
}

// CachedFetcher answers requests from the cache when fresh and falls back to
// the wrapped client otherwise. Successful responses are written back with
// the request's retention. All failures surface as a false ok — the callers
// treat every request as potentially empty.
type CachedFetcher struct {
	client    *Client
	store     cache.Store
	shortDays int
	longDays  int
	now       func() time.Time
}

// NewCachedFetcher wraps client with the given store. Tier lengths below the
// minimums are raised to them.
func NewCachedFetcher(client *Client, store cache.Store, shortDays, longDays int) *CachedFetcher {
	if shortDays < shortCacheMinDays {
		shortDays = shortCacheMinDays
	}
	if longDays < longCacheMinDays {
		longDays = longCacheMinDays
	}
	return &CachedFetcher{
		client:    client,
		store:     store,
		shortDays: shortDays,
		longDays:  longDays,
		now:       time.Now,
	}
}

// RequestShort issues a request on the short cache tier.
func (f *CachedFetcher) RequestShort(ctx context.Context, v any, opts RequestOptions, args []string, params url.Values) bool {
	opts.CacheDays = f.shortDays
	return f.Request(ctx, v, opts, args, params)
}

// RequestLong issues a request on the long cache tier.
func (f *CachedFetcher) RequestLong(ctx context.Context, v any, opts RequestOptions, args []string, params url.Values) bool {
	opts.CacheDays = f.longDays
	return f.Request(ctx, v, opts, args, params)
}

// Request resolves one upstream request through the cache policy in opts and
// decodes the payload into v (a pointer). ok reports whether v was populated;
// fetch failures are logged here and never propagate further.
func (f *CachedFetcher) Request(ctx context.Context, v any, opts RequestOptions, args []string, params url.Values) bool {
	requestURL := f.client.BuildURL(args, params)
	key := f.cacheKey(requestURL, opts)

	if !opts.CacheRefresh {
		if data, writtenAt, ok := f.store.Get(key); ok && f.now().Sub(writtenAt) < daysToDuration(opts.CacheDays) {
			if err := json.Unmarshal(data, v); err == nil {
				return true
			}
			// Unreadable entries are ignored; the fetch below rewrites them.
		}
	}
	if opts.CacheOnly {
		return false
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
		if opts.PostData != nil {
			method = http.MethodPost
		}
	}
	ferr := f.client.Fetch(ctx, method, requestURL, opts.PostData, opts.Headers, v)
	if ferr == nil {
		f.writeBack(key, v, opts.CacheDays)
		return true
	}

	if opts.CacheFallback != nil {
		days := opts.CacheForceDays
		if days <= 0 {
			days = opts.CacheDays
		}
		data, err := json.Marshal(opts.CacheFallback)
		if err == nil {
			if err := json.Unmarshal(data, v); err == nil {
				if err := f.store.Set(key, data, days); err != nil {
					log.Printf("[request] %s cache fallback write: %v", f.client.Name(), err)
				}
				return true
			}
		}
	}
	return false
}

func (f *CachedFetcher) cacheKey(requestURL string, opts RequestOptions) string {
	key := f.client.Name() + "|" + requestURL
	if opts.CacheName == "" {
		return key
	}
	if opts.CacheCombineName {
		return opts.CacheName + "|" + key
	}
	return opts.CacheName
}

func (f *CachedFetcher) writeBack(key string, v any, days int) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[request] %s cache encode: %v", f.client.Name(), err)
		return
	}
	if err := f.store.Set(key, data, days); err != nil {
		log.Printf("[request] %s cache write: %v", f.client.Name(), err)
	}
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
