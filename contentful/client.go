package contentful

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/utils/backoff"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultDeliveryHost   = "cdn.contentful.com"
	DefaultPreviewHost    = "preview.contentful.com"
	DefaultManagementHost = "api.contentful.com"

	// MaxLimit is the largest page size the APIs accept
	MaxLimit = 1000

	defaultRequestTimeout = 10 * time.Second
	defaultRateLimit      = 50
	maxIDsPerRequest      = 100
	maxConcurrentBatches  = 4
	maxRetryWait          = 5 * time.Second
	rateLimitResetHeader  = "X-Contentful-RateLimit-Reset"
	requestIDHeader       = "X-Contentful-Request-Id"
)

// Config configures a client for a single space
type Config struct {
	SpaceID  string
	CDAToken string
	CMAToken string

	// Scheme is the URL scheme used for every API, https by default
	Scheme         string
	DeliveryHost   string
	PreviewHost    string
	ManagementHost string
	// Preview sends delivery requests to the preview API
	Preview bool
	// Locale selects the locale of delivered field values. Empty means the
	// space default.
	Locale string

	RequestTimeout time.Duration
	Insecure       bool
	// RateLimit is the number of delivery requests per second. Negative
	// disables limiting.
	RateLimit float64
	// MaxRetries is how often a rate limited or failed delivery request is
	// retried. Content type requests are never retried.
	MaxRetries int
	// CacheSize enables a process wide cache of delivery responses
	CacheSize int
	CacheTTL  time.Duration

	UserAgent  string
	HTTPClient *http.Client
	Logger     *logger.LogWrapper
}

type cacheEntry struct {
	body     []byte
	storedAt time.Time
}

type apiKind int

const (
	deliveryAPI apiKind = iota
	managementAPI
)

// Client is an authenticated handle to one space. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	group      singleflight.Group
	cache      *lru.Cache[string, cacheEntry]
	log        *logger.LogWrapper
}

// New creates a new client
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpaceID) == "" {
		return nil, ErrMissingSpace
	}

	if strings.TrimSpace(cfg.CDAToken) == "" || strings.TrimSpace(cfg.CMAToken) == "" {
		return nil, ErrMissingToken
	}

	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.DeliveryHost == "" {
		cfg.DeliveryHost = DefaultDeliveryHost
	}
	if cfg.PreviewHost == "" {
		cfg.PreviewHost = DefaultPreviewHost
	}
	if cfg.ManagementHost == "" {
		cfg.ManagementHost = DefaultManagementHost
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.Insecure,
				},
			},
		}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		log:        log.WithField("spaceId", cfg.SpaceID),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "contentful:" + cfg.SpaceID,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithField("breaker", name).Warnf("circuit breaker changed from %s to %s", from, to)
		},
	})

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("contentful: failed to create response cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// SpaceID returns the id of the space the client is bound to
func (c *Client) SpaceID() string {
	return c.cfg.SpaceID
}

// ContentTypes fetches every content type of the space from the
// management API
func (c *Client) ContentTypes(ctx context.Context) ([]ContentType, error) {
	contentTypes := []ContentType{}

	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(MaxLimit))
		query.Set("skip", strconv.Itoa(len(contentTypes)))

		body, err := c.get(ctx, managementAPI, "/content_types", query)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch content types: %w", err)
		}

		page, err := decodeCollection[ContentType](body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode content types: %w", err)
		}

		contentTypes = append(contentTypes, page.Items...)
		if len(page.Items) == 0 || len(contentTypes) >= page.Total {
			return contentTypes, nil
		}
	}
}

// NewLoader creates a request scoped loader
func (c *Client) NewLoader() *Loader {
	return newLoader(c)
}

func (c *Client) endpoint(api apiKind, path string, query url.Values) string {
	host := c.cfg.DeliveryHost
	switch {
	case api == managementAPI:
		host = c.cfg.ManagementHost
	case c.cfg.Preview:
		host = c.cfg.PreviewHost
	}

	if api == deliveryAPI && c.cfg.Locale != "" && query.Get("locale") == "" {
		query.Set("locale", c.cfg.Locale)
	}

	u := url.URL{
		Scheme:   c.cfg.Scheme,
		Host:     host,
		Path:     fmt.Sprintf("/spaces/%s%s", url.PathEscape(c.cfg.SpaceID), path),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// get performs a GET request against one of the APIs. Delivery requests
// are cached, shared between concurrent callers and retried.
func (c *Client) get(ctx context.Context, api apiKind, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	u := c.endpoint(api, path, query)

	if api == managementAPI {
		v, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, u, c.cfg.CMAToken)
		})
		if err != nil {
			return nil, err
		}
		return v.([]byte), nil
	}

	if body, ok := c.cached(u); ok {
		c.log.WithField("url", u).Tracef("delivery cache hit")
		return body, nil
	}

	// The shared fetch outlives any single caller: it runs detached from
	// the caller that started it, without its timeline, and is bounded by
	// sharedFetchTimeout. Each caller waits on its own context and records
	// its own timeline event.
	start := time.Now()
	timeline := TimelineFromContext(ctx)
	detached := context.WithoutCancel(WithTimeline(ctx, nil))

	ch := c.group.DoChan(u, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(detached, c.sharedFetchTimeout())
		defer cancel()

		return c.breaker.Execute(func() (interface{}, error) {
			return c.doWithRetry(fetchCtx, u, c.cfg.CDAToken)
		})
	})

	select {
	case <-ctx.Done():
		timeline.add(u, start, 0)
		return nil, ctx.Err()

	case res := <-ch:
		timeline.add(u, start, statusOf(res.Err))
		if res.Err != nil {
			return nil, res.Err
		}

		body := res.Val.([]byte)
		c.store(u, body)
		return body, nil
	}
}

// sharedFetchTimeout bounds a delivery fetch including its retries
func (c *Client) sharedFetchTimeout() time.Duration {
	return time.Duration(c.cfg.MaxRetries+1) * (c.cfg.RequestTimeout + maxRetryWait)
}

// statusOf returns the HTTP status a delivery fetch ended with, 0 when no
// response was received
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func (c *Client) doWithRetry(ctx context.Context, u, token string) ([]byte, error) {
	b := backoff.NewBackoff(&backoff.Options{
		Min:    250 * time.Millisecond,
		Max:    maxRetryWait,
		Jitter: 0.2,
	})

	for attempt := 1; ; attempt++ {
		body, err := c.do(ctx, u, token)
		if err == nil {
			return body, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt > c.cfg.MaxRetries {
			return nil, err
		}

		c.log.WithError(err).WithField("url", u).Debugf("retrying delivery request, attempt %d", attempt)

		if apiErr.retryAfter <= 0 {
			if err := b.Wait(ctx); err != nil {
				return nil, err
			}
			continue
		}

		timer := time.NewTimer(apiErr.retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, u, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	timeline := TimelineFromContext(ctx)

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		timeline.add(u, start, 0)
		return nil, err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	timeline.add(u, start, rsp.StatusCode)
	if err != nil {
		return nil, err
	}

	c.log.
		WithField("url", u).
		WithField("status", rsp.StatusCode).
		WithField("duration", time.Since(start).String()).
		Tracef("contentful request")

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		apiErr := newAPIError(rsp.StatusCode, u, rsp.Header.Get(requestIDHeader), body)
		if reset, err := strconv.Atoi(rsp.Header.Get(rateLimitResetHeader)); err == nil && reset > 0 {
			apiErr.retryAfter = time.Duration(reset) * time.Second
		}
		return nil, apiErr
	}

	return body, nil
}

func (c *Client) cached(u string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, ok := c.cache.Get(u)
	if !ok {
		return nil, false
	}

	if c.cfg.CacheTTL > 0 && time.Since(entry.storedAt) > c.cfg.CacheTTL {
		c.cache.Remove(u)
		return nil, false
	}

	return entry.body, true
}

func (c *Client) store(u string, body []byte) {
	if c.cache == nil {
		return
	}

	c.cache.Add(u, cacheEntry{
		body:     body,
		storedAt: time.Now(),
	})
}
