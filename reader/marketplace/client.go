package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salesflow/config"
	"salesflow/internal/metrics"
	"salesflow/logger"

	"golang.org/x/time/rate"
)

const (
	component       = "marketplace"
	maxResponseSize = 8 << 20

	endpointStats  = "stats"
	endpointEvents = "events"
	endpointNFTs   = "nfts"

	defaultSalesLimit = 50
	defaultNFTLimit   = 50
)

// Client reads collection stats, sale events and the NFT listing from an
// OpenSea v2 compatible API.
type Client struct {
	cfg        config.MarketplaceConfig
	collection config.CollectionConfig
	fallbacks  config.FallbacksConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
	now        func() time.Time
}

// NewClient builds a client with a pooled transport, the API key transport
// and a token bucket limiter shared by all endpoints.
func NewClient(cfg *config.Config) *Client {
	log := logger.GetLogger()
	mc := cfg.Marketplace

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        mc.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: mc.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     mc.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     mc.ConnectionPool.IdleConnTimeout,
	}

	httpClient := &http.Client{
		Transport: apiKeyTransport{apiKey: mc.APIKey, agent: mc.UserAgent, base: transport},
		Timeout:   mc.Timeout,
	}

	rps := mc.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := mc.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	log.WithComponent(component).WithFields(logger.Fields{
		"base_url":           mc.BaseURL,
		"slug":               cfg.Collection.Slug,
		"timeout":            mc.Timeout,
		"max_conns_per_host": mc.ConnectionPool.MaxConnsPerHost,
		"requests_per_sec":   rps,
	}).Info("marketplace client initialized")

	return &Client{
		cfg:        mc,
		collection: cfg.Collection,
		fallbacks:  cfg.Fallbacks,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        log,
		now:        time.Now,
	}
}

// get performs one rate-limited GET. A non-nil error always means no usable
// response arrived; non-2xx statuses are returned to the caller to judge.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, int, error) {
	log := c.log.WithComponent(component).WithFields(logger.Fields{
		"endpoint":  endpoint,
		"operation": "get",
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(endpoint, 0, duration)
		log.WithError(err).Warn("request failed")
		return nil, 0, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	metrics.ObserveRequest(endpoint, resp.StatusCode, duration)
	logger.LogPerformanceEntry(log, component, "api_request", duration, logger.Fields{
		"status": resp.StatusCode,
	})
	if err != nil {
		log.WithError(err).Warn("failed to read response body")
		return nil, 0, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	logger.RecordEndpointRead(endpoint, len(body))

	metrics.ReportLimitFromStatus(c.log, endpoint, resp.StatusCode)
	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func limitQuery(limit, def int) url.Values {
	if limit <= 0 {
		limit = def
	}
	return url.Values{"limit": []string{fmt.Sprint(limit)}}
}
