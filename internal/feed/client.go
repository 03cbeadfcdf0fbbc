// Package feed is the upstream CRM order-feed HTTP client: pagination,
// exponential retry, and a tuned transport, adapted from the teacher's
// ESI client in the same idiom.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"salesanalytics/internal/config"
	"salesanalytics/internal/logger"
)

const (
	maxRetries    = config.SyncMaxRetries
	retryBaseWait = 500 * time.Millisecond
)

// Client is a rate-limited upstream CRM feed client. A single semaphore
// bounds in-flight requests so a slow upstream cannot pile up goroutines
// during a large backfill.
type Client struct {
	http    *http.Client
	sem     chan struct{}
	baseURL string
	apiKey  string
}

// NewClient builds a feed client with a tuned transport, mirroring the
// teacher's high-concurrency connection-reuse configuration.
func NewClient(baseURL, apiKey string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     120 * time.Second,
	}
	return &Client{
		http:    &http.Client{Timeout: config.UpstreamTimeout, Transport: transport},
		sem:     make(chan struct{}, 20),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable || statusCode == http.StatusGatewayTimeout || statusCode == http.StatusTooManyRequests
}

// getJSON issues a single GET with up to maxRetries exponential-backoff
// retries on transient (502/503/504/429) upstream errors.
func (c *Client) getJSON(ctx context.Context, u string, dst interface{}) error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("FEED", fmt.Sprintf("request failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err))
			continue
		}

		if resp.StatusCode == http.StatusOK {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("read body: %w", err)
				continue
			}
			if err := json.Unmarshal(body, dst); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		resp.Body.Close()
		if !isRetryable(resp.StatusCode) || attempt == maxRetries {
			return fmt.Errorf("upstream returned %d for %s", resp.StatusCode, u)
		}
		lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
		logger.Warn("FEED", fmt.Sprintf("retryable status %d (attempt %d/%d): %s", resp.StatusCode, attempt+1, maxRetries+1, u))
	}
	return lastErr
}

// OrderDTO is the upstream wire shape for a single order, decoded from the
// feed before being mapped into store.Order.
type OrderDTO struct {
	ID             int64            `json:"id"`
	SourceID       int64            `json:"source_id"`
	StatusID       int64            `json:"status_id"`
	GrandTotal     float64          `json:"grand_total"`
	OrderedAt      time.Time        `json:"ordered_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      *time.Time       `json:"updated_at"`
	BuyerID        *int64           `json:"buyer_id"`
	ManagerID      *int64           `json:"manager_id"`
	ManagerComment string           `json:"manager_comment"`
	Products       []OrderProductDTO `json:"products"`
}

// OrderProductDTO is the upstream wire shape for an order line item.
type OrderProductDTO struct {
	ID        int64   `json:"id"`
	ProductID *int64  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	PriceSold float64 `json:"price_sold"`
}

type ordersPageResponse struct {
	Data       []OrderDTO `json:"data"`
	TotalPages int        `json:"total_pages"`
}

// FetchOrdersPage requests one page of orders updated at or after since,
// using the store's fixed page size. hasMore reports whether the page was full
// (there may be more); a short page signals the caller to stop paging.
func (c *Client) FetchOrdersPage(ctx context.Context, since time.Time, page int) (orders []OrderDTO, hasMore bool, err error) {
	u := fmt.Sprintf("%s/order?%s", c.baseURL, url.Values{
		"filter[updated_at_from]": {since.UTC().Format(time.RFC3339)},
		"page":                    {strconv.Itoa(page)},
		"limit":                   {strconv.Itoa(config.SyncPageSize)},
		"include":                 {"products,buyer"},
	}.Encode())

	var resp ordersPageResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, false, fmt.Errorf("fetch orders page %d: %w", page, err)
	}
	return resp.Data, len(resp.Data) == config.SyncPageSize, nil
}
