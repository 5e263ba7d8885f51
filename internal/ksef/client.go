// Package ksef talks to the national e-invoicing registry.
package ksef

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/sync"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/httpx"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Client wraps the registry invoice query API.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

// NewClient constructs a registry client.
func NewClient(baseURL, token string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ sync.RegistryClient = (*Client)(nil)

type invoicePage struct {
	Invoices []sync.RawInvoice `json:"invoices"`
	HasMore  bool              `json:"has_more"`
}

// FetchInvoices returns one page of invoices issued since the given time.
// Transport failures and 5xx responses retry with backoff; an auth rejection
// or an exhausted retry budget fails fast so the orchestrator can close the
// run.
func (c *Client) FetchInvoices(ctx context.Context, since time.Time, page int) (sync.Page, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	endpoint := fmt.Sprintf("%s/online/Query/Invoice?%s", c.baseURL, query.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := initialBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return sync.Page{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, retryable, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return sync.Page{}, err
		}
	}
	return sync.Page{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (sync.Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sync.Page{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sync.Page{}, true, fmt.Errorf("%w: %v", httpx.ErrRegistryUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return sync.Page{}, false, fmt.Errorf("%w: registry returned status %d", httpx.ErrRegistryAuth, resp.StatusCode)
	case resp.StatusCode >= 500:
		return sync.Page{}, true, fmt.Errorf("%w: registry returned status %d", httpx.ErrRegistryUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return sync.Page{}, false, fmt.Errorf("%w: registry returned status %d", httpx.ErrRegistryUnavailable, resp.StatusCode)
	}

	var body invoicePage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return sync.Page{}, false, fmt.Errorf("ksef: decode invoice page: %w", err)
	}
	return sync.Page{Invoices: body.Invoices, HasMore: body.HasMore}, false, nil
}
