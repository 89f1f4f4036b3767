package sheetcsv

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client downloads published sheet tabs as CSV through the proxy endpoints.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a CSV client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New().
		SetHeader("Accept", "text/csv").
		SetTimeout(timeout)

	return &Client{httpClient: restyClient}
}

// Fetch returns the body of url. Non-2xx responses are errors.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("csv url must not be empty")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("t", fmt.Sprint(time.Now().UnixMilli())).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download csv: %w", err)
	}

	if resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("download csv: unexpected status %d", resp.StatusCode())
	}

	return resp.Body(), nil
}
