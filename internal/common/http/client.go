// Package http wraps net/http for the outbound provider calls. Every
// request goes through Do so the caller's context always bounds the
// call in addition to the client-level timeout.
package http

import (
	"context"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends the request bound to ctx. The shorter of ctx's deadline and
// the client timeout wins.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}
