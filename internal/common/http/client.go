// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

const userAgent = "forgevision/3.5"

// Client is a thin wrapper that stamps auth and user-agent headers on every
// outbound request to a hosted model API.
type Client struct {
	httpClient  *http.Client
	bearerToken string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewAuthenticatedClient returns a client that sends "Authorization: Bearer <token>".
func NewAuthenticatedClient(timeout time.Duration, token string) *Client {
	c := NewClient(timeout)
	c.bearerToken = token
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if c.bearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return c.httpClient.Do(req)
}
