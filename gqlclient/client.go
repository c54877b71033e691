// Package gqlclient is a minimal GraphQL over HTTP client
package gqlclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options client options
type Options struct {
	URL            string
	Before         []BeforeFunc
	Insecure       bool
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client a graphql client
type Client struct {
	url        string
	before     []BeforeFunc
	httpClient *http.Client
}

// StatusError is returned when the server responds with a non 200 status.
// The response is still decoded when possible.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graphql request failed: %s", e.Status)
}

// NewClient creates a new client
func NewClient(opts *Options) (*Client, error) {
	if opts == nil || opts.URL == "" {
		return nil, fmt.Errorf("gqlclient: url is required")
	}

	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: opts.Insecure,
				},
			},
		}
	}

	return &Client{
		url:        opts.URL,
		before:     opts.Before,
		httpClient: httpClient,
	}, nil
}

// Request performs a request
func (c *Client) Request(ctx context.Context, request Request) (*Response, error) {
	body, err := request.toReader()
	if err != nil {
		return nil, err
	}

	rsp := &Response{}
	rsp.httpRequest, err = http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, err
	}
	rsp.httpRequest.Header.Set("Content-Type", "application/json")
	rsp.httpRequest.Header.Set("Accept", "application/json")

	// apply before middleware
	for _, before := range c.before {
		if err := before(rsp.httpRequest); err != nil {
			return nil, err
		}
	}

	rsp.httpResponse, err = c.httpClient.Do(rsp.httpRequest)
	if err != nil {
		return nil, err
	}
	defer rsp.httpResponse.Body.Close()

	rsp.rawResult, err = io.ReadAll(rsp.httpResponse.Body)
	if err != nil {
		return nil, err
	}

	var grsp graphQLResponse
	if err := json.Unmarshal(rsp.rawResult, &grsp); err != nil {
		if rsp.httpResponse.StatusCode != http.StatusOK {
			return rsp, &StatusError{StatusCode: rsp.httpResponse.StatusCode, Status: rsp.httpResponse.Status}
		}
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}

	rsp.data = grsp.Data
	rsp.extensions = grsp.Extensions
	if len(grsp.Errors) > 0 {
		rsp.errors = grsp.Errors
	}

	if rsp.httpResponse.StatusCode != http.StatusOK {
		return rsp, &StatusError{StatusCode: rsp.httpResponse.StatusCode, Status: rsp.httpResponse.Status}
	}

	return rsp, nil
}
