package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fisaks/fieldhub/internal/config"
)

// JSONClient talks to one REST device endpoint. Every request carries
// the configured timeout, JSON headers and optional basic auth; the
// response body must be JSON or the call fails with KindContentType.
type JSONClient struct {
	endpointID string
	baseURL    *url.URL
	username   string
	password   string
	timeout    time.Duration
	hc         *http.Client
}

func NewJSONClient(ep *config.EndpointConfig) (*JSONClient, error) {
	u, err := url.Parse(ep.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", ep.EndpointId, err)
	}
	return &JSONClient{
		endpointID: ep.EndpointId,
		baseURL:    u,
		username:   ep.Username,
		password:   ep.Password,
		timeout:    ep.Timeout(),
		hc:         &http.Client{},
	}, nil
}

func (c *JSONClient) EndpointID() string { return c.endpointID }

// GetJSON fetches path relative to the endpoint base URL.
func (c *JSONClient) GetJSON(ctx context.Context, path string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// PutJSON sends body as JSON and returns the decoded response document,
// which devices use to echo the confirmed value back.
func (c *JSONClient) PutJSON(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *JSONClient) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	u := c.baseURL.JoinPath(path)
	op := method + " " + u.Path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, wrap(op, c.endpointID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindProtocol, Op: op, Target: c.endpointID,
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, &Error{Kind: KindContentType, Op: op, Target: c.endpointID,
			Err: fmt.Errorf("got %q", ct)}
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		// A 2xx JSON response with a broken body is a decode failure,
		// not a transport failure; the coordinator treats both alike.
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return doc, nil
}
