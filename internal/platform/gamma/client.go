// Package gamma is the REST client for the market metadata service. Its
// documents are consumed as opaque JSON and normalized into domain types at
// this boundary.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// Client is the REST client for the Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gamma API client.
//
// baseURL is the API root, e.g. "https://gamma-api.polymarket.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEventBySlug returns a single event with its embedded markets.
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (APIEvent, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := c.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return APIEvent{}, fmt.Errorf("gamma: get event by slug %s: %w", slug, err)
	}

	// The endpoint responds with either a list or a bare object.
	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		var single APIEvent
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return APIEvent{}, fmt.Errorf("gamma: decode event: %w", err)
		}
		events = []APIEvent{single}
	}
	if len(events) == 0 {
		return APIEvent{}, fmt.Errorf("gamma: %w: event slug=%s", domain.ErrNotFound, slug)
	}
	return events[0], nil
}

// GetMarketBySlug returns a single market looked up by its URL slug.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (APIMarket, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := c.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return APIMarket{}, fmt.Errorf("gamma: get market by slug %s: %w", slug, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return APIMarket{}, fmt.Errorf("gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, fmt.Errorf("gamma: %w: market slug=%s", domain.ErrNotFound, slug)
	}
	return markets[0], nil
}

// doGet performs a GET request against the Gamma API and returns the raw
// response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
