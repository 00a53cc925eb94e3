package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/runlab/toolstats/core"
)

// DefaultTimeout bounds one catalog request end to end.
const DefaultTimeout = 30 * time.Second

// toolsPath is the panel-independent listing; in_panel=false returns every
// installed version, not just the ones surfaced in the UI panels.
const toolsPath = "/api/tools?in_panel=false"

// ClientConfig configures the HTTP catalog client.
type ClientConfig struct {
	// BaseURL is the server root, e.g. https://usegalaxy.org. Required.
	// A trailing slash is tolerated.
	BaseURL string

	// Timeout bounds the whole request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client fetches the tool catalog from a server's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a catalog client for one server.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type toolListing struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Tools fetches the currently installed tool versions.
func (c *Client) Tools(ctx context.Context) (map[string]core.ToolIdentity, error) {
	url := c.baseURL + toolsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, url, resp.StatusCode)
	}

	var listings []toolListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("%w: decode tool list: %v", ErrUnavailable, err)
	}

	tools := make(map[string]core.ToolIdentity, len(listings))
	for _, listing := range listings {
		identity, err := core.NewToolIdentity(listing.ID, listing.Version)
		if err != nil {
			return nil, fmt.Errorf("catalog: tool %q: %w", listing.ID, err)
		}
		tools[identity.Key()] = identity
	}
	return tools, nil
}

var _ Source = (*Client)(nil)
