// Package upstream implements the optional read-through client: a cache
// miss can be filled from another ttlkv instance before answering.
package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
)

// Client fetches keys from an upstream ttlkv HTTP endpoint.
type Client struct {
	base   string
	client *http.Client
}

// New builds a Client for the given base URL, e.g. "http://peer:8080".
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch looks key up on the upstream. found is false on a 404 or on an
// upstream-side error; only transport failures surface as errors.
func (c *Client) Fetch(key string) (json.RawMessage, bool, error) {
	if c == nil || c.base == "" {
		return nil, false, nil
	}
	resp, err := c.client.Get(c.base + "/keys/" + url.PathEscape(key))
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("upstream status %d for key %q", resp.StatusCode, key)
	}
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, err
	}
	if len(body.Value) == 0 {
		return nil, false, nil
	}
	return body.Value, true, nil
}
