// Package bulletin fetches announcement entries from the third-party
// content delivery API. The feed is unrelated to chat traffic; the relay
// only proxies it for clients that render a bulletin board.
package bulletin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrFeedUnavailable wraps every transport or decoding failure so handlers
// can map the whole class to one upstream-error response.
var ErrFeedUnavailable = errors.New("bulletin feed unavailable")

// Entry is one published bulletin. Fields carries the raw content model,
// which the relay passes through untouched.
type Entry struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Client talks to a Contentful-style delivery API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	spaceID     string
	accessToken string
	log         *slog.Logger
}

func NewClient(baseURL, spaceID, accessToken string, log *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		spaceID:     spaceID,
		accessToken: accessToken,
		log:         log,
	}
}

// Entries fetches every published entry of the given content type.
func (c *Client) Entries(ctx context.Context, contentType string) ([]Entry, error) {
	endpoint := fmt.Sprintf("%s/spaces/%s/entries", c.baseURL, c.spaceID)
	query := url.Values{
		"content_type": {contentType},
		"access_token": {c.accessToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed responded with status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			Sys struct {
				ID string `json:"id"`
			} `json:"sys"`
			Fields map[string]any `json:"fields"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrFeedUnavailable, err)
	}

	entries := make([]Entry, 0, len(payload.Items))
	for _, item := range payload.Items {
		entries = append(entries, Entry{ID: item.Sys.ID, Fields: item.Fields})
	}

	c.log.Debug("fetched bulletin entries", "count", len(entries))
	return entries, nil
}
