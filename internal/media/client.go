// Package media talks to the external media library service. The economy
// treats it as advisory: failures degrade to empty answers so reward flows
// never block on it.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Item is an entry in the media library.
type Item struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	AddedAt time.Time `json:"added_at"`
}

// Client is the media service surface the economy consumes.
type Client interface {
	// ListRecentItems returns library items added since the given time.
	ListRecentItems(ctx context.Context, since time.Time) ([]Item, error)
	// WatchMinutes returns the minutes the linked identity watched today.
	WatchMinutes(ctx context.Context, linked string) (int64, error)
	// WhoHasPlayed returns the linked identities that have played the item.
	WhoHasPlayed(ctx context.Context, itemID string) ([]string, error)
}

// HTTPClient implements Client against the media service REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates an HTTPClient with a bounded request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media service returned %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode media response: %w", err)
	}
	return nil
}

// ListRecentItems returns items added since the given time. Errors degrade
// to an empty list.
func (c *HTTPClient) ListRecentItems(ctx context.Context, since time.Time) ([]Item, error) {
	var items []Item
	q := url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	if err := c.get(ctx, "/api/items/recent", q, &items); err != nil {
		log.Warn().Err(err).Msg("Media list failed, treating as empty")
		return nil, nil
	}
	return items, nil
}

// WatchMinutes returns today's watch minutes for the linked identity.
// Errors degrade to zero.
func (c *HTTPClient) WatchMinutes(ctx context.Context, linked string) (int64, error) {
	var payload struct {
		Minutes int64 `json:"minutes"`
	}
	q := url.Values{"user": {linked}}
	if err := c.get(ctx, "/api/watch/today", q, &payload); err != nil {
		log.Warn().Err(err).Str("linked", linked).Msg("Media watch lookup failed, treating as zero")
		return 0, nil
	}
	return payload.Minutes, nil
}

// WhoHasPlayed returns the linked identities with playback on the item.
// Errors degrade to an empty list, which readers must treat as "unknown"
// rather than "nobody".
func (c *HTTPClient) WhoHasPlayed(ctx context.Context, itemID string) ([]string, error) {
	var users []string
	if err := c.get(ctx, "/api/items/"+url.PathEscape(itemID)+"/players", nil, &users); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("Media players lookup failed, treating as empty")
		return nil, nil
	}
	return users, nil
}
