// Package hnclient talks to the public Hacker News v0 API: the
// recent-changes feed plus per-entity fetches for items and users.
package hnclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/molehill/hnmirror/internal/hnmirror"
)

// DefaultBaseURL is the public v0 endpoint.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

type (
	// Client fetches records from the external source. All calls go
	// through one underlying [http.Client].
	Client struct {
		baseURL string
		httpCli *http.Client
	}

	// ItemPayload mirrors the wire schema of an item record. Numeric
	// fields the source may omit stay nil rather than zero.
	ItemPayload struct {
		ID          int64   `json:"id"`
		Deleted     bool    `json:"deleted"`
		Type        string  `json:"type"`
		By          string  `json:"by"`
		Time        int64   `json:"time"`
		Text        string  `json:"text"`
		Dead        bool    `json:"dead"`
		Parent      *int64  `json:"parent"`
		Poll        *int64  `json:"poll"`
		Kids        []int64 `json:"kids"`
		URL         string  `json:"url"`
		Score       *int64  `json:"score"`
		Title       string  `json:"title"`
		Parts       []int64 `json:"parts"`
		Descendants *int64  `json:"descendants"`
	}

	// UserPayload mirrors the wire schema of a profile record.
	UserPayload struct {
		ID        string  `json:"id"`
		Delay     *int64  `json:"delay"`
		Created   int64   `json:"created"`
		Karma     *int64  `json:"karma"`
		About     string  `json:"about"`
		Submitted []int64 `json:"submitted"`
	}

	updatesResp struct {
		Items    []int64  `json:"items"`
		Profiles []string `json:"profiles"`
	}
)

// New creates a client against the given base URL. An empty baseURL falls
// back to [DefaultBaseURL].
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpCli: &http.Client{Timeout: timeout},
	}
}

// Updates polls the recent-changes feed once and returns the changed item
// ids and profile handles, de-duplicated within this poll. Any failure is
// wrapped in [ErrFeedUnavailable]: the feed is all-or-nothing.
func (c *Client) Updates(ctx context.Context) (hnmirror.Changes, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/updates.json", c.baseURL))
	if err != nil {
		return hnmirror.Changes{}, fmt.Errorf("%w: %s", ErrFeedUnavailable, err)
	}

	var resp updatesResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return hnmirror.Changes{}, fmt.Errorf("%w: error decoding feed: %s", ErrFeedUnavailable, err)
	}

	return hnmirror.Changes{
		Items:    dedupe(resp.Items),
		Profiles: dedupe(resp.Profiles),
	}, nil
}

// Item fetches a single item record by id.
//
// The source answers a literal `null` body for records that are gone; that
// maps to [ErrNotFound], not to a failure.
func (c *Client) Item(ctx context.Context, id int64) (ItemPayload, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id))
	if err != nil {
		return ItemPayload{}, err
	}
	if isNull(body) {
		return ItemPayload{}, ErrNotFound
	}

	var p ItemPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ItemPayload{}, &PermanentError{Err: fmt.Errorf("error decoding item %d: %s", id, err)}
	}

	return p, nil
}

// User fetches a single profile record by handle.
func (c *Client) User(ctx context.Context, handle string) (UserPayload, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/user/%s.json", c.baseURL, handle))
	if err != nil {
		return UserPayload{}, err
	}
	if isNull(body) {
		return UserPayload{}, ErrNotFound
	}

	var p UserPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return UserPayload{}, &PermanentError{Err: fmt.Errorf("error decoding user %s: %s", handle, err)}
	}

	return p, nil
}

// get performs one GET and buckets the outcome into the error taxonomy:
// network problems and 5xx/429 are transient, other non-200s permanent.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("error building request: %s", err)}
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("error getting %s: %s", url, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read the body
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	default:
		return nil, &PermanentError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("error reading body: %s", err)}
	}

	return body, nil
}

func isNull(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}

// dedupe drops repeated values while keeping first-occurrence order.
func dedupe[T comparable](in []T) []T {
	if len(in) == 0 {
		return in
	}

	seen := make(map[T]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
