package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HTTPClient talks to the document store over its REST surface:
//
//	GET    {base}/users/{uid}/{table}            list a collection
//	PATCH  {base}/users/{uid}/{table}/{docID}    merge-write one document
//	DELETE {base}/users/{uid}/{table}/{docID}    delete one document
//	WS     {base}/users/{uid}/{table}/watch      change notification stream
type HTTPClient struct {
	baseURL string
	uid     string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for one user's collections. The token is
// sent as a bearer credential on every request.
func NewHTTPClient(baseURL, uid, token string) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if uid == "" {
		return nil, fmt.Errorf("uid cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		uid:     uid,
		token:   token,
		http:    http.DefaultClient,
	}, nil
}

func (c *HTTPClient) collectionURL(table string) string {
	return fmt.Sprintf("%s/users/%s/%s", c.baseURL, url.PathEscape(c.uid), url.PathEscape(table))
}

func (c *HTTPClient) docURL(table, docID string) string {
	return c.collectionURL(table) + "/" + url.PathEscape(docID)
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// listResponse is the collection read wire shape.
type listResponse struct {
	Documents map[string]Document `json:"documents"`
}

// ListCollection implements Client.ListCollection.
func (c *HTTPClient) ListCollection(ctx context.Context, table string) (map[string]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(table), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return map[string]Document{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list %s: remote returned %s", table, resp.Status)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s collection: %w", table, err)
	}
	if out.Documents == nil {
		out.Documents = map[string]Document{}
	}
	return out.Documents, nil
}

// MergeSet implements Client.MergeSet.
func (c *HTTPClient) MergeSet(ctx context.Context, table, docID string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", table, docID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.docURL(table, docID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build merge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", table, docID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("write %s/%s: remote returned %s", table, docID, resp.Status)
	}
	return nil
}

// Delete implements Client.Delete.
func (c *HTTPClient) Delete(ctx context.Context, table, docID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.docURL(table, docID), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, docID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete %s/%s: remote returned %s", table, docID, resp.Status)
	}
	return nil
}

// Watch implements Client.Watch by attaching a websocket to the table's
// watch endpoint and forwarding decoded change events. The channel is
// closed when the socket closes or ctx is cancelled.
func (c *HTTPClient) Watch(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	wsURL, err := c.watchURL(table)
	if err != nil {
		return nil, err
	}

	var opts *websocket.DialOptions
	if c.token != "" {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+c.token)
		opts = &websocket.DialOptions{HTTPHeader: h}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to attach watch for %s: %w", table, err)
	}

	events := make(chan ChangeEvent)
	go func() {
		defer close(events)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var ev ChangeEvent
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *HTTPClient) watchURL(table string) (string, error) {
	u, err := url.Parse(c.collectionURL(table) + "/watch")
	if err != nil {
		return "", fmt.Errorf("invalid watch URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
