package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shiftline/notifier/models"
)

// HTTPFeedAPI talks to the notification REST surface with a Bearer token.
type HTTPFeedAPI struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPFeedAPI(baseURL, token string) *HTTPFeedAPI {
	return &HTTPFeedAPI{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

// envelope matches the server's JSONResponse shape.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *HTTPFeedAPI) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s (HTTP %d)", method, path, env.Message, resp.StatusCode)
	}

	return json.Unmarshal(env.Data, out)
}

func (a *HTTPFeedAPI) FetchSnapshot(ctx context.Context, limit, offset int) (*Snapshot, error) {
	var snap Snapshot
	path := fmt.Sprintf("/notifications/me?limit=%d&offset=%d", limit, offset)
	if err := a.do(ctx, http.MethodGet, path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *HTTPFeedAPI) MarkRead(ctx context.Context, id uint) (*models.FeedItem, error) {
	var item models.FeedItem
	path := fmt.Sprintf("/notifications/%d/read", id)
	if err := a.do(ctx, http.MethodPatch, path, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
