package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrUnexpectedStatus is returned when the service answers with an
// unexpected HTTP status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// apiClient talks to the calibration HTTP API.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes the response into out when the status
// matches want.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, want int) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

func (c *apiClient) seedItem(ctx context.Context, ownerID string, t taste) error {
	body := map[string]any{
		"owner_id": ownerID,
		"item_id":  t.ID,
		"title":    t.Title,
		"rating":   t.Score,
	}
	return c.do(ctx, http.MethodPut, "/items", body, nil, http.StatusOK)
}

func (c *apiClient) items(ctx context.Context, ownerID string) ([]Item, error) {
	var out []Item
	err := c.do(ctx, http.MethodGet, "/items?owner_id="+url.QueryEscape(ownerID), nil, &out, http.StatusOK)
	return out, err
}

func (c *apiClient) startSession(ctx context.Context, ownerID string, t taste, emotion string) (Session, error) {
	body := map[string]string{
		"owner_id": ownerID,
		"item_id":  t.ID,
		"title":    t.Title,
		"emotion":  emotion,
	}
	var out Session
	err := c.do(ctx, http.MethodPost, "/sessions", body, &out, http.StatusCreated)
	return out, err
}

func (c *apiClient) submitOutcome(ctx context.Context, sessionID string, round int, outcome string) (outcomeResponse, error) {
	body := map[string]any{"round": round, "outcome": outcome}
	var out outcomeResponse
	err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/outcome", body, &out, http.StatusOK)
	return out, err
}
