// Package daily provisions temporary Daily.co rooms for voice sessions.
package daily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.daily.co"

// DefaultRoomExpiry is how long a provisioned room stays valid.
const DefaultRoomExpiry = time.Hour

// Client talks to the Daily.co REST API.
type Client struct {
	apiKey     string
	baseURL    string
	roomExpiry time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Daily client.
func New(apiKey string) *Client {
	return NewWithClient(apiKey, &http.Client{})
}

// NewWithClient creates a Daily client with a custom HTTP client.
func NewWithClient(apiKey string, client *http.Client) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		roomExpiry: DefaultRoomExpiry,
		httpClient: client,
		now:        time.Now,
	}
}

// WithBaseURL overrides the API base URL (for testing or proxying).
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = url
	}
	return c
}

// WithRoomExpiry overrides how long created rooms stay valid.
func (c *Client) WithRoomExpiry(d time.Duration) *Client {
	if d > 0 {
		c.roomExpiry = d
	}
	return c
}

type createRoomRequest struct {
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp int64 `json:"exp"`
}

type createRoomResponse struct {
	URL string `json:"url"`
}

// CreateRoom provisions a temporary room and returns its URL.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	reqBody := createRoomRequest{
		Properties: roomProperties{
			Exp: c.now().Add(c.roomExpiry).Unix(),
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("daily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("daily error %d: %s", resp.StatusCode, string(errBody))
	}

	var room createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if room.URL == "" {
		return "", fmt.Errorf("daily response missing room url")
	}
	return room.URL, nil
}
