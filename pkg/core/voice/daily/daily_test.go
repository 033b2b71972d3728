package daily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateRoom(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/rooms" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization=%q, want bearer key", got)
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		wantExp := start.Add(30 * time.Minute).Unix()
		if req.Properties.Exp != wantExp {
			t.Errorf("exp=%d, want %d", req.Properties.Exp, wantExp)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"url": "https://example.daily.co/room-abc"})
	}))
	defer srv.Close()

	c := NewWithClient("test-key", srv.Client()).
		WithBaseURL(srv.URL).
		WithRoomExpiry(30 * time.Minute)
	c.now = func() time.Time { return start }

	url, err := c.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if url != "https://example.daily.co/room-abc" {
		t.Errorf("url=%q, want the room url", url)
	}
}

func TestCreateRoom_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewWithClient("bad-key", srv.Client()).WithBaseURL(srv.URL)
	if _, err := c.CreateRoom(context.Background()); err == nil {
		t.Fatal("expected an error for non-200 response")
	}
}

func TestCreateRoom_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewWithClient("test-key", srv.Client()).WithBaseURL(srv.URL)
	if _, err := c.CreateRoom(context.Background()); err == nil {
		t.Fatal("expected an error when the response has no url")
	}
}
