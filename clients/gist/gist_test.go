package gist

import (
	"context"
	"cryptodash/config"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type state struct {
	Categories map[string]string `json:"categories"`
}

func newTestClient(serverURL, gistID string) *Client {
	return &Client{
		logger:     zap.NewNop(),
		httpClient: http.DefaultClient,
		apiBase:    serverURL,
		token:      "test-token",
		gistID:     gistID,
	}
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		Gist: config.GistConfig{
			Token:  "test-token",
			GistID: "test-gist-id",
		},
	}

	client := NewClient(nil, cfg)

	if client.logger == nil {
		t.Error("expected logger to be set")
	}
	if !client.IsEnabled() {
		t.Error("expected client to be enabled")
	}
	if client.GetGistID() != "test-gist-id" {
		t.Errorf("expected gistID 'test-gist-id', got '%s'", client.GetGistID())
	}
	if client.apiBase != apiBaseURL {
		t.Errorf("unexpected api base: %s", client.apiBase)
	}
}

func TestNewClient_NoToken(t *testing.T) {
	client := NewClient(zap.NewNop(), &config.Config{})

	if client.IsEnabled() {
		t.Error("expected client to be disabled without token")
	}
}

func TestSaveJSON_Disabled(t *testing.T) {
	client := NewClient(nil, &config.Config{})

	err := client.SaveJSON(context.Background(), "state.json", state{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSaveJSON_UpdateExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/gists/existing-id" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("missing or invalid authorization header")
		}
		if r.Header.Get("X-GitHub-Api-Version") != "2022-11-28" {
			t.Error("missing or invalid API version header")
		}

		var req gistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Description != gistDescription {
			t.Errorf("unexpected description: %s", req.Description)
		}
		if req.Public {
			t.Error("expected public to be false")
		}

		var got state
		if err := json.Unmarshal([]byte(req.Files["state.json"].Content), &got); err != nil {
			t.Errorf("file content is not json: %v", err)
		}
		if got.Categories["BTC"] != "Good" {
			t.Errorf("unexpected content: %+v", got)
		}

		json.NewEncoder(w).Encode(Gist{ID: "existing-id"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "existing-id")

	err := client.SaveJSON(context.Background(), "state.json", state{Categories: map[string]string{"BTC": "Good"}})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSaveJSON_CreateNew(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/gists" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Gist{ID: "new-gist-id"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")

	if err := client.SaveJSON(context.Background(), "state.json", state{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if client.GetGistID() != "new-gist-id" {
		t.Errorf("expected gistID to be updated to 'new-gist-id', got '%s'", client.GetGistID())
	}
}

func TestSaveJSON_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "existing-id")

	if err := client.SaveJSON(context.Background(), "state.json", state{}); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestLoadJSON_Disabled(t *testing.T) {
	client := NewClient(nil, &config.Config{})

	var dest state
	if err := client.LoadJSON(context.Background(), "state.json", &dest); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoadJSON_NoGistID(t *testing.T) {
	client := newTestClient("http://unused", "")

	var dest state
	if err := client.LoadJSON(context.Background(), "state.json", &dest); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/gists/gist-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Gist{
			ID: "gist-1",
			Files: map[string]GistFile{
				"state.json": {Filename: "state.json", Content: `{"categories":{"ETH":"Bad"}}`},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "gist-1")

	var dest state
	if err := client.LoadJSON(context.Background(), "state.json", &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Categories["ETH"] != "Bad" {
		t.Errorf("unexpected state: %+v", dest)
	}
}

func TestLoadJSON_MissingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Gist{ID: "gist-1", Files: map[string]GistFile{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "gist-1")

	var dest state
	if err := client.LoadJSON(context.Background(), "state.json", &dest); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadJSON_GistNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "gone")

	var dest state
	if err := client.LoadJSON(context.Background(), "state.json", &dest); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadJSON_InvalidContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Gist{
			ID:    "gist-1",
			Files: map[string]GistFile{"state.json": {Content: "not json"}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "gist-1")

	var dest state
	err := client.LoadJSON(context.Background(), "state.json", &dest)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}
