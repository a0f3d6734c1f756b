package gist

import (
	"bytes"
	"context"
	"cryptodash/config"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	apiBaseURL      = "https://api.github.com"
	gistDescription = "cryptodash alert state"
)

// ErrNotConfigured is returned when no GitHub token is set.
var ErrNotConfigured = errors.New("gist client not configured")

// ErrNotFound is returned when the gist or the file inside it does not exist.
var ErrNotFound = errors.New("gist file not found")

// Storage is the interface for gist storage operations.
// This allows for easy mocking in tests.
type Storage interface {
	IsEnabled() bool
	LoadJSON(ctx context.Context, filename string, dest any) error
	SaveJSON(ctx context.Context, filename string, data any) error
	GetGistID() string
}

// Ensure Client implements Storage interface
var _ Storage = (*Client)(nil)

// Client is a GitHub Gist API client for storing JSON state files.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	apiBase    string
	token      string

	mu     sync.Mutex
	gistID string // If set, updates this gist; otherwise the first save creates one
}

// GistFile represents a file in a gist.
type GistFile struct {
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content"`
}

// Gist represents a GitHub gist.
type Gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]GistFile `json:"files"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type gistRequest struct {
	Description string              `json:"description,omitempty"`
	Public      bool                `json:"public"`
	Files       map[string]GistFile `json:"files"`
}

// NewClient creates a new GitHub Gist client.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Gist.Token == "" {
		logger.Warn("GITHUB_TOKEN not set, alert state will not be persisted")
	}

	return &Client{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiBase: apiBaseURL,
		token:   cfg.Gist.Token,
		gistID:  cfg.Gist.GistID,
	}
}

// IsEnabled returns true if the client has a token.
func (c *Client) IsEnabled() bool {
	return c.token != ""
}

// GetGistID returns the current gist ID.
func (c *Client) GetGistID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gistID
}

// SaveJSON writes data as indented JSON to filename. Without a gist ID a new
// secret gist is created and its ID kept for later saves.
func (c *Client) SaveJSON(ctx context.Context, filename string, data any) error {
	if !c.IsEnabled() {
		return ErrNotConfigured
	}

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	body, err := json.Marshal(gistRequest{
		Description: gistDescription,
		Public:      false,
		Files: map[string]GistFile{
			filename: {Content: string(content)},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	gistID := c.GetGistID()
	method, url := http.MethodPost, c.apiBase+"/gists"
	if gistID != "" {
		method, url = http.MethodPatch, fmt.Sprintf("%s/gists/%s", c.apiBase, gistID)
	}

	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error status=%d body=%s", resp.StatusCode, string(msg))
	}

	if gistID == "" {
		var created Gist
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		c.mu.Lock()
		c.gistID = created.ID
		c.mu.Unlock()
		c.logger.Info("created new gist", zap.String("id", created.ID))
	}

	c.logger.Debug("saved to gist",
		zap.String("filename", filename),
		zap.Int("bytes", len(content)),
	)
	return nil
}

// LoadJSON reads filename from the gist into dest.
func (c *Client) LoadJSON(ctx context.Context, filename string, dest any) error {
	if !c.IsEnabled() {
		return ErrNotConfigured
	}

	gistID := c.GetGistID()
	if gistID == "" {
		return ErrNotFound
	}

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/gists/%s", c.apiBase, gistID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error status=%d body=%s", resp.StatusCode, string(msg))
	}

	var g Gist
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	file, ok := g.Files[filename]
	if !ok || file.Content == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	if err := json.Unmarshal([]byte(file.Content), dest); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}

	c.logger.Debug("loaded from gist",
		zap.String("filename", filename),
		zap.Int("bytes", len(file.Content)),
	)
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}
