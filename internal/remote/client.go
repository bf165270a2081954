// Package remote implements the HTTP client for the note persistence API.
//
// The API is a conventional authenticated CRUD service with batch variants
// for the sync executor. Batch calls deliver per-item outcomes; a transport
// or server-level failure is returned as an error and the caller decides how
// to degrade.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/scribepad/scribe/internal/auth"
)

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote API error %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request is pointless.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client talks to the remote note API. All calls attach the current bearer
// token from the token provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenProvider
	logger     *log.Logger
}

// NewClient creates a client for the API rooted at baseURL.
// If logger is nil, a default logger writing to stderr is used.
func NewClient(baseURL string, tokens auth.TokenProvider, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		logger:     logger,
	}
}

// do performs one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// GetAll fetches every note owned by the current user.
func (c *Client) GetAll(ctx context.Context) ([]RemoteNote, error) {
	var notes []RemoteNote
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// Create creates a single note remotely.
func (c *Client) Create(ctx context.Context, req NoteCreateRequest) (*NoteResponse, error) {
	var resp NoteResponse
	if err := c.do(ctx, http.MethodPost, "/api/notes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update updates a single note remotely.
func (c *Client) Update(ctx context.Context, req NoteUpdateRequest) (*NoteResponse, error) {
	var resp NoteResponse
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/notes/%d", req.ID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete deletes a single note remotely.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/notes/%d", id), nil, nil)
}

// BatchCreate creates many notes in one call.
func (c *Client) BatchCreate(ctx context.Context, reqs []NoteCreateRequest) (*BatchResult, error) {
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/notes/batch/create", reqs, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchUpdate updates many notes in one call.
func (c *Client) BatchUpdate(ctx context.Context, reqs []NoteUpdateRequest) (*BatchResult, error) {
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/notes/batch/update", reqs, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchDelete deletes many notes in one call.
func (c *Client) BatchDelete(ctx context.Context, reqs []NoteDeleteRequest) (*BatchResult, error) {
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/notes/batch/delete", reqs, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHealth probes the service's liveness endpoint. A nil error means the
// remote service is reachable.
func (c *Client) GetHealth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}
