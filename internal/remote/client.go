// Package remote implements the HTTP client for the remote note store.
//
// The client is a thin request layer: every call either succeeds or returns
// an *apperr.RemoteError. It never retries and never touches local state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
)

// Operation names carried by RemoteError.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpListAll = "list"
)

// Client talks to the remote /notes resource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for baseURL. timeout bounds every call; zero
// disables the per-call deadline.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// BaseURL returns the remote base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// payload is the note body sent to the remote; sync metadata stays local.
type payload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toPayload(n models.Note) payload {
	return payload{ID: n.ID, Title: n.Title, Content: n.Content, UpdatedAt: n.UpdatedAt}
}

// Create issues POST /notes and returns the remote representation.
func (c *Client) Create(ctx context.Context, n models.Note) (models.Note, error) {
	var out models.Note
	err := c.doJSON(ctx, OpCreate, http.MethodPost, "/notes", toPayload(n), &out)
	return out, err
}

// Update issues PUT /notes/{id} and returns the remote representation.
func (c *Client) Update(ctx context.Context, id string, n models.Note) (models.Note, error) {
	var out models.Note
	err := c.doJSON(ctx, OpUpdate, http.MethodPut, "/notes/"+url.PathEscape(id), toPayload(n), &out)
	return out, err
}

// Delete issues DELETE /notes/{id}.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, OpDelete, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}

// ListAll issues GET /notes.
func (c *Client) ListAll(ctx context.Context) ([]models.Note, error) {
	out := []models.Note{}
	err := c.doJSON(ctx, OpListAll, http.MethodGet, "/notes", nil, &out)
	return out, err
}

// Ping reports whether the remote answers GET /notes with a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, OpListAll, http.MethodGet, "/notes", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &apperr.RemoteError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &apperr.RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("deadline exceeded: %w", err)
		}
		return &apperr.RemoteError{Op: op, Err: err}
	}
	data, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &apperr.RemoteError{Op: op, Err: fmt.Errorf("read body: %w", readErr)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apperr.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(statusDetail(resp.Status, data)),
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func statusDetail(status string, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return status
}
