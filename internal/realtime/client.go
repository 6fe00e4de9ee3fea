// Package realtime mirrors committed rows to an external PostgREST-style
// store (for example Supabase) so that subscribed clients see changes live.
//
// The local database stays authoritative; the mirror is best-effort.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/config"
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync %s %s failed: HTTP %d", e.Method, e.Path, e.StatusCode)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

// NewClient creates a client for the REST endpoint at cfg.URL, e.g.
// https://project.supabase.co/rest/v1.
func NewClient(cfg config.Sync) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
	}
}

// Upsert inserts row into table, merging with an existing row that has the
// same primary key.
func (c *Client) Upsert(ctx context.Context, table string, row any) error {
	return c.do(ctx, http.MethodPost, table, row, "resolution=merge-duplicates,return=minimal")
}

// Patch applies fields to the row of table whose id equals id.
func (c *Client) Patch(ctx context.Context, table string, id uuid.UUID, fields any) error {
	path := table + "?id=eq." + url.QueryEscape(id.String())
	return c.do(ctx, http.MethodPatch, path, fields, "return=minimal")
}

func (c *Client) do(ctx context.Context, method, path string, body any, prefer string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
