// Package remote adapts the registry HTTP API to the registry.Service
// interface so CLI tools and other services consume a remote registry
// through the same contract the in-process implementations satisfy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/studioKjm/hip-registry/internal/eventlog"
	"github.com/studioKjm/hip-registry/internal/registry"
)

// Client talks to a registry API server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

var _ registry.Service = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate obtains a bearer token for address and keeps it for
// subsequent requests. adminSecret is required only when address is the
// configured registry admin.
func (c *Client) Authenticate(ctx context.Context, address, adminSecret string) error {
	payload := map[string]string{"address": address}
	if adminSecret != "" {
		payload["admin_secret"] = adminSecret
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token", payload, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Register creates an identity owned by the authenticated caller. The
// server derives the owner from the bearer token, so owner must match the
// address the client authenticated as.
func (c *Client) Register(ctx context.Context, hipID, owner, contentPointer string) (registry.Identity, error) {
	var rec registry.Identity
	err := c.do(ctx, http.MethodPost, "/v1/identities", map[string]string{
		"hip_id":          hipID,
		"content_pointer": contentPointer,
	}, &rec)
	if err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}

func (c *Client) UpdateContent(ctx context.Context, hipID, caller, pointer string) (registry.Identity, error) {
	var rec registry.Identity
	err := c.do(ctx, http.MethodPut, "/v1/identities/"+url.PathEscape(hipID)+"/content", map[string]string{
		"content_pointer": pointer,
	}, &rec)
	if err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}

func (c *Client) SetVerified(ctx context.Context, hipID, caller string, verified bool) (registry.Identity, error) {
	var rec registry.Identity
	err := c.do(ctx, http.MethodPut, "/v1/identities/"+url.PathEscape(hipID)+"/verification", map[string]bool{
		"is_verified": verified,
	}, &rec)
	if err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}

func (c *Client) SetReputation(ctx context.Context, hipID, caller string, level int) (registry.Identity, error) {
	var rec registry.Identity
	err := c.do(ctx, http.MethodPut, "/v1/identities/"+url.PathEscape(hipID)+"/reputation", map[string]int{
		"level": level,
	}, &rec)
	if err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}

func (c *Client) RecordInteraction(ctx context.Context, hipID, caller string) (uint64, error) {
	var resp struct {
		TotalInteractions uint64 `json:"total_interactions"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/identities/"+url.PathEscape(hipID)+"/interactions", nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.TotalInteractions, nil
}

func (c *Client) Get(ctx context.Context, hipID string) (registry.Identity, error) {
	var rec registry.Identity
	if err := c.do(ctx, http.MethodGet, "/v1/identities/"+url.PathEscape(hipID), nil, &rec); err != nil {
		return registry.Identity{}, err
	}
	return rec, nil
}

func (c *Client) GetByOwner(ctx context.Context, owner string) (string, error) {
	var resp struct {
		HipID string `json:"hip_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/owners/"+url.PathEscape(owner), nil, &resp); err != nil {
		return "", err
	}
	return resp.HipID, nil
}

func (c *Client) GetByIndex(ctx context.Context, index int) (string, error) {
	var resp struct {
		HipID string `json:"hip_id"`
	}
	path := "/v1/identities?index=" + strconv.Itoa(index)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.HipID, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var resp struct {
		Total int `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/identities?limit=1", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (c *Client) ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]eventlog.Event, uint64, error) {
	if limit <= 0 {
		limit = 100
	}
	var resp struct {
		Items     []eventlog.Event `json:"items"`
		NextAfter uint64           `json:"next_after"`
	}
	path := fmt.Sprintf("/v1/events?limit=%d&after=%d", limit, afterSeq)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Items, resp.NextAfter, nil
}

// Helpers -----------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError maps API error responses back onto the registry sentinels so
// errors.Is works the same against a remote registry as a local one.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	for _, sentinel := range []error{
		registry.ErrNotFound,
		registry.ErrDuplicateKey,
		registry.ErrOwnerRegistered,
		registry.ErrNotOwner,
		registry.ErrUnauthorized,
		registry.ErrReputationRange,
		registry.ErrIndexOutOfRange,
		registry.ErrInvalidInput,
	} {
		if msg == sentinel.Error() {
			return sentinel
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return registry.ErrNotFound
	case http.StatusConflict:
		return registry.ErrDuplicateKey
	case http.StatusForbidden:
		return registry.ErrUnauthorized
	case http.StatusBadRequest:
		return registry.ErrInvalidInput
	}
	return fmt.Errorf("registry api: %s: %s", resp.Status, msg)
}
