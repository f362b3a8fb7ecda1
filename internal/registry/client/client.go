// Package client is a typed HTTP client for the registry API.
package client

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

	"mediashare/internal/registry/handler"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/httputil"
)

const defaultTimeout = 10 * time.Second

// Client calls a registry server. Write calls act as the token's owner.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAsset registers an asset owned by the caller.
func (c *Client) CreateAsset(ctx context.Context, assetID, title string) (*handler.AssetResponse, error) {
	var out handler.AssetResponse
	body := handler.CreateAssetRequest{AssetID: assetID, Title: title}
	if err := c.do(ctx, http.MethodPost, "/v1/assets", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer moves percentage points of the caller's stake in assetID to to.
func (c *Client) Transfer(ctx context.Context, assetID, to string, percentage int) (*handler.AssetResponse, error) {
	var out handler.AssetResponse
	body := handler.TransferRequest{AssetID: assetID, To: to, Percentage: &percentage}
	path := "/v1/assets/" + url.PathEscape(assetID) + "/transfers"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (*handler.AssetResponse, error) {
	var out handler.AssetResponse
	if err := c.do(ctx, http.MethodGet, "/v1/assets/"+url.PathEscape(assetID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAssets fetches one page. A zero limit uses the server default.
func (c *Client) ListAssets(ctx context.Context, cursor string, limit int) (*handler.AssetPageResponse, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/assets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out handler.AssetPageResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Holdings(ctx context.Context, ownerID string) (*handler.HoldingsResponse, error) {
	var out handler.HoldingsResponse
	path := "/v1/owners/" + url.PathEscape(ownerID) + "/holdings"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhoAmI returns the owner the server derives from the token.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var out handler.WhoAmIResponse
	if err := c.do(ctx, http.MethodGet, "/v1/me", nil, &out); err != nil {
		return "", err
	}
	return out.OwnerID, nil
}

// do sends the request and decodes a 2xx body into out. Error responses come
// back as *dErrors.Error carrying the server's code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "registry unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var e httputil.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e); err != nil || e.Error == "" {
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("registry returned %s", resp.Status))
	}
	msg := e.ErrorDescription
	if msg == "" {
		msg = fmt.Sprintf("registry returned %s", resp.Status)
	}
	return dErrors.New(dErrors.Code(e.Error), msg)
}
