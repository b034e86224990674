// Package client talks to the universes HTTP API the way the task and
// universe cards do: multipart form posts carrying a CSRF header, JSON
// envelopes back, redirects treated as a lost session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// statusSessionExpired is what the server answers on a stale CSRF token.
const statusSessionExpired = 419

// Envelope is the decoded body of a successful response.
type Envelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Errors  map[string][]string        `json:"errors"`
	Data    map[string]json.RawMessage `json:"-"`
}

// Decode unmarshals one top-level field of the envelope into dst.
func (e *Envelope) Decode(key string, dst any) error {
	raw, ok := e.Data[key]
	if !ok {
		return fmt.Errorf("response has no %q field", key)
	}
	return json.Unmarshal(raw, dst)
}

// Client calls the API at a base URL.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its redirect policy is
// overridden so redirects reach the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL, csrfToken string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   csrfToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// SetToken replaces the CSRF token, e.g. after fetching a fresh one.
func (c *Client) SetToken(token string) { c.token = token }

// FetchToken asks the server for its CSRF token and keeps it.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	env, err := c.Get(ctx, "/csrf-token")
	if err != nil {
		return "", err
	}
	var token string
	if err := env.Decode("token", &token); err != nil {
		return "", &Error{Kind: KindNotJSON, Err: err}
	}
	c.token = token
	return token, nil
}

func (c *Client) Get(ctx context.Context, path string) (*Envelope, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *Client) Delete(ctx context.Context, path string) (*Envelope, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// PostForm sends fields as multipart/form-data. Keys are written in sorted
// order so requests are reproducible.
func (c *Client) PostForm(ctx context.Context, path string, fields url.Values) (*Envelope, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, fmt.Errorf("encode form: %w", err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, &body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// PostJSON sends payload as a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-CSRF-TOKEN", c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send issues exactly one request and classifies the outcome.
func (c *Client) send(req *http.Request) (*Envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if (resp.StatusCode >= 300 && resp.StatusCode < 400) || resp.StatusCode == statusSessionExpired {
		return nil, &Error{Kind: KindSession, Status: resp.StatusCode}
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ct != "application/json" {
		return nil, &Error{Kind: KindNotJSON, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Status: resp.StatusCode, Err: err}
	}
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, &Error{Kind: KindNotJSON, Status: resp.StatusCode, Err: err}
	}
	if err := json.Unmarshal(data, &env.Data); err != nil {
		return nil, &Error{Kind: KindNotJSON, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnprocessableEntity && len(env.Errors) > 0 {
		return nil, &Error{Kind: KindValidation, Status: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	return env, nil
}
