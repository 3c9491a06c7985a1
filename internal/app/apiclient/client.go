// Package apiclient is the HTTP binding of storage.Storage. It talks to the
// document API under /private/<collection> and handles login and
// registration under /public/auth.
//
// A Client is the session object: it is built once with a token source and
// passed to everything that needs to reach the API.
package apiclient

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

	"github.com/dalemusser/inventoryhub/internal/app/storage"
	"github.com/dalemusser/inventoryhub/internal/app/system/ids"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.uber.org/zap"
)

// ErrUnauthorized is wrapped by transport errors for 401 responses.
var ErrUnauthorized = errors.New("not signed in or session expired")

const maxResponseBytes = 4 << 20

// TokenSource yields the bearer token for private requests. An empty token
// sends the request without an Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client is an HTTP client for the document API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		log:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ storage.Storage = (*Client)(nil)

type createResponse struct {
	InsertedID ids.Identifier `json:"inserted_id"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func collectionPath(collection string, id ...string) string {
	p := "/private/" + url.PathEscape(collection)
	for _, part := range id {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Get loads one document into out.
func (c *Client) Get(ctx context.Context, collection, id string, out any) error {
	return c.do(ctx, http.MethodGet, collectionPath(collection, id), nil, nil, out)
}

// Create posts doc and returns the new document's canonical id.
func (c *Client) Create(ctx context.Context, collection string, doc any) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, collectionPath(collection), nil, doc, &resp); err != nil {
		return "", err
	}
	id, ok := ids.Normalize(resp.InsertedID)
	if !ok || id == "" {
		return "", &storage.TransportError{Op: "POST " + collectionPath(collection), Message: "response carried no inserted id"}
	}
	return id, nil
}

// Update sends patch as a partial update.
func (c *Client) Update(ctx context.Context, collection, id string, patch any) error {
	return c.do(ctx, http.MethodPut, collectionPath(collection, id), nil, patch, nil)
}

// Delete removes one document.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, collectionPath(collection, id), nil, nil, nil)
}

// Query lists documents matching filter into out, which must point to a
// slice.
func (c *Client) Query(ctx context.Context, collection string, filter storage.Filter, out any) error {
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, v)
	}
	return c.do(ctx, http.MethodGet, collectionPath(collection), q, nil, out)
}

// Session is what login and registration return.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, mail, password string) (Session, error) {
	var s Session
	body := map[string]string{"mail": mail, "password": password}
	err := c.do(ctx, http.MethodPost, "/public/auth/login", nil, body, &s)
	return s, err
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, name, mail, password string) (Session, error) {
	var s Session
	body := map[string]string{"name": name, "mail": mail, "password": password}
	err := c.do(ctx, http.MethodPost, "/public/auth/register", nil, body, &s)
	return s, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil && strings.HasPrefix(path, "/private/") {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s: read token: %w", op, err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("api request failed", zap.String("op", op), zap.Error(err))
		return &storage.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &storage.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.log.Debug("api request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &storage.TransportError{Op: op, Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

func statusError(op string, status int, data []byte) error {
	var eb errorBody
	msg := ""
	if json.Unmarshal(data, &eb) == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	te := &storage.TransportError{Op: op, Status: status, Message: msg}
	switch status {
	case http.StatusNotFound:
		te.Err = storage.ErrNotFound
	case http.StatusConflict:
		te.Err = storage.ErrConflict
	case http.StatusUnauthorized:
		te.Err = ErrUnauthorized
	}
	return te
}
