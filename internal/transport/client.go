// Package transport is the single request path to the conduct backend. It attaches
// the bearer token, speaks the JSON envelope, and maps failures to apperr kinds.
// It never retries and never refreshes.
package transport

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

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/model"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// CredentialSource supplies the credential for authenticated requests.
type CredentialSource interface {
	Load(ctx context.Context) (*model.Credential, error)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous sends the request without a bearer token.
	Anonymous bool
	// Credential, when set, is used instead of the CredentialSource.
	Credential *model.Credential
	// BearerToken, when set, is sent verbatim (the refresh call sends the refresh token).
	BearerToken string
}

// Client performs JSON requests against the backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCredentialSource sets where the access token is read from when a request does
// not carry its own credential.
func WithCredentialSource(src CredentialSource) Option {
	return func(c *Client) { c.creds = src }
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req and decodes the envelope's data into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	token, err := c.bearer(ctx, req)
	if err != nil {
		return err
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return apperr.Wrap(apperr.KindInvalidRequest, "could not encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, "could not build request", err)
	}

	requestID := uuid.New().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "br")
	httpReq.Header.Set("X-Request-ID", requestID)
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debug().Err(err).
			Str("method", req.Method).
			Str("path", path).
			Str("request_id", requestID).
			Msg("Request failed")
		return apperr.Wrap(apperr.KindServiceUnavailable, "the server could not be reached", err)
	}
	defer resp.Body.Close()

	var src io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		src = brotli.NewReader(resp.Body)
	}
	body, err := io.ReadAll(io.LimitReader(src, maxBodyBytes))

	c.log.Debug().
		Str("method", req.Method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("Request completed")

	if err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "could not read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "unexpected response from server", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "unexpected response from server", fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func (c *Client) bearer(ctx context.Context, req Request) (string, error) {
	if req.Anonymous {
		return "", nil
	}
	if req.BearerToken != "" {
		return req.BearerToken, nil
	}
	if req.Credential != nil && req.Credential.AccessToken != "" {
		return req.Credential.AccessToken, nil
	}
	if c.creds != nil {
		cred, err := c.creds.Load(ctx)
		if err != nil {
			return "", err
		}
		if cred != nil && cred.AccessToken != "" {
			return cred.AccessToken, nil
		}
	}
	return "", apperr.New(apperr.KindUnauthenticated, "you are not signed in")
}
