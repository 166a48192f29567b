package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/common"
	"github.com/dmitrijs2005/innerwell/internal/logging"
	"github.com/google/uuid"
)

const (
	contentTypeJSON = "application/json"

	DefaultTimeout        = 10 * time.Second
	DefaultRefreshTimeout = 5 * time.Second

	refreshPath = "/api/users/token/refresh/"
)

// TokenSource is the part of the token store the client needs.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	Set(ctx context.Context, access, refresh string) error
	Remove(ctx context.Context) error
}

// Options configure a Client. Zero timeouts fall back to the defaults.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshTimeout time.Duration

	// HTTPClient overrides the underlying transport; its Timeout is replaced
	// by Options.Timeout.
	HTTPClient *http.Client
}

// Client is the single entry point for backend calls. It attaches the
// bearer token, refreshes it once on 401 and replays the request.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	router Router
	logger logging.Logger
	coord  *Coordinator

	mu             sync.Mutex
	sessionEndedFn []func()
}

func New(opts Options, tokens TokenSource, router Router, logger logging.Logger) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	hc.Timeout = opts.Timeout

	if logger == nil {
		logger = logging.Nop()
	}

	c := &Client{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		http:   hc,
		tokens: tokens,
		router: router,
		logger: logger.With("component", "http"),
	}
	c.coord = NewCoordinator(c.refreshTokens, c.endSession, opts.RefreshTimeout, logger)
	return c, nil
}

// Coordinator exposes the refresh state machine, mostly for inspection.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// OnSessionEnded registers fn to run after a failed refresh removed the
// stored tokens.
func (c *Client) OnSessionEnded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionEndedFn = append(c.sessionEndedFn, fn)
}

// Do sends req. A 401 triggers at most one refresh-and-replay; any other
// non-2xx status is returned as *APIError together with the response.
// Requests sent from a public route carry no token, so their 401 is returned
// as is and never consumes the stored refresh token.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	token, public, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized || req.retried || public {
		return resp, c.checkStatus(resp)
	}

	req.retried = true

	fresh, err := c.rotatedSince(ctx, token)
	if err != nil {
		return nil, err
	}
	if fresh == "" {
		fresh, err = c.coord.Await(ctx)
		if err != nil {
			// keep the original 401 reachable, its message is often the
			// only useful one (e.g. bad credentials)
			return resp, fmt.Errorf("%w: %w", err, c.checkStatus(resp))
		}
	}

	// the user may have left the protected area while the refresh ran
	if c.onPublicRoute() {
		fresh = ""
	}

	resp, err = c.send(ctx, req, fresh)
	if err != nil {
		return nil, err
	}
	return resp, c.checkStatus(resp)
}

// rotatedSince returns the stored access token when a refresh cycle that
// finished while the request was in flight already replaced sent.
func (c *Client) rotatedSince(ctx context.Context, sent string) (string, error) {
	if sent == "" {
		return "", nil
	}
	current, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if current == sent {
		return "", nil
	}
	return current, nil
}

func (c *Client) checkStatus(resp *Response) error {
	if resp.OK() {
		return nil
	}
	return newAPIError(resp.Status, resp.Body, resp.RequestID)
}

// send performs one HTTP exchange. token is attached as a bearer credential
// when non-empty.
func (c *Client) send(ctx context.Context, req *Request, token string) (*Response, error) {
	target := c.base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", req.Method, req.Path, err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	hr.Header.Set("Accept", contentTypeJSON)
	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = contentTypeJSON
		}
		hr.Header.Set("Content-Type", ct)
	}
	if token != "" {
		hr.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	rid := uuid.NewString()
	hr.Header.Set(common.RequestIDHeaderName, rid)

	start := time.Now()
	hresp, err := c.http.Do(hr)
	if err != nil {
		c.logger.Warn(ctx, "request failed",
			"method", req.Method, "path", req.Path, "request_id", rid, "dur", time.Since(start), "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.Path, ErrUnavailable, err)
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w: %w", req.Method, req.Path, ErrUnavailable, err)
	}

	c.logger.Debug(ctx, "request",
		"method", req.Method, "path", req.Path, "status", hresp.StatusCode,
		"dur", time.Since(start), "request_id", rid, "retried", req.retried)

	return &Response{Status: hresp.StatusCode, Header: hresp.Header, Body: data, RequestID: rid}, nil
}

func (c *Client) notifySessionEnded() {
	c.mu.Lock()
	fns := append([]func(){}, c.sessionEndedFn...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// IsTransient reports errors worth retrying by the user: transport failures
// and 5xx answers.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
