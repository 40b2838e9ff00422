package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	// CSRFCookieName is the cookie Django keeps its CSRF secret in.
	CSRFCookieName = "csrftoken"
	// SessionCookieName is Django's session cookie.
	SessionCookieName = "sessionid"
	maxErrorBody      = 200
)

// Config is what New needs to talk to one server.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Jar               http.CookieJar
	Logger            *zap.Logger
}

// Client speaks the event app's JSON endpoints. It is safe for concurrent use
// by the pollers and the UI.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	mu        sync.Mutex
	formToken string
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Jar == nil {
		if cfg.Jar, err = cookiejar.New(nil); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     cfg.Jar,
			// redirects are answers here: login bounces and toggle's referer hop
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: limiter,
		log:     cfg.Logger,
	}, nil
}

// BaseURL returns the server root the client was built for.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Resolve turns a server path (or an absolute URL) into a full URL string.
func (c *Client) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

// RememberFormToken keeps the hidden csrfmiddlewaretoken of the last fetched
// fragment as a fallback for when the csrftoken cookie is absent.
func (c *Client) RememberFormToken(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.formToken = token
	c.mu.Unlock()
}

// CSRFToken prefers the csrftoken cookie and falls back to the last form token.
func (c *Client) CSRFToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == CSRFCookieName && cookie.Value != "" {
			return cookie.Value
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.formToken
}

// SetCookie seeds the jar, e.g. with a sessionid copied from a browser.
func (c *Client) SetCookie(name, value string) {
	if value == "" {
		return
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// Cookies returns what the jar would send to the server.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	mutating    bool
	xhr         bool
}

func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: req.op, Err: err}
	}
	endpoint, err := c.Resolve(req.path)
	if err != nil {
		return nil, &Error{Op: req.op, Err: err}
	}
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, req.body)
	if err != nil {
		return nil, &Error{Op: req.op, Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.xhr {
		httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	if req.mutating {
		token := c.CSRFToken()
		if token == "" {
			return nil, &Error{Op: req.op, Err: ErrCSRF}
		}
		httpReq.Header.Set("X-CSRFToken", token)
		// django checks the referer on https posts
		httpReq.Header.Set("Referer", c.base.String()+"/")
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("op", req.op),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &Error{Op: req.op, Err: err}
	}
	c.log.Debug("request done",
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("took", time.Since(started)))
	return resp, nil
}

// doJSON runs req and decodes a JSON body into out. A redirect that is not a
// login bounce counts as success with nothing decoded.
func (c *Client) doJSON(ctx context.Context, req request, out interface{}) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(req.op, resp); err != nil {
		return err
	}
	if isRedirect(resp.StatusCode) || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := decodeBody(resp.Body, out); err != nil {
		return &Error{Op: req.op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// decodeBody reads fully in case the server sent a chunked body without a
// length header; an empty body leaves out untouched.
func decodeBody(body io.Reader, out interface{}) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload interface{}, xhr bool, out interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return c.doJSON(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(buf),
		contentType: "application/json",
		mutating:    true,
		xhr:         xhr,
	}, out)
}

func checkResponse(op string, resp *http.Response) error {
	status := resp.StatusCode
	if isRedirect(status) {
		if isLoginRedirect(resp.Header.Get("Location")) {
			return &Error{Op: op, Status: status, Err: ErrUnauthorized}
		}
		return nil
	}
	if status < 200 || status >= 300 {
		return statusError(op, status, readResponseError(resp.Body))
	}
	return nil
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func isLoginRedirect(location string) bool {
	if location == "" {
		return false
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(parsed.Path), "login")
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err == nil {
		for _, key := range []string{"error", "message", "status"} {
			if msg, ok := parsed[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "…"
	}
	return text
}
