// Package session builds HTTP clients bound to per-target proxies.
package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jigsaw-Code/outline-sdk/x/configurl"
)

// DefaultTimeout bounds every request made through a session.
const DefaultTimeout = 30 * time.Second

// defaultUserAgent impersonates a desktop browser; plenty of endpoints
// reject the Go default.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Option adjusts session construction.
type Option func(*Session)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// Session is an HTTP client routed through one proxy. Build one per target
// with the target's resolved proxy.
type Session struct {
	client    *http.Client
	proxy     string
	userAgent string
}

// New builds a session routed through proxy. Proxy URLs with http, https or
// socks5 schemes use the standard library transport; any other non-empty
// value is treated as an outline-sdk transport config (ss://, tls:, split:).
// An empty proxy yields a direct session.
func New(proxy string, opts ...Option) (*Session, error) {
	transport, err := buildTransport(proxy)
	if err != nil {
		return nil, err
	}
	s := &Session{
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		proxy:     proxy,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func buildTransport(proxy string) (*http.Transport, error) {
	if proxy == "" {
		return &http.Transport{}, nil
	}

	if u, err := url.Parse(proxy); err == nil {
		switch u.Scheme {
		case "http", "https", "socks5":
			return &http.Transport{Proxy: http.ProxyURL(u)}, nil
		}
	}

	dialer, err := configurl.NewDefaultConfigToDialer().NewStreamDialer(proxy)
	if err != nil {
		return nil, fmt.Errorf("could not create dialer: %w", err)
	}
	dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !strings.HasPrefix(network, "tcp") {
			return nil, fmt.Errorf("protocol not supported: %v", network)
		}
		return dialer.DialStream(ctx, addr)
	}
	return &http.Transport{DialContext: dialContext}, nil
}

// Do sends req, injecting the session User-Agent when the request does not
// carry its own.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return s.client.Do(req)
}

// Get issues a GET request through the session.
func (s *Session) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return s.Do(req)
}

// Client exposes the underlying HTTP client for callers that need it.
func (s *Session) Client() *http.Client {
	return s.client
}

// Proxy returns the proxy the session was built with.
func (s *Session) Proxy() string {
	return s.proxy
}
