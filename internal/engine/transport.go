package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// maxResponseBody caps how much of a response body the transport buffers.
const maxResponseBody = 10 << 20

// defaultUserAgent identifies requests whose session carries no
// user-agent of its own, instead of leaking the Go http client default.
const defaultUserAgent = "sessiond/1.0"

// HTTPTransport executes requests over real HTTP. Clients are built per
// proxy URL and reused, so every session bound to the same profile
// shares one connection pool.
type HTTPTransport struct {
	mu      sync.Mutex
	clients map[string]*http.Client
	direct  *http.Client
}

// NewHTTPTransport creates a transport that dials directly or through
// the proxy a request carries.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		clients: make(map[string]*http.Client),
		direct:  &http.Client{},
	}
}

func (t *HTTPTransport) client(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return t.direct, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[proxyURL]; ok {
		return c, nil
	}
	c, err := sesslib.NewClientForProfile(&sesslib.Profile{
		Proxy: &sesslib.Proxy{URL: proxyURL},
	})
	if err != nil {
		return nil, err
	}
	t.clients[proxyURL] = c
	return c, nil
}

// Send implements the Transport contract: it performs the exchange and
// converts received Set-Cookie headers into structured cookies.
func (t *HTTPTransport) Send(ctx context.Context, r *sesslib.Request) (*sesslib.Response, error) {
	client, err := t.client(r.Proxy)
	if err != nil {
		return nil, fmt.Errorf("building client for %q: %w", r.Proxy, err)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", r.URL, err)
	}
	r.Headers.InitOrUpdate(sesslib.UserAgentKey, defaultUserAgent)
	r.Headers.Set(req.Header)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &sesslib.Response{
		Request:    r,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Cookies:    convertCookies(resp.Cookies(), req.URL),
	}, nil
}

// convertCookies maps net/http cookies to jar cookies, defaulting the
// domain to the request host so domainless Set-Cookie headers still key
// correctly.
func convertCookies(in []*http.Cookie, reqURL *url.URL) []sesslib.Cookie {
	out := make([]sesslib.Cookie, 0, len(in))
	for _, c := range in {
		domain := c.Domain
		if domain == "" && reqURL != nil {
			domain = reqURL.Hostname()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, sesslib.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Expiry:   c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}
