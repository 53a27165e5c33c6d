package sesslib

import (
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// ProxyConfig holds a parsed proxy address.
type ProxyConfig struct {
	Scheme   string
	Host     string
	Username string
	Password string
}

var supportedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// ParseProxyURL parses and validates a proxy URL string.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	if proxyURL == "" {
		return nil, ErrEmptyProxyURL
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, ErrInvalidProxyURL
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedSchemes[parsed.Scheme] {
		return nil, ErrUnsupportedScheme
	}
	cfg := &ProxyConfig{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
	}
	if parsed.User != nil {
		cfg.Username = parsed.User.Username()
		cfg.Password, _ = parsed.User.Password()
	}
	return cfg, nil
}

// NewTransport builds an http.RoundTripper dialing through the given
// proxy URL. SOCKS5 proxies go through golang.org/x/net/proxy; http and
// https proxies use the standard CONNECT path. An empty proxyURL yields
// a direct transport.
func NewTransport(proxyURL string) (http.RoundTripper, error) {
	if proxyURL == "" {
		return &http.Transport{}, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, ErrInvalidProxyURL
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedSchemes[parsed.Scheme] {
		return nil, ErrUnsupportedScheme
	}

	transport := &http.Transport{}
	if parsed.Scheme == "socks5" {
		var auth *proxy.Auth
		if parsed.User != nil {
			pass, _ := parsed.User.Password()
			auth = &proxy.Auth{
				User:     parsed.User.Username(),
				Password: pass,
			}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		transport.Dial = dialer.Dial
	} else {
		transport.Proxy = http.ProxyURL(parsed)
	}
	return transport, nil
}

// NewClientForProfile builds an http.Client routed through the
// profile's proxy, if any. Profiles without a proxy get a direct
// client.
func NewClientForProfile(p *Profile) (*http.Client, error) {
	var proxyURL string
	if p != nil && p.Proxy != nil {
		proxyURL = p.Proxy.URL
	}
	transport, err := NewTransport(proxyURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport}, nil
}
