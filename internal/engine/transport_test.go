package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crawlkit/sessiond/pkg/sesslib"
)

func TestHTTPTransport_SendCollectsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "agent-a" {
			t.Errorf("expected prepared user agent, got %q", got)
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	req := &sesslib.Request{URL: srv.URL, Session: "s1"}
	req.Headers.InitOrUpdate(sesslib.UserAgentKey, "agent-a")

	resp, err := tr.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if len(resp.Cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(resp.Cookies))
	}
	c := resp.Cookies[0]
	if c.Name != "sid" || c.Value != "abc" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if c.Domain == "" {
		t.Fatal("expected cookie domain defaulted to request host")
	}
}

func TestHTTPTransport_UserAgentDefaulting(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()
	tr := NewHTTPTransport()

	// No user-agent prepared: the transport supplies its own.
	if _, err := tr.Send(context.Background(), &sesslib.Request{URL: srv.URL}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != defaultUserAgent {
		t.Errorf("user-agent = %q, want %q", got, defaultUserAgent)
	}

	// A prepared user-agent, profile-assigned or caller-set, wins.
	req := &sesslib.Request{URL: srv.URL}
	req.Headers.Update(sesslib.UserAgentKey, "agent-b")
	if _, err := tr.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "agent-b" {
		t.Errorf("user-agent = %q, want agent-b", got)
	}
}

func TestHTTPTransport_SendMethodDefaultsToGet(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	if _, err := tr.Send(context.Background(), &sesslib.Request{URL: srv.URL}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if method != http.MethodGet {
		t.Fatalf("expected GET, got %q", method)
	}
}

func TestHTTPTransport_SendError(t *testing.T) {
	tr := NewHTTPTransport()
	if _, err := tr.Send(context.Background(), &sesslib.Request{URL: "http://127.0.0.1:0"}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestHTTPTransport_InvalidProxy(t *testing.T) {
	tr := NewHTTPTransport()
	req := &sesslib.Request{URL: "http://example.com", Proxy: "ftp://never"}
	if _, err := tr.Send(context.Background(), req); err == nil {
		t.Fatal("expected unsupported proxy scheme error")
	}
}
