package sesslib

import "net/http"

// RequestStamp records the jar version a request was issued against.
// It is attached at request-preparation time and consumed exactly once
// when the response is handled.
type RequestStamp struct {
	Session SessionID
	Version int64
}

// Request is one unit of work flowing through the pipeline. The
// transport and scheduler are external; this type carries only what the
// session layer needs to prepare, stamp and retry a request.
type Request struct {
	// URL is the request target.
	URL string
	// Method is the HTTP method. Empty means GET.
	Method string
	// Body is the request body, nil when absent.
	Body []byte
	// Headers are the outgoing headers. Prepare fills in Cookie,
	// User-Agent and Proxy-Authorization as the session dictates.
	Headers Headers
	// Session addresses the identity this request runs under. Empty
	// means DefaultSession.
	Session SessionID
	// Proxy is the proxy URL the transport should dial through, set by
	// the profile layer when the session's profile carries one.
	Proxy string
	// Callback receives the response once it is accepted. Retries keep
	// the original callback.
	Callback func(*Response)
	// Stamp is the jar version stamp attached at preparation time.
	Stamp *RequestStamp
}

// SessionOrDefault returns the request's session id, falling back to
// DefaultSession when unset.
func (r *Request) SessionOrDefault() SessionID {
	if r.Session == "" {
		return DefaultSession
	}
	return r.Session
}

// Retry builds a second attempt of the request: same URL, method, body,
// session and callback. The stamp is dropped so that preparation under
// the now-current jar assigns a fresh one, and session-managed headers
// are reset along with it.
func (r *Request) Retry() *Request {
	retry := &Request{
		URL:      r.URL,
		Method:   r.Method,
		Body:     r.Body,
		Headers:  r.Headers.Clone(),
		Session:  r.Session,
		Callback: r.Callback,
	}
	retry.Headers.Delete(CookieKey)
	retry.Headers.Delete(ProxyAuthKey)
	return retry
}

// Response is the transport's answer to a Request. The session layer
// consumes the received cookies and annotates the response with the
// session metadata downstream consumers may inspect.
type Response struct {
	// Request is the originating request, carrying its stamp.
	Request *Request
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the raw response headers.
	Header http.Header
	// Body is the response body.
	Body []byte
	// Cookies are the structured cookies received with this response,
	// as exposed by the cookie header transport.
	Cookies []Cookie
	// Session is the id of the session the response was handled under,
	// set during response handling.
	Session SessionID
}
