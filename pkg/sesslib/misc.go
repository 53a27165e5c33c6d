package sesslib

// SessionID identifies one client identity context. Every request in
// the pipeline addresses a session; requests without an explicit id use
// DefaultSession.
type SessionID string

// DefaultSession is the well-known id of the implicit session used by
// requests that do not address one explicitly.
const DefaultSession SessionID = "default"

const (
	// UserAgentKey is the User-Agent header key.
	UserAgentKey = "User-Agent"
	// ProxyAuthKey is the Proxy-Authorization header key.
	ProxyAuthKey = "Proxy-Authorization"
	// CookieKey is the outgoing Cookie header key.
	CookieKey = "Cookie"
)
