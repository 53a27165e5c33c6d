package sesslib

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// netscapeTimeLayout is the expiry format used in string cookie snapshots.
const netscapeTimeLayout = "Mon, 02-Jan-2006 15:04:05 MST"

// Cookie represents a single HTTP cookie held by a session jar.
type Cookie struct {
	// Name is the cookie name. A cookie with an empty name is malformed
	// and is skipped during merges.
	Name string
	// Value is the cookie value. An empty value deletes the cookie.
	Value string
	// Domain is the cookie domain (may carry a leading dot).
	Domain string
	// Path is the cookie path scope.
	Path string
	// Expiry is the cookie expiration time. Zero means session cookie.
	Expiry time.Time
	// Secure indicates the cookie should only be sent over HTTPS.
	Secure bool
	// HttpOnly indicates the cookie is not accessible via JavaScript.
	HttpOnly bool
}

// expired reports whether the cookie carries an expiry in the past
// relative to now.
func (c *Cookie) expired(now time.Time) bool {
	return !c.Expiry.IsZero() && c.Expiry.Before(now)
}

// String renders the cookie in the netscape-ish inspection format:
// "name=value; expires=...; path=...; domain=...".
func (c *Cookie) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteString("=")
	sb.WriteString(c.Value)
	sb.WriteString("; expires=")
	if c.Expiry.IsZero() {
		sb.WriteString("session")
	} else {
		sb.WriteString(c.Expiry.UTC().Format(netscapeTimeLayout))
	}
	sb.WriteString("; path=")
	sb.WriteString(c.Path)
	sb.WriteString("; domain=")
	sb.WriteString(c.Domain)
	return sb.String()
}

// cookieKey identifies a cookie inside a jar. Two cookies with the same
// domain, path and name overwrite each other.
type cookieKey struct {
	domain, path, name string
}

func (c *Cookie) key() cookieKey {
	return cookieKey{domain: c.Domain, path: c.Path, name: c.Name}
}

// MergeOutcome is the decision taken by CookieJar.MergeAt for a response
// stamped with a particular jar version.
type MergeOutcome int

const (
	// OutcomeMerged means the response was issued against the live jar
	// version and its cookies were folded in.
	OutcomeMerged MergeOutcome = iota
	// OutcomeStale means the jar was renewed after the response's request
	// was stamped. Nothing was merged; the caller must retry the request.
	OutcomeStale
	// OutcomeFuture means the stamped version is newer than the jar's
	// current version. This cannot happen when stamps are propagated
	// correctly and is treated as an internal consistency error.
	OutcomeFuture
)

// String returns a short label for the outcome, used in debug logs.
func (o MergeOutcome) String() string {
	switch o {
	case OutcomeMerged:
		return "merged"
	case OutcomeStale:
		return "stale"
	case OutcomeFuture:
		return "future"
	default:
		return "unknown"
	}
}

// CookieJar holds one session's accumulated cookies together with a
// monotonic version counter. The version starts at 0 and is bumped
// exactly once per Renew call; it never decreases within a scrape.
//
// All methods are safe for concurrent use. Renew serializes against
// every reader, so no caller ever observes a half-renewed jar.
type CookieJar struct {
	id        SessionID
	mu        sync.RWMutex
	cookies   map[cookieKey]Cookie
	version   int64
	renewedAt time.Time
}

// NewCookieJar creates an empty jar at version 0 for the given session.
func NewCookieJar(id SessionID) *CookieJar {
	return &CookieJar{
		id:      id,
		cookies: make(map[cookieKey]Cookie),
	}
}

// Session returns the session id this jar belongs to.
func (j *CookieJar) Session() SessionID {
	return j.id
}

// Version returns the jar's current version.
func (j *CookieJar) Version() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.version
}

// Len returns the number of cookies currently held.
func (j *CookieJar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.cookies)
}

// RenewedAt returns the time of the last renew, zero if never renewed.
func (j *CookieJar) RenewedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.renewedAt
}

// Merge folds newly received cookies into the jar using standard
// overwrite rules: same (domain, path, name) replaces the value, an
// empty value or a past expiry deletes the cookie. Malformed entries
// (empty name) are skipped without affecting the rest. Merge is total
// and never fails.
func (j *CookieJar) Merge(cookies []Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.merge(cookies)
}

// merge applies overwrite rules. Caller must hold the write lock.
func (j *CookieJar) merge(cookies []Cookie) {
	now := time.Now()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		key := c.key()
		if c.Value == "" || c.expired(now) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = c
	}
}

// MergeAt merges cookies only if the jar is still at issuedVersion.
// The version comparison and the merge happen under one critical
// section, so a concurrent Renew can never interleave between the
// staleness check and the mutation.
func (j *CookieJar) MergeAt(issuedVersion int64, cookies []Cookie) MergeOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case issuedVersion == j.version:
		j.merge(cookies)
		return OutcomeMerged
	case issuedVersion < j.version:
		return OutcomeStale
	default:
		return OutcomeFuture
	}
}

// Renew clears all cookies and increments the version, returning the
// new version. It is the only mutator of the version counter.
func (j *CookieJar) Renew() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = make(map[cookieKey]Cookie)
	j.version++
	j.renewedAt = time.Now()
	return j.version
}

// Issue returns the outgoing Cookie header for the jar's current
// contents together with the current version, read under one lock so a
// concurrent Renew can never produce old cookies paired with a new
// version or vice versa.
func (j *CookieJar) Issue() (header string, version int64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.cookies) > 0 {
		parts := make([]string, 0, len(j.cookies))
		for _, c := range j.sorted() {
			parts = append(parts, c.Name+"="+c.Value)
		}
		header = strings.Join(parts, "; ")
	}
	return header, j.version
}

// sorted returns the jar's cookies ordered by domain, path and name.
// Caller must hold at least the read lock.
func (j *CookieJar) sorted() []Cookie {
	out := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Name < b.Name
	})
	return out
}

// Cookies returns a structured snapshot of the jar's contents, sorted
// by domain, path and name for stable output. The snapshot is a copy;
// mutating it does not affect the jar.
func (j *CookieJar) Cookies() []Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sorted()
}

// Pairs returns a plain name to value snapshot of the jar. When two
// cookies share a name across domains, the lexicographically later
// (domain, path) entry wins, matching the sorted order of Cookies.
func (j *CookieJar) Pairs() map[string]string {
	out := make(map[string]string)
	for _, c := range j.Cookies() {
		out[c.Name] = c.Value
	}
	return out
}

// Strings returns the jar's cookies rendered one per line in the
// inspection format of Cookie.String.
func (j *CookieJar) Strings() []string {
	cookies := j.Cookies()
	out := make([]string, len(cookies))
	for i := range cookies {
		out[i] = cookies[i].String()
	}
	return out
}

// Header builds the outgoing Cookie header value for the jar's current
// contents: "name1=val1; name2=val2". Empty string when the jar holds
// no cookies.
func (j *CookieJar) Header() string {
	header, _ := j.Issue()
	return header
}
