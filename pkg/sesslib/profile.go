package sesslib

import (
	"fmt"
	"sync"
)

// Proxy is the proxy half of a profile: the address to dial through and
// the ready-made Proxy-Authorization header value, when the endpoint
// requires one.
type Proxy struct {
	URL  string `json:"url"`
	Auth string `json:"auth,omitempty"`
}

// Profile bundles the identity attributes bound to one session: an
// optional proxy and an optional user-agent. A valid profile sets at
// least one of the two.
type Profile struct {
	Proxy     *Proxy `json:"proxy,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Validate reports ErrEmptyProfile when neither attribute is set. A
// proxy URL that is present must parse and carry a supported scheme; a
// malformed address fails here, at load time, not on the first request
// routed through it.
func (p *Profile) Validate() error {
	if p.Proxy == nil && p.UserAgent == "" {
		return ErrEmptyProfile
	}
	if p.Proxy != nil {
		if _, err := ParseProxyURL(p.Proxy.URL); err != nil {
			return err
		}
	}
	return nil
}

// Apply stamps the profile's attributes onto the request. A profile
// missing one of the two attributes leaves that aspect untouched.
func (p *Profile) Apply(r *Request) {
	if p.Proxy != nil {
		r.Proxy = p.Proxy.URL
		if p.Proxy.Auth != "" {
			r.Headers.Update(ProxyAuthKey, p.Proxy.Auth)
		}
	}
	if p.UserAgent != "" {
		r.Headers.Update(UserAgentKey, p.UserAgent)
	}
}

// Pool is the fixed, ordered list of profiles sessions rotate through.
type Pool []Profile

// Validate checks every entry, failing fast on the first invalid one so
// a bad pool surfaces at load time rather than per request.
func (pool Pool) Validate() error {
	for i := range pool {
		if err := pool[i].Validate(); err != nil {
			return fmt.Errorf("profile %d: %w", i, err)
		}
	}
	return nil
}

// Allocator assigns profiles to sessions in deterministic round-robin
// order: the n-th distinct session ever created receives profile
// n mod poolSize, regardless of clears in between. Clearing a session
// removes its binding; the next allocation for that id draws the next
// rotation slot, not the one it previously held.
type Allocator struct {
	mu      sync.Mutex
	pool    Pool
	created int
	ref     map[SessionID]int
}

// NewAllocator creates an allocator over the given pool. The pool is
// validated eagerly; an invalid entry fails construction. An empty pool
// is legal and leaves the profile feature inactive.
func NewAllocator(pool Pool) (*Allocator, error) {
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{
		pool: pool,
		ref:  make(map[SessionID]int),
	}, nil
}

// Allocate binds a profile to id if it has none yet and returns the
// bound profile. With an empty pool there is nothing to bind and the
// second return value is false.
func (a *Allocator) Allocate(id SessionID) (Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pool) == 0 {
		return Profile{}, false
	}
	idx, ok := a.ref[id]
	if !ok {
		idx = a.created % len(a.pool)
		a.created++
		a.ref[id] = idx
	}
	return a.pool[idx], true
}

// Get returns the profile currently bound to id, if any. It never
// creates a binding.
func (a *Allocator) Get(id SessionID) (Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.ref[id]
	if !ok {
		return Profile{}, false
	}
	return a.pool[idx], true
}

// Release removes the binding for id. Called when the session is
// cleared; a later Allocate draws the next profile in rotation.
func (a *Allocator) Release(id SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ref, id)
}

// Apply binds a profile to id if needed and stamps its attributes onto
// the request. With an empty pool this is a no-op.
func (a *Allocator) Apply(r *Request, id SessionID) {
	p, ok := a.Allocate(id)
	if !ok {
		return
	}
	p.Apply(r)
}

// Size returns the pool size.
func (a *Allocator) Size() int {
	return len(a.pool)
}
