package sesslib

import "sync/atomic"

// Registry maps session ids to their current cookie jar. Jars are
// created lazily on first reference and live until the end of the
// scrape; a clear replaces a jar's content, never its identity.
//
// The registry owns the jar map exclusively. Callers read and mutate
// session state only through Jar, Clear and the jar's own methods.
type Registry struct {
	jars     VMap[SessionID, *CookieJar]
	created  atomic.Int64
	onCreate func(SessionID)
}

// NewRegistry creates an empty registry. onCreate, if non-nil, is
// invoked once per genuinely new session id, after its jar has been
// registered. The profile layer uses it to assign a rotation slot.
func NewRegistry(onCreate func(SessionID)) *Registry {
	return &Registry{
		jars:     NewVMap[SessionID, *CookieJar](),
		onCreate: onCreate,
	}
}

// Jar returns the jar for id, creating an empty jar at version 0 if the
// session has not been seen before. It never fails.
func (r *Registry) Jar(id SessionID) *CookieJar {
	jar, created := r.jars.GetOrSet(id, func() *CookieJar {
		return NewCookieJar(id)
	})
	if created {
		r.created.Add(1)
		if r.onCreate != nil {
			r.onCreate(id)
		}
	}
	return jar
}

// Exists reports whether a jar for id has already been created. Used by
// the profile layer to detect genuinely new sessions.
func (r *Registry) Exists(id SessionID) bool {
	return r.jars.Has(id)
}

// Clear renews the session's jar, creating it first when absent, and
// returns the new version. A reader concurrent with Clear observes
// either the pre-clear or the post-clear jar state, never a torn one.
//
// A jar created by Clear does not fire the on-create hook: the session
// has done no work yet, and assigning a rotation slot here would be
// undone by the release that follows every clear, skewing the rotation
// for sessions created later. The slot is assigned when the session
// first carries a request.
func (r *Registry) Clear(id SessionID) int64 {
	jar, created := r.jars.GetOrSet(id, func() *CookieJar {
		return NewCookieJar(id)
	})
	if created {
		r.created.Add(1)
	}
	return jar.Renew()
}

// Created returns how many distinct sessions have ever been created.
func (r *Registry) Created() int64 {
	return r.created.Load()
}

// Sessions returns the ids of all sessions created so far.
func (r *Registry) Sessions() []SessionID {
	ids := make([]SessionID, 0, r.jars.Len())
	r.jars.Range(func(id SessionID, _ *CookieJar) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
