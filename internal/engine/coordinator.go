package engine

import (
	"github.com/crawlkit/sessiond/pkg/logger"
	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// Options configures a Coordinator.
type Options struct {
	// Enabled is the master toggle. A disabled coordinator leaves every
	// request and response untouched.
	Enabled bool
	// CookieDebug enables verbose per-request cookie logging.
	CookieDebug bool
	// ProfilesSync enables the profile rotation layer.
	ProfilesSync bool
	// Profiles is the rotation pool. Only consulted when ProfilesSync
	// is set; an empty pool leaves the feature inactive.
	Profiles sesslib.Pool
	// Logger receives protocol events. Defaults to a NopLogger.
	Logger logger.Logger
	// Audit, when non-nil, receives merge and clear events.
	Audit AuditSink
}

// Coordinator owns the session registry and drives the renewal
// protocol. It is the single entry point for request preparation,
// response handling and renewals; callers never touch jar internals
// directly.
type Coordinator struct {
	registry *sesslib.Registry
	profiles *sesslib.Allocator
	dispatch Dispatcher
	stats    Stats
	log      logger.Logger
	enabled  bool
	debug    bool
	audit    AuditSink
}

// New creates a Coordinator. The profile pool is validated eagerly so
// an invalid profile fails here, before any request is prepared.
func New(opts Options) (*Coordinator, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	c := &Coordinator{
		log:     opts.Logger,
		enabled: opts.Enabled,
		debug:   opts.CookieDebug,
		audit:   opts.Audit,
	}
	if opts.ProfilesSync {
		alloc, err := sesslib.NewAllocator(opts.Profiles)
		if err != nil {
			return nil, err
		}
		c.profiles = alloc
	}
	c.registry = sesslib.NewRegistry(func(id sesslib.SessionID) {
		if c.profiles == nil {
			return
		}
		if _, ok := c.profiles.Allocate(id); ok && c.debug {
			c.log.Debug("session %s: profile assigned", id)
		}
	})
	return c, nil
}

// Bind attaches the dispatcher used for retries and renewal bypasses.
func (c *Coordinator) Bind(d Dispatcher) {
	c.dispatch = d
}

// Registry exposes the session registry for read-only inspection.
func (c *Coordinator) Registry() *sesslib.Registry {
	return c.registry
}

// Stats returns a snapshot of the pipeline counters.
func (c *Coordinator) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Enabled reports whether the session mechanism is active.
func (c *Coordinator) Enabled() bool {
	return c.enabled
}

// PrepareRequest resolves the request's session, attaches the jar's
// current cookies and the session's profile attributes, and stamps the
// request with the jar version it was issued against. It performs no
// mutation beyond the lazy creation of a previously unseen jar.
func (c *Coordinator) PrepareRequest(r *sesslib.Request) {
	if !c.enabled {
		return
	}
	id := r.SessionOrDefault()
	r.Session = id
	jar := c.registry.Jar(id)
	if c.profiles != nil {
		c.profiles.Apply(r, id)
	}
	header, version := jar.Issue()
	if header != "" {
		r.Headers.Update(sesslib.CookieKey, header)
	}
	r.Stamp = &sesslib.RequestStamp{Session: id, Version: version}
	if c.debug {
		c.log.Debug("session %s: prepared %s %s at v%d (%d cookies out)",
			id, r.Method, r.URL, version, jar.Len())
	}
}

// HandleResponse applies the accept-versus-retry rule for one inbound
// response. Exactly one of three things happens: the response's cookies
// are merged into the live jar and the response is accepted, or the
// response is recognized as stale and its originating request is
// resubmitted, or the version invariant is violated and the response is
// dropped with an error.
func (c *Coordinator) HandleResponse(resp *sesslib.Response) (Decision, error) {
	if !c.enabled || resp.Request == nil || resp.Request.Stamp == nil {
		return Accepted, nil
	}
	stamp := resp.Request.Stamp
	jar := c.registry.Jar(stamp.Session)

	switch outcome := jar.MergeAt(stamp.Version, resp.Cookies); outcome {
	case sesslib.OutcomeMerged:
		resp.Session = stamp.Session
		c.stats.accepted.Add(1)
		if c.debug {
			c.log.Debug("session %s: merged %d cookies at v%d",
				stamp.Session, len(resp.Cookies), stamp.Version)
		}
		if c.audit != nil && len(resp.Cookies) > 0 {
			if err := c.audit.RecordMerge(stamp.Session, stamp.Version, resp.Cookies); err != nil {
				c.log.Warning("session %s: audit record failed: %s", stamp.Session, err.Error())
			}
		}
		return Accepted, nil

	case sesslib.OutcomeStale:
		current := jar.Version()
		c.log.Info("session %s: stale response (issued v%d, current v%d), retrying request",
			stamp.Session, stamp.Version, current)
		if c.dispatch == nil {
			c.log.Error("session %s: cannot retry stale response, no dispatcher", stamp.Session)
			return Dropped, ErrNoDispatcher
		}
		c.stats.retried.Add(1)
		c.dispatch.Submit(resp.Request.Retry())
		return Retried, nil

	default:
		c.stats.dropped.Add(1)
		c.log.Error("session %s: response stamped v%d but jar is at v%d, dropping",
			stamp.Session, stamp.Version, jar.Version())
		return Dropped, sesslib.ErrFutureStamp
	}
}

// Clear renews the session's jar and releases its profile binding,
// returning the new jar version. When renewal is non-nil it is
// dispatched through the bypass channel, ahead of anything already
// queued for that identity; omitted, the renewal is silent and the next
// organically-issued request picks up the fresh jar.
func (c *Coordinator) Clear(id sesslib.SessionID, renewal *sesslib.Request) (int64, error) {
	if id == "" {
		id = sesslib.DefaultSession
	}
	version := c.registry.Clear(id)
	if c.profiles != nil {
		c.profiles.Release(id)
	}
	c.log.Info("session %s: cleared, jar now at v%d", id, version)
	if c.audit != nil {
		if err := c.audit.RecordClear(id, version, renewal != nil); err != nil {
			c.log.Warning("session %s: audit record failed: %s", id, err.Error())
		}
	}
	if renewal != nil {
		if c.dispatch == nil {
			return version, ErrNoDispatcher
		}
		renewal.Session = id
		c.dispatch.Bypass(renewal)
	}
	return version, nil
}

// Get returns a structured snapshot of the session's current cookies.
// The default session is used when id is empty. Sessions never seen
// before come back as an empty, freshly created jar.
func (c *Coordinator) Get(id sesslib.SessionID) []sesslib.Cookie {
	if id == "" {
		id = sesslib.DefaultSession
	}
	return c.registry.Jar(id).Cookies()
}

// Profile returns the profile currently bound to the session. It
// reports ErrProfilesUnavailable when profile sync is disabled or no
// pool is configured; an enabled pool with no binding for id yields
// (zero, false, nil).
func (c *Coordinator) Profile(id sesslib.SessionID) (sesslib.Profile, bool, error) {
	if c.profiles == nil || c.profiles.Size() == 0 {
		return sesslib.Profile{}, false, sesslib.ErrProfilesUnavailable
	}
	if id == "" {
		id = sesslib.DefaultSession
	}
	p, ok := c.profiles.Get(id)
	return p, ok, nil
}
