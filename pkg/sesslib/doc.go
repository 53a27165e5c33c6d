// Package sesslib provides the core session-identity primitives for the
// sessiond crawling pipeline: versioned per-session cookie jars, the
// registry mapping session ids to their live jar, and the profile pool
// that binds a proxy and user-agent identity to each session in
// round-robin order.
//
// The jar version counter is the concurrency backbone of the renewal
// protocol: every outgoing request is stamped with the version it was
// prepared against, and a response whose stamp trails the jar's current
// version is recognized as stale and retried rather than merged. All
// version reads and bumps for one session serialize on that jar's lock,
// so a clear concurrent with request preparation or response handling
// is observed atomically.
package sesslib
