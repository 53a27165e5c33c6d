package server

import (
	"context"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/crawlkit/sessiond/internal/engine"
	"github.com/crawlkit/sessiond/internal/store"
	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// Custom JSON-RPC error codes for session operations.
const (
	codeProfilesUnavailable = jrpc2.Code(-32001)
	codeAuditUnavailable    = jrpc2.Code(-32002)
	codeInvalidParams       = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret  string // Auth token (required -- empty means RPC disabled)
	Version string // Daemon version
	Commit  string // Git commit
}

// RPCServer exposes the session coordinator over JSON-RPC 2.0, both as
// an HTTP bridge and per-connection WebSocket servers.
type RPCServer struct {
	bridge  jhttp.Bridge
	methods handler.Map
	secret  string
	version string
	commit  string
	coord   *engine.Coordinator
	audit   *store.Store
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// SessionParam is a common input with just a session identity.
type SessionParam struct {
	Session string `json:"session,omitempty"`
}

// GetResult is the response for session.get.
type GetResult struct {
	Session string           `json:"session"`
	Version int64            `json:"version"`
	Cookies []sesslib.Cookie `json:"cookies"`
}

// ClearParams is the input for session.clear. When RenewalURL is set,
// a renewal request for that URL is dispatched ahead of queued work.
type ClearParams struct {
	Session    string `json:"session,omitempty"`
	RenewalURL string `json:"renewalUrl,omitempty"`
}

// ClearResult is the response for session.clear.
type ClearResult struct {
	Session string `json:"session"`
	Version int64  `json:"version"`
}

// ProfileResult is the response for session.profile.
type ProfileResult struct {
	Session   string `json:"session"`
	UserAgent string `json:"userAgent,omitempty"`
	ProxyURL  string `json:"proxyUrl,omitempty"`
	Bound     bool   `json:"bound"`
}

// SessionsResult is the response for session.list.
type SessionsResult struct {
	Sessions []string `json:"sessions"`
}

// AuditSessionsResult is the response for audit.sessions.
type AuditSessionsResult struct {
	RunID    string                 `json:"runId"`
	Sessions []store.SessionSummary `json:"sessions"`
}

// NewRPCServer creates a new RPCServer with method handlers and HTTP
// bridge. The audit store is optional; audit methods report an error
// when it is absent.
func NewRPCServer(cfg *RPCConfig, coord *engine.Coordinator, audit *store.Store) *RPCServer {
	rs := &RPCServer{
		secret:  cfg.Secret,
		version: cfg.Version,
		commit:  cfg.Commit,
		coord:   coord,
		audit:   audit,
	}

	rs.methods = handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
		"session.get":       handler.New(rs.sessionGet),
		"session.clear":     handler.New(rs.sessionClear),
		"session.profile":   handler.New(rs.sessionProfile),
		"session.list":      handler.New(rs.sessionList),
		"session.stats":     handler.New(rs.sessionStats),
		"audit.sessions":    handler.New(rs.auditSessions),
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{
		Version: rs.version,
		Commit:  rs.commit,
	}, nil
}

// sessionGet returns the current cookies and jar version of a session.
// Unknown sessions come back empty at version 0, the same view an
// in-process caller gets.
func (rs *RPCServer) sessionGet(_ context.Context, p *SessionParam) (*GetResult, error) {
	id := sesslib.SessionID(p.Session)
	if id == "" {
		id = sesslib.DefaultSession
	}
	jar := rs.coord.Registry().Jar(id)
	return &GetResult{
		Session: string(id),
		Version: jar.Version(),
		Cookies: jar.Cookies(),
	}, nil
}

// sessionClear renews a session's jar. With renewalUrl set, a renewal
// request is pushed through the bypass lane so it runs before queued
// work for that identity.
func (rs *RPCServer) sessionClear(_ context.Context, p *ClearParams) (*ClearResult, error) {
	id := sesslib.SessionID(p.Session)
	var renewal *sesslib.Request
	if p.RenewalURL != "" {
		renewal = &sesslib.Request{URL: p.RenewalURL, Method: "GET"}
	}
	version, err := rs.coord.Clear(id, renewal)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	if id == "" {
		id = sesslib.DefaultSession
	}
	return &ClearResult{Session: string(id), Version: version}, nil
}

// sessionProfile reports the profile currently bound to a session.
func (rs *RPCServer) sessionProfile(_ context.Context, p *SessionParam) (*ProfileResult, error) {
	id := sesslib.SessionID(p.Session)
	if id == "" {
		id = sesslib.DefaultSession
	}
	profile, bound, err := rs.coord.Profile(id)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeProfilesUnavailable, Message: err.Error()}
	}
	res := &ProfileResult{Session: string(id), Bound: bound}
	if bound {
		res.UserAgent = profile.UserAgent
		if profile.Proxy != nil {
			res.ProxyURL = profile.Proxy.URL
		}
	}
	return res, nil
}

// sessionList returns the identities of every jar created so far.
func (rs *RPCServer) sessionList(_ context.Context) (*SessionsResult, error) {
	ids := rs.coord.Registry().Sessions()
	sessions := make([]string, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, string(id))
	}
	return &SessionsResult{Sessions: sessions}, nil
}

// sessionStats returns the coordinator's request and decision counters.
func (rs *RPCServer) sessionStats(_ context.Context) (*engine.StatsSnapshot, error) {
	snap := rs.coord.Stats()
	return &snap, nil
}

// auditSessions lists the persisted activity of the current run.
func (rs *RPCServer) auditSessions(_ context.Context) (*AuditSessionsResult, error) {
	if rs.audit == nil {
		return nil, &jrpc2.Error{Code: codeAuditUnavailable, Message: "audit store not configured"}
	}
	sums, err := rs.audit.Sessions()
	if err != nil {
		return nil, &jrpc2.Error{Code: codeAuditUnavailable, Message: err.Error()}
	}
	return &AuditSessionsResult{RunID: rs.audit.RunID(), Sessions: sums}, nil
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
