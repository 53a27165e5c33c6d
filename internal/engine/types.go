package engine

import (
	"context"
	"errors"

	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// Decision is the outcome of handling one inbound response.
type Decision int

const (
	// Accepted means the response belonged to the live jar version and
	// was delivered to downstream processing.
	Accepted Decision = iota
	// Retried means the response was stale; its originating request has
	// been resubmitted and the response itself is discarded.
	Retried
	// Dropped means the response violated the version invariant and was
	// discarded without a retry.
	Dropped
)

// String returns a short label for the decision.
func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Retried:
		return "retried"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Dispatcher is the scheduling collaborator the coordinator hands
// requests to. Implementations must call Coordinator.PrepareRequest
// before dispatching a request and Coordinator.HandleResponse for every
// response received, and must count each dispatched request and each
// received response exactly once, bypass included.
type Dispatcher interface {
	// Submit enqueues a request in normal scheduling order.
	Submit(r *sesslib.Request)
	// Bypass dispatches a request ahead of anything already queued.
	// Used for renewal requests, which must be the next request
	// downloaded for their identity.
	Bypass(r *sesslib.Request)
}

// Transport performs the actual request/response exchange. It is
// opaque to the session core; only responses that arrive are seen here,
// transport failures surface as errors and never reach the jar.
type Transport func(ctx context.Context, r *sesslib.Request) (*sesslib.Response, error)

// AuditSink receives session lifecycle events for persistence. The
// coordinator treats sink failures as log-worthy, never fatal.
type AuditSink interface {
	RecordMerge(id sesslib.SessionID, version int64, cookies []sesslib.Cookie) error
	RecordClear(id sesslib.SessionID, version int64, renewal bool) error
}

// ErrNoDispatcher is returned when a stale response needs a retry or a
// renewal request needs dispatching but no dispatcher is bound.
var ErrNoDispatcher = errors.New("no dispatcher bound to coordinator")
