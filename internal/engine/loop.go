package engine

import (
	"context"
	"sync"

	"github.com/crawlkit/sessiond/pkg/logger"
	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// Loop is the reference Dispatcher implementation: a single goroutine
// draining two channels, with the bypass channel always checked first
// so a renewal request is dispatched ahead of anything already queued.
// Every dispatch funnels through one accounting point regardless of the
// channel it arrived on, which keeps the request/response counters
// structurally exact.
//
// The transport exchange itself runs on a per-request goroutine; only
// dispatch ordering is serialized, not response latency.
type Loop struct {
	coord    *Coordinator
	send     Transport
	log      logger.Logger
	submitCh chan *sesslib.Request
	bypassCh chan *sesslib.Request
	slots    chan struct{}
	ctx      context.Context
	inflight sync.WaitGroup
}

// DefaultMaxConcurrent is the transport concurrency limit used when
// NewLoop is given a non-positive value.
const DefaultMaxConcurrent = 16

// NewLoop creates and starts a dispatch loop over the given transport,
// binding itself to the coordinator as its dispatcher. At most
// maxConcurrent exchanges run against the transport at once; further
// dispatches wait for a slot, which is what lets a bypass request
// overtake work still sitting in the queue. The loop goroutine exits
// when ctx is cancelled.
func NewLoop(ctx context.Context, coord *Coordinator, send Transport, l logger.Logger, maxConcurrent int) *Loop {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	lp := &Loop{
		coord:    coord,
		send:     send,
		log:      l,
		submitCh: make(chan *sesslib.Request, 64),
		bypassCh: make(chan *sesslib.Request, 8),
		slots:    make(chan struct{}, maxConcurrent),
		ctx:      ctx,
	}
	coord.Bind(lp)
	go lp.run()
	return lp
}

// Submit enqueues a request in normal order.
func (l *Loop) Submit(r *sesslib.Request) {
	select {
	case l.submitCh <- r:
	case <-l.ctx.Done():
	}
}

// Bypass dispatches a request ahead of the normal queue.
func (l *Loop) Bypass(r *sesslib.Request) {
	select {
	case l.bypassCh <- r:
	case <-l.ctx.Done():
	}
}

// Wait blocks until all transport exchanges started so far complete.
// Queued but undispatched requests are not waited for.
func (l *Loop) Wait() {
	l.inflight.Wait()
}

func (l *Loop) run() {
	for {
		// Take a transport slot before looking at either channel. The
		// bypass-versus-queue choice must be made at the moment a
		// dispatch can actually start: committing to a queued request
		// and then waiting for a slot would let a renewal submitted in
		// the meantime run after work that was merely queued first.
		select {
		case l.slots <- struct{}{}:
		case <-l.ctx.Done():
			return
		}
		// Bypass requests jump the queue: drain them before touching
		// the submission channel.
		select {
		case r := <-l.bypassCh:
			l.dispatch(r, true)
			continue
		default:
		}
		select {
		case <-l.ctx.Done():
			return
		case r := <-l.bypassCh:
			l.dispatch(r, true)
		case r := <-l.submitCh:
			l.dispatch(r, false)
		}
	}
}

// dispatch is the single accounting point: every request, bypassed or
// not, is prepared and counted here exactly once, and its response is
// counted exactly once on receipt. The caller holds a transport slot;
// the exchange goroutine owns releasing it.
func (l *Loop) dispatch(r *sesslib.Request, bypassed bool) {
	l.coord.PrepareRequest(r)
	l.coord.stats.requests.Add(1)
	if bypassed {
		l.coord.stats.bypassed.Add(1)
	}
	l.inflight.Add(1)
	safeGo(l.log, &l.inflight, "transport", func() {
		released := false
		release := func() {
			if !released {
				released = true
				<-l.slots
			}
		}
		defer release()
		resp, err := l.send(l.ctx, r)
		// Free the slot before response handling. A stale response is
		// resubmitted through Submit, and with the queue full Submit
		// blocks; it must never be waiting on the slot this goroutine
		// still holds while the run loop waits for a slot to free.
		release()
		if err != nil {
			l.log.Warning("transport: %s %s failed: %s", r.Method, r.URL, err.Error())
			return
		}
		if resp.Request == nil {
			resp.Request = r
		}
		l.coord.stats.responses.Add(1)
		decision, err := l.coord.HandleResponse(resp)
		if err != nil {
			l.log.Error("response handling: %s", err.Error())
		}
		if decision == Accepted && r.Callback != nil {
			r.Callback(resp)
		}
	})
}

var _ Dispatcher = (*Loop)(nil)
