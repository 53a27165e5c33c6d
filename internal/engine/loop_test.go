package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crawlkit/sessiond/pkg/logger"
	"github.com/crawlkit/sessiond/pkg/sesslib"
)

// orderedTransport records the dispatch order of request URLs and
// answers every request with an empty 200 response.
type orderedTransport struct {
	mu    sync.Mutex
	order []string
	delay time.Duration
	reply func(r *sesslib.Request) *sesslib.Response
}

func (tr *orderedTransport) send(_ context.Context, r *sesslib.Request) (*sesslib.Response, error) {
	tr.mu.Lock()
	tr.order = append(tr.order, r.URL)
	tr.mu.Unlock()
	if tr.delay > 0 {
		time.Sleep(tr.delay)
	}
	if tr.reply != nil {
		return tr.reply(r), nil
	}
	return &sesslib.Response{Request: r, StatusCode: 200}, nil
}

func (tr *orderedTransport) dispatched() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.order))
	copy(out, tr.order)
	return out
}

func newTestLoop(t *testing.T, tr *orderedTransport, maxConcurrent int) (*Coordinator, *Loop, context.CancelFunc) {
	t.Helper()
	c, err := New(Options{Enabled: true, Logger: logger.NewNopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	lp := NewLoop(ctx, c, tr.send, logger.NewNopLogger(), maxConcurrent)
	return c, lp, cancel
}

func TestLoop_DeliversAcceptedResponses(t *testing.T) {
	tr := &orderedTransport{
		reply: func(r *sesslib.Request) *sesslib.Response {
			return &sesslib.Response{
				Request:    r,
				StatusCode: 200,
				Cookies:    []sesslib.Cookie{{Name: "sid", Value: "abc", Domain: "d", Path: "/"}},
			}
		},
	}
	done := make(chan *sesslib.Response, 1)
	c, lp, cancel := newTestLoop(t, tr, 0)
	defer cancel()

	lp.Submit(&sesslib.Request{
		URL:      "http://example.com",
		Session:  "s1",
		Callback: func(resp *sesslib.Response) { done <- resp },
	})

	select {
	case resp := <-done:
		if resp.Session != "s1" {
			t.Errorf("response session = %q", resp.Session)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
	if c.Registry().Jar("s1").Pairs()["sid"] != "abc" {
		t.Error("cookies not merged")
	}
	s := c.Stats()
	if s.Requests != 1 || s.Responses != 1 || s.Accepted != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLoop_BypassJumpsQueue(t *testing.T) {
	// One transport slot and a slow exchange: while q1 holds the slot,
	// q2 and q3 sit in the queue and the renewal arrives on the bypass
	// channel. When the slot frees, the bypass channel is drained first.
	tr := &orderedTransport{delay: 50 * time.Millisecond}
	c, lp, cancel := newTestLoop(t, tr, 1)
	defer cancel()

	lp.Submit(&sesslib.Request{URL: "http://example.com/q1", Session: "s1"})

	// Wait until q1 occupies the transport before queueing the rest.
	deadlineQ1 := time.Now().Add(2 * time.Second)
	for len(tr.dispatched()) == 0 {
		if time.Now().After(deadlineQ1) {
			t.Fatal("q1 never dispatched")
		}
		time.Sleep(time.Millisecond)
	}
	lp.Submit(&sesslib.Request{URL: "http://example.com/q2", Session: "s1"})
	lp.Submit(&sesslib.Request{URL: "http://example.com/q3", Session: "s1"})
	if _, err := c.Clear("s1", &sesslib.Request{URL: "http://example.com/renew"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(tr.dispatched()) == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 4 requests dispatched", len(tr.dispatched()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	lp.Wait()

	// Only q1 was in the transport when the renewal arrived; q2 and q3
	// were queued, so both are dispatched after the renewal.
	order := tr.dispatched()
	if len(order) != 4 {
		t.Fatalf("dispatched %d requests: %v", len(order), order)
	}
	want := []string{
		"http://example.com/q1",
		"http://example.com/renew",
		"http://example.com/q2",
		"http://example.com/q3",
	}
	for i, u := range want {
		if order[i] != u {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}

	// Accounting: four distinct requests delivered, four responses,
	// exactly one of them via bypass, nothing double-counted.
	s := c.Stats()
	if s.Requests != 4 || s.Responses != 4 || s.Bypassed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLoop_StaleRetryWithFullQueueStillDrains(t *testing.T) {
	// A stale response resubmits its request from the transport
	// goroutine. With the queue at capacity that Submit blocks, so the
	// goroutine must have already given up its slot or the run loop can
	// never free queue space and the pipeline wedges.
	c, err := New(Options{Enabled: true, Logger: logger.NewNopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var enterOnce sync.Once
	send := func(_ context.Context, r *sesslib.Request) (*sesslib.Response, error) {
		// Hold the single slot on the first attempt only; the retry
		// carries the renewed version and sails through.
		if r.URL == "http://example.com/first" && r.Stamp != nil && r.Stamp.Version == 0 {
			enterOnce.Do(func() { close(entered) })
			<-proceed
		}
		return &sesslib.Response{Request: r, StatusCode: 200}, nil
	}
	lp := NewLoop(ctx, c, send, logger.NewNopLogger(), 1)

	queued := cap(lp.submitCh)
	done := make(chan struct{}, queued+1)
	cb := func(*sesslib.Response) { done <- struct{}{} }

	lp.Submit(&sesslib.Request{URL: "http://example.com/first", Session: "s1", Callback: cb})
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never dispatched")
	}

	// Fill the queue to capacity while the only slot is held, then
	// renew the jar so the in-flight response comes back stale.
	for i := 0; i < queued; i++ {
		lp.Submit(&sesslib.Request{URL: fmt.Sprintf("http://example.com/q%d", i), Session: "s1", Callback: cb})
	}
	if _, err := c.Clear("s1", nil); err != nil {
		t.Fatal(err)
	}
	close(proceed)

	// Everything queued plus the retry of the first request completes.
	for i := 0; i < queued+1; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("dispatch stalled after %d of %d responses", i, queued+1)
		}
	}
	if s := c.Stats(); s.Retried != 1 {
		t.Errorf("retried = %d, want 1", s.Retried)
	}
}

func TestLoop_StaleResponseRetriedThroughLoop(t *testing.T) {
	tr := &orderedTransport{
		reply: func(r *sesslib.Request) *sesslib.Response {
			return &sesslib.Response{
				Request:    r,
				StatusCode: 200,
				Cookies:    []sesslib.Cookie{{Name: "sid", Value: "fresh", Domain: "d", Path: "/"}},
			}
		},
	}
	c, _, cancel := newTestLoop(t, tr, 0)
	defer cancel()

	// Stamp a request at v0, renew the jar to v1 while it is in flight,
	// then hand back its response: it must be retried, and the retry
	// flows through the loop and merges under v1.
	r := &sesslib.Request{URL: "http://example.com", Session: "s1"}
	c.PrepareRequest(r)
	c.Clear("s1", nil)

	resp := &sesslib.Response{Request: r, StatusCode: 200,
		Cookies: []sesslib.Cookie{{Name: "sid", Value: "stale", Domain: "d", Path: "/"}}}
	decision, err := c.HandleResponse(resp)
	if decision != Retried || err != nil {
		t.Fatalf("HandleResponse = (%s, %v)", decision, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Registry().Jar("s1").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("retried request never merged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.Registry().Jar("s1").Pairs()["sid"]; got != "fresh" {
		t.Errorf("merged cookie = %q, want fresh", got)
	}
	if s := c.Stats(); s.Retried != 1 {
		t.Errorf("retried = %d, want 1", s.Retried)
	}
}

func TestLoop_TransportErrorDoesNotReachJar(t *testing.T) {
	failing := func(ctx context.Context, r *sesslib.Request) (*sesslib.Response, error) {
		return nil, context.DeadlineExceeded
	}
	c, err := New(Options{Enabled: true, Logger: logger.NewNopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lp := NewLoop(ctx, c, failing, logger.NewNopLogger(), 0)

	lp.Submit(&sesslib.Request{URL: "http://example.com", Session: "s1"})
	time.Sleep(100 * time.Millisecond)
	lp.Wait()

	s := c.Stats()
	if s.Requests != 1 {
		t.Errorf("requests = %d, want 1", s.Requests)
	}
	if s.Responses != 0 {
		t.Errorf("failed delivery counted as a response: %+v", s)
	}
	if c.Registry().Jar("s1").Len() != 0 {
		t.Error("failed delivery mutated the jar")
	}
}
