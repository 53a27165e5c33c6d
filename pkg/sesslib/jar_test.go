package sesslib

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCookieJar_StartsAtVersionZero(t *testing.T) {
	j := NewCookieJar(DefaultSession)
	if v := j.Version(); v != 0 {
		t.Fatalf("new jar version = %d, want 0", v)
	}
	if j.Len() != 0 {
		t.Fatalf("new jar has %d cookies, want 0", j.Len())
	}
}

func TestCookieJar_MergeOverwrites(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"},
		{Name: "lang", Value: "en", Domain: "example.com", Path: "/"},
	})
	j.Merge([]Cookie{
		{Name: "sid", Value: "def", Domain: "example.com", Path: "/"},
	})

	pairs := j.Pairs()
	if pairs["sid"] != "def" {
		t.Errorf("sid = %q, want %q", pairs["sid"], "def")
	}
	if pairs["lang"] != "en" {
		t.Errorf("lang = %q, want %q", pairs["lang"], "en")
	}
	if j.Len() != 2 {
		t.Errorf("jar len = %d, want 2", j.Len())
	}
}

func TestCookieJar_MergeIdempotent(t *testing.T) {
	cookies := []Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"},
		{Name: "lang", Value: "en", Domain: "example.com", Path: "/"},
	}
	j := NewCookieJar("s1")
	j.Merge(cookies)
	once := j.Pairs()
	j.Merge(cookies)
	twice := j.Pairs()

	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d cookies", len(once), len(twice))
	}
	for k, v := range once {
		if twice[k] != v {
			t.Errorf("cookie %s changed after second merge: %q vs %q", k, v, twice[k])
		}
	}
}

func TestCookieJar_MergeDeletes(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"},
		{Name: "tmp", Value: "x", Domain: "example.com", Path: "/"},
	})

	// Empty value deletes, past expiry deletes.
	j.Merge([]Cookie{
		{Name: "sid", Value: "", Domain: "example.com", Path: "/"},
		{Name: "tmp", Value: "y", Domain: "example.com", Path: "/", Expiry: time.Now().Add(-time.Hour)},
	})
	if j.Len() != 0 {
		t.Fatalf("jar len = %d after deletions, want 0", j.Len())
	}
}

func TestCookieJar_MergeSkipsMalformed(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{
		{Name: "", Value: "broken", Domain: "example.com", Path: "/"},
		{Name: "ok", Value: "1", Domain: "example.com", Path: "/"},
	})
	if j.Len() != 1 {
		t.Fatalf("jar len = %d, want 1 (malformed entry must not drop the rest)", j.Len())
	}
	if j.Pairs()["ok"] != "1" {
		t.Error("well-formed cookie missing after merge with malformed sibling")
	}
}

func TestCookieJar_RenewIncrementsVersion(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"}})

	for want := int64(1); want <= 5; want++ {
		got := j.Renew()
		if got != want {
			t.Fatalf("renew %d returned version %d", want, got)
		}
		if j.Len() != 0 {
			t.Fatalf("jar not empty immediately after renew %d", want)
		}
	}
	if j.RenewedAt().IsZero() {
		t.Error("RenewedAt still zero after renew")
	}
}

func TestCookieJar_MergeAt(t *testing.T) {
	j := NewCookieJar("s1")
	cookies := []Cookie{{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"}}

	if out := j.MergeAt(0, cookies); out != OutcomeMerged {
		t.Fatalf("MergeAt(0) = %s, want merged", out)
	}
	j.Renew()

	// Stamped with the pre-renewal version: nothing merges.
	if out := j.MergeAt(0, cookies); out != OutcomeStale {
		t.Fatalf("MergeAt(0) after renew = %s, want stale", out)
	}
	if j.Len() != 0 {
		t.Fatal("stale merge mutated the jar")
	}

	// A stamp from the future is an invariant violation.
	if out := j.MergeAt(7, cookies); out != OutcomeFuture {
		t.Fatalf("MergeAt(7) = %s, want future", out)
	}
	if j.Len() != 0 {
		t.Fatal("future merge mutated the jar")
	}
}

func TestCookieJar_IssueConsistency(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"}})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			j.Renew()
			j.Merge([]Cookie{{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"}})
		}
		close(stop)
	}()

	// Readers must never observe old cookies with a new version: a
	// response merged at the version Issue returned must succeed or be
	// reported stale, never future.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, v := j.Issue()
				if out := j.MergeAt(v, nil); out == OutcomeFuture {
					t.Error("Issue returned a version newer than the live jar")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCookie_String(t *testing.T) {
	exp := time.Date(2026, time.March, 9, 10, 18, 14, 0, time.UTC)
	c := Cookie{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", Expiry: exp}
	got := c.String()
	want := "sid=abc; expires=Mon, 09-Mar-2026 10:18:14 UTC; path=/; domain=.example.com"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	session := Cookie{Name: "sid", Value: "abc", Domain: "example.com", Path: "/"}
	if !strings.Contains(session.String(), "expires=session") {
		t.Errorf("session cookie String() = %q, want expires=session", session.String())
	}
}

func TestCookieJar_Snapshots(t *testing.T) {
	j := NewCookieJar("s1")
	j.Merge([]Cookie{
		{Name: "b", Value: "2", Domain: "example.com", Path: "/"},
		{Name: "a", Value: "1", Domain: "example.com", Path: "/"},
	})

	cookies := j.Cookies()
	if len(cookies) != 2 || cookies[0].Name != "a" || cookies[1].Name != "b" {
		t.Fatalf("Cookies() not sorted: %+v", cookies)
	}

	if h := j.Header(); h != "a=1; b=2" {
		t.Errorf("Header() = %q, want %q", h, "a=1; b=2")
	}

	lines := j.Strings()
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a=1; ") {
		t.Errorf("Strings() = %v", lines)
	}

	// Snapshots are copies.
	cookies[0].Value = "mutated"
	if j.Pairs()["a"] != "1" {
		t.Error("mutating a snapshot changed the jar")
	}
}
