package stream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/query"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testFacade(t *testing.T, loaded bool) *query.Facade {
	t.Helper()
	st := ephem.NewStore()
	if loaded {
		at := time.Date(2023, 2, 27, 13, 20, 0, 0, time.UTC)
		err := st.Restore(ephem.Snapshot{Source: "test", FetchedAt: time.Now(), Records: []ephem.RawRecord{
			{Epoch: ephem.FormatEpoch(at), X: -5097.5, Y: 1610.3, Z: -4194.4, XDot: -4.5, YDot: -4.8, ZDot: 3.7},
		}})
		if err != nil {
			t.Fatal(err)
		}
	}
	return query.New(st, nil, testLogger())
}

// readEvent reads one SSE event (up to the blank line separator).
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading event: %v", err)
		}
		if line == "\n" {
			return sb.String()
		}
		sb.WriteString(line)
	}
}

func TestStream_EmitsLocationEvents(t *testing.T) {
	h := NewHandler(testFacade(t, true), Config{Interval: 20 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", got)
	}

	r := bufio.NewReader(resp.Body)
	for i := 0; i < 2; i++ {
		ev := readEvent(t, r)
		if !strings.Contains(ev, "event: location") {
			t.Errorf("event %d = %q, want location event", i, ev)
		}
		if !strings.Contains(ev, `"seconds_from_now"`) {
			t.Errorf("event %d missing seconds_from_now: %q", i, ev)
		}
	}
}

func TestStream_NotLoadedKeepsStreamOpen(t *testing.T) {
	h := NewHandler(testFacade(t, false), Config{Interval: 20 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	ev := readEvent(t, bufio.NewReader(resp.Body))
	if !strings.Contains(ev, "event: error") || !strings.Contains(ev, "ephemeris not loaded") {
		t.Errorf("event = %q, want not-loaded error event", ev)
	}
}

func TestLimiter(t *testing.T) {
	l := newLimiter(2, 100)

	if !l.acquire("1.2.3.4") || !l.acquire("1.2.3.4") {
		t.Fatal("first two acquires must succeed")
	}
	if l.acquire("1.2.3.4") {
		t.Fatal("third acquire for same IP must fail")
	}
	if !l.acquire("5.6.7.8") {
		t.Fatal("different IP must not be affected")
	}

	l.release("1.2.3.4")
	if !l.acquire("1.2.3.4") {
		t.Fatal("acquire after release must succeed")
	}
	if l.count("1.2.3.4") != 2 {
		t.Fatalf("count = %d, want 2", l.count("1.2.3.4"))
	}
}

func TestLimiterGlobalCap(t *testing.T) {
	l := newLimiter(2, 3)

	if !l.acquire("1.1.1.1") || !l.acquire("2.2.2.2") || !l.acquire("3.3.3.3") {
		t.Fatal("acquires under the global cap must succeed")
	}
	if l.acquire("4.4.4.4") {
		t.Fatal("acquire over the global cap must fail even for a fresh IP")
	}

	l.release("2.2.2.2")
	if !l.acquire("4.4.4.4") {
		t.Fatal("acquire after a release must succeed")
	}
}
