package streamclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffSchedule(t *testing.T) {
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	d := initialBackoff
	for _, expected := range want {
		d = nextBackoff(d)
		assert.Equal(t, expected, d)
	}
}

func TestRunDeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: scan\ndata: {\"n\":1}\n\n")
		fmt.Fprint(w, "event: job_ended\ndata: {\"n\":2}\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 4)
	c := New(srv.URL, testLogger())
	go func() {
		_ = c.Run(ctx, func(msg Message) { got <- msg })
	}()

	first := <-got
	assert.Equal(t, "scan", first.Event)
	second := <-got
	assert.Equal(t, "job_ended", second.Event)
	assert.Equal(t, `{"n":2}`, second.Data)
}

func TestRunReconnectsAndResyncs(t *testing.T) {
	var connects atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connects.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: scan\ndata: {}\n\n")
		// Dropping the stream forces the client back through its
		// reconnect path.
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var resyncs atomic.Int64
	c := New(srv.URL, testLogger(), WithOnConnect(func() { resyncs.Add(1) }))

	done := make(chan struct{})
	seen := make(chan struct{}, 16)
	go func() {
		defer close(done)
		_ = c.Run(ctx, func(Message) { seen <- struct{}{} })
	}()

	// Wait for at least two connections, proving a reconnect happened.
	deadline := time.After(10 * time.Second)
	for connects.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("client never reconnected")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	assert.GreaterOrEqual(t, resyncs.Load(), int64(2))
	assert.NotEmpty(t, seen)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(Message) {})
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
