package hub

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwalsh-mfg/barcode-verifier/constants"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscribeReceivesPublished(t *testing.T) {
	h := New(testLogger())
	defer h.Close()

	_, ch := h.Subscribe()
	h.Publish(Event{Type: constants.EventScan, Data: "payload"})

	evt := <-ch
	assert.Equal(t, constants.EventScan, evt.Type)
	assert.Equal(t, "payload", evt.Data)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New(testLogger())
	defer h.Close()

	id, ch := h.Subscribe()
	require.Equal(t, 1, h.Count())

	h.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Count())

	// Unknown or repeated ids are ignored.
	h.Unsubscribe(id)
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	h := New(testLogger(), WithQueueSize(2))
	defer h.Close()

	_, slow := h.Subscribe()
	for i := 0; i < 5; i++ {
		h.Publish(Event{Type: constants.EventScan, Data: i})
	}

	// The queue holds at most its capacity; the newest event survives
	// because a full queue evicts its oldest entry.
	var got []any
	for len(slow) > 0 {
		evt := <-slow
		got = append(got, evt.Data)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[len(got)-1])
}

func TestEachSubscriberGetsOwnQueue(t *testing.T) {
	h := New(testLogger(), WithQueueSize(2))
	defer h.Close()

	_, slow := h.Subscribe()
	_, fast := h.Subscribe()

	for i := 0; i < 5; i++ {
		h.Publish(Event{Type: constants.EventShiftUpdate, Data: i})
		// The fast subscriber drains as events arrive and misses nothing.
		evt := <-fast
		assert.Equal(t, i, evt.Data)
	}
	assert.Len(t, slow, 2)
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	h := New(testLogger())

	_, a := h.Subscribe()
	_, b := h.Subscribe()
	h.Close()
	h.Close() // idempotent

	_, open := <-a
	assert.False(t, open)
	_, open = <-b
	assert.False(t, open)

	// Late subscribers get an already-closed channel.
	_, late := h.Subscribe()
	_, open = <-late
	assert.False(t, open)

	// Publishing after close is a no-op.
	h.Publish(Event{Type: constants.EventScan})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	h := New(testLogger(), WithQueueSize(4))
	defer h.Close()

	const subscribers = 16

	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		id, ch := h.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Unsubscribe(id)
		}()
	}

	// Publish concurrently with the unsubscribes; the shared mutex keeps
	// sends off closed channels.
	for i := 0; i < 100; i++ {
		h.Publish(Event{Type: constants.EventScan, Data: i})
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}
