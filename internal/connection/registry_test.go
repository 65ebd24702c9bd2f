package connection

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu          sync.Mutex
	frames      []*stomp.Frame
	closed      bool
	sendErr     error
	closeErr    error
	afterClose  atomic.Int32
	closeCalled atomic.Int32
}

func (h *fakeHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.afterClose.Add(1)
	}
	if h.sendErr != nil {
		return h.sendErr
	}
	f, err := stomp.Parse(string(data))
	if err != nil {
		return err
	}
	h.frames = append(h.frames, f)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.closeCalled.Add(1)
	return h.closeErr
}

func (h *fakeHandle) received() []*stomp.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*stomp.Frame(nil), h.frames...)
}

func TestSendDirect(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	r.Register(1, h)

	assert.True(t, r.SendDirect(1, stomp.Receipt("r1")))
	assert.False(t, r.SendDirect(2, stomp.Receipt("r1")), "unknown id is a silent miss")

	h.sendErr = errors.New("broken pipe")
	assert.False(t, r.SendDirect(1, stomp.Receipt("r2")))

	require.Len(t, h.received(), 1)
	assert.Equal(t, "r1", h.received()[0].Headers.Value(stomp.HeaderReceiptID))
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeHandle{}, &fakeHandle{}
	r.Register(1, first)
	r.Register(1, second)
	assert.Equal(t, 1, r.Len())

	r.SendDirect(1, stomp.Receipt("r"))
	assert.Empty(t, first.received())
	assert.Len(t, second.received(), 1)
}

func TestBroadcastTagsEachSubscriber(t *testing.T) {
	r := NewRegistry()
	a, b, c := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	r.Register(1, a)
	r.Register(2, b)
	r.Register(3, c)
	r.Subscribe("/topic/x", 1, "s1")
	r.Subscribe("/topic/x", 2, "s2")

	delivered := r.Broadcast("/topic/x", stomp.Message("/topic/x", "hello"))
	assert.Equal(t, 2, delivered)

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Empty(t, c.received())
	assert.Equal(t, "s1", a.received()[0].Headers.Value(stomp.HeaderSubscription))
	assert.Equal(t, "s2", b.received()[0].Headers.Value(stomp.HeaderSubscription))
	assert.Equal(t, "hello", a.received()[0].Body)
	_, stamped := a.received()[0].Headers.Get(stomp.HeaderMessageID)
	assert.False(t, stamped)
}

func TestPublishStampsDistinctMessageIDs(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeHandle{}, &fakeHandle{}
	r.Register(1, a)
	r.Register(2, b)
	r.Subscribe("/topic/x", 1, "s1")
	r.Subscribe("/topic/x", 2, "s2")

	original := stomp.Message("/topic/x", "hello")
	assert.Equal(t, 2, r.Publish("/topic/x", original))

	idA := a.received()[0].Headers.Value(stomp.HeaderMessageID)
	idB := b.received()[0].Headers.Value(stomp.HeaderMessageID)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, "1", idA)
	assert.Equal(t, "2", idB)
	_, touched := original.Headers.Get(stomp.HeaderSubscription)
	assert.False(t, touched, "the caller's frame is not modified")
}

func TestBroadcastUnknownChannel(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Broadcast("/nobody", stomp.Message("/nobody", "x")))
}

func TestSubscribeReplacesID(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("/a", 1, "s1")
	assert.False(t, sub.Replaced)
	assert.Empty(t, sub.Previous)

	sub = r.Subscribe("/a", 1, "s9")
	assert.Equal(t, Subscription{Destination: "/a", ID: "s9", Previous: "s1", Replaced: true}, sub)
	assert.Equal(t, map[int]string{1: "s9"}, r.Subscribers("/a"))
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("/a", 1, "s1")
	r.Subscribe("/a", 2, "s2")

	r.Unsubscribe("/a", 1)
	r.Unsubscribe("/a", 42)
	r.Unsubscribe("", 2)
	r.Unsubscribe("/unknown", 2)

	assert.Equal(t, map[int]string{2: "s2"}, r.Subscribers("/a"))
}

func TestDisconnect(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{closeErr: errors.New("already gone")}
	r.Register(1, h)
	r.Subscribe("/a", 1, "s1")
	r.Subscribe("/b", 1, "s2")

	require.NoError(t, r.Disconnect(1), "close errors are logged, not returned")
	assert.Equal(t, int32(1), h.closeCalled.Load())
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Connected(1))
	assert.Empty(t, r.Subscribers("/a"))
	assert.Empty(t, r.Subscribers("/b"))
	assert.False(t, r.SendDirect(1, stomp.Receipt("late")))

	assert.ErrorIs(t, r.Disconnect(1), ErrUnknownConnection)
}

func TestNextMessageIDConcurrent(t *testing.T) {
	r := NewRegistry()
	const workers, per = 8, 500
	ids := make(chan uint64, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				ids <- r.NextMessageID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]struct{}, workers*per)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate message id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*per)
}

func TestBroadcastRacingDisconnectNeverWritesAfterClose(t *testing.T) {
	r := NewRegistry()
	const conns = 32
	handles := make([]*fakeHandle, conns)
	for i := range handles {
		handles[i] = &fakeHandle{}
		r.Register(i, handles[i])
		r.Subscribe("/race", i, "s"+strconv.Itoa(i))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.Publish("/race", stomp.Message("/race", "x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < conns; i++ {
			assert.NoError(t, r.Disconnect(i))
		}
	}()
	wg.Wait()

	for i, h := range handles {
		assert.Zero(t, h.afterClose.Load(), "handle %d written after close", i)
	}
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentSubscribeAndBroadcast(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 16; i++ {
		r.Register(i, &fakeHandle{})
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Subscribe("/busy", id, "s")
				r.Broadcast("/busy", stomp.Message("/busy", "x"))
				r.Unsubscribe("/busy", id)
			}
		}(i)
	}
	wg.Wait()
	assert.Empty(t, r.Subscribers("/busy"))
}

func TestNextConnectionIDNeverRepeats(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 1, r.NextConnectionID())
	assert.Equal(t, 2, r.NextConnectionID())
}
