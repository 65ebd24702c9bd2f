// Package connection keeps track of live connections and the channels they subscribe to.
package connection

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrConnectionClosed  = errors.New("connection closed")
)

// entry serialises writes to one handle and refuses them once the handle is closed.
type entry struct {
	mu     sync.Mutex
	handle Handle
	closed bool
}

func (e *entry) send(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrConnectionClosed
	}
	return e.handle.Send(data)
}

func (e *entry) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.handle.Close()
}

type channel struct {
	mu          sync.RWMutex
	subscribers map[int]string
}

type subscriber struct {
	connID         int
	subscriptionID string
}

// Registry is safe for concurrent use. Channels are created on first subscribe
// and kept afterwards even when empty.
type Registry struct {
	connections sync.Map // int -> *entry
	count       atomic.Int64

	mu       sync.RWMutex
	channels map[string]*channel

	messageID atomic.Uint64
	nextConn  atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*channel)}
}

// Register adds a connection, replacing any handle already stored under id.
func (r *Registry) Register(id int, handle Handle) {
	if _, loaded := r.connections.Swap(id, &entry{handle: handle}); !loaded {
		r.count.Add(1)
	}
	logger.DebugF("[conn %d] Registered", id)
}

// SendDirect writes frame to one connection. It returns false when the
// connection is unknown or closed, or when the write fails.
func (r *Registry) SendDirect(id int, frame *stomp.Frame) bool {
	value, ok := r.connections.Load(id)
	if !ok {
		return false
	}
	if err := value.(*entry).send(frame.Bytes()); err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			logger.DebugF("[conn %d] Dropped %s for closed connection", id, frame.Command)
		} else {
			logger.WarnF("[conn %d] Fail to deliver %s frame, details: %v", id, frame.Command, err)
		}
		return false
	}
	return true
}

// Broadcast delivers a copy of frame to every subscriber of name with the
// subscription header set to that subscriber's id. It returns the number of
// successful deliveries.
func (r *Registry) Broadcast(name string, frame *stomp.Frame) int {
	return r.fanOut(name, frame, false)
}

// Publish is Broadcast that also stamps each copy with a fresh message-id.
func (r *Registry) Publish(name string, frame *stomp.Frame) int {
	return r.fanOut(name, frame, true)
}

func (r *Registry) fanOut(name string, frame *stomp.Frame, stampID bool) int {
	delivered := 0
	for _, sub := range r.snapshot(name) {
		c := frame.Clone()
		c.Headers.Set(stomp.HeaderSubscription, sub.subscriptionID)
		if stampID {
			c.Headers.Set(stomp.HeaderMessageID, strconv.FormatUint(r.NextMessageID(), 10))
		}
		if r.SendDirect(sub.connID, c) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) snapshot(name string) []subscriber {
	ch := r.lookup(name)
	if ch == nil {
		return nil
	}
	ch.mu.RLock()
	subs := make([]subscriber, 0, len(ch.subscribers))
	for connID, subID := range ch.subscribers {
		subs = append(subs, subscriber{connID: connID, subscriptionID: subID})
	}
	ch.mu.RUnlock()

	slices.SortFunc(subs, func(a, b subscriber) int { return a.connID - b.connID })
	return subs
}

func (r *Registry) lookup(name string) *channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[name]
}

func (r *Registry) getOrCreate(name string) *channel {
	if ch := r.lookup(name); ch != nil {
		return ch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	if !ok {
		ch = &channel{subscribers: make(map[int]string)}
		r.channels[name] = ch
	}
	return ch
}

// Subscription is the outcome of Subscribe. Callers mirroring subscriptions
// locally copy Destination and ID from it.
type Subscription struct {
	Destination string
	ID          string
	Previous    string
	Replaced    bool
}

// Subscribe records that id receives name under subscriptionID, replacing any
// earlier subscription of id to name.
func (r *Registry) Subscribe(name string, id int, subscriptionID string) Subscription {
	ch := r.getOrCreate(name)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	previous, replaced := ch.subscribers[id]
	ch.subscribers[id] = subscriptionID
	return Subscription{Destination: name, ID: subscriptionID, Previous: previous, Replaced: replaced}
}

// Unsubscribe removes id from name. Unknown channels and ids are ignored.
func (r *Registry) Unsubscribe(name string, id int) {
	if name == "" {
		return
	}
	ch := r.lookup(name)
	if ch == nil {
		return
	}
	ch.mu.Lock()
	delete(ch.subscribers, id)
	ch.mu.Unlock()
}

// Disconnect closes the handle of id and removes it from every channel.
// Close failures are logged, not returned.
func (r *Registry) Disconnect(id int) error {
	value, ok := r.connections.LoadAndDelete(id)
	if !ok {
		return ErrUnknownConnection
	}
	r.count.Add(-1)

	if err := value.(*entry).close(); err != nil {
		logger.WarnF("[conn %d] Error occured while closing connection, details: %v", id, err)
	}

	r.mu.RLock()
	channels := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	for _, ch := range channels {
		ch.mu.Lock()
		delete(ch.subscribers, id)
		ch.mu.Unlock()
	}
	logger.DebugF("[conn %d] Disconnected", id)
	return nil
}

// Subscribers returns a copy of the connection id to subscription id mapping of name.
func (r *Registry) Subscribers(name string) map[int]string {
	result := make(map[int]string)
	for _, sub := range r.snapshot(name) {
		result[sub.connID] = sub.subscriptionID
	}
	return result
}

func (r *Registry) Connected(id int) bool {
	_, ok := r.connections.Load(id)
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// NextConnectionID allocates an id for a newly accepted connection. Ids start
// at 1 and are never reused.
func (r *Registry) NextConnectionID() int {
	return int(r.nextConn.Add(1))
}

// NextMessageID returns a process-unique, increasing message id starting at 1.
func (r *Registry) NextMessageID() uint64 {
	return r.messageID.Add(1)
}
