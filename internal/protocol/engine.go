package protocol

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

const storeTimeout = 10 * time.Second

type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Engine runs the command state machine of one connection. Process and
// ConnectionClosed must not be called concurrently; State and Terminated may be
// read from any goroutine.
type Engine struct {
	broker *Broker
	connID int
	state  atomic.Int32

	user string
	// destination -> subscription id
	subscriptions map[string]string
}

// Start registers the connection with the broker's registry.
func (e *Engine) Start(connID int, handle connection.Handle) {
	e.connID = connID
	e.broker.registry.Register(connID, handle)
	logger.DebugF("[conn %d] Protocol engine started", connID)
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Terminated() bool {
	return e.State() == StateTerminated
}

func (e *Engine) ConnID() int {
	return e.connID
}

// User returns the logged in username, empty before CONNECT.
func (e *Engine) User() string {
	return e.user
}

// Subscriptions returns a copy of the destination to subscription id mapping.
func (e *Engine) Subscriptions() map[string]string {
	result := make(map[string]string, len(e.subscriptions))
	for k, v := range e.subscriptions {
		result[k] = v
	}
	return result
}

// Process handles the text of one frame. Frames arriving after termination are dropped.
func (e *Engine) Process(text string) {
	if e.Terminated() {
		logger.DebugF("[conn %d] Dropping frame received after termination", e.connID)
		return
	}
	frame, err := stomp.Parse(text)
	if err != nil {
		e.handleError(nil, wrapError(err, KindParse, "malformed frame received"))
		return
	}
	logger.DebugF("[conn %d] Receive %s frame", e.connID, frame.Command)

	if err := e.dispatch(frame); err != nil {
		e.handleError(frame, err)
	}
}

// Fail terminates the connection because its byte stream could not be framed,
// for example when a frame exceeds the size limit.
func (e *Engine) Fail(err error) {
	if e.Terminated() {
		return
	}
	message := "malformed frame received"
	if errors.Is(err, stomp.ErrFrameTooLarge) {
		message = "frame too large"
	}
	e.handleError(nil, wrapError(err, KindParse, message))
}

// ConnectionClosed cleans up after the peer went away without DISCONNECT.
func (e *Engine) ConnectionClosed() {
	if e.Terminated() {
		return
	}
	logger.InfoF("[conn %d] Connection lost, cleaning up", e.connID)
	e.terminate()
}

func (e *Engine) dispatch(frame *stomp.Frame) error {
	var err error
	switch frame.Command {
	case stomp.CommandConnect, stomp.CommandStomp:
		err = e.connect(frame)
	case stomp.CommandSend:
		err = e.authenticated(frame, e.send)
	case stomp.CommandSubscribe:
		err = e.authenticated(frame, e.subscribe)
	case stomp.CommandUnsubscribe:
		err = e.authenticated(frame, e.unsubscribe)
	case stomp.CommandDisconnect:
		// DISCONNECT answers its own receipt before the teardown.
		return e.authenticated(frame, e.disconnect)
	default:
		return newError(KindProtocol, "unknown command", string(frame.Command))
	}
	if err != nil {
		return err
	}

	if receipt, ok := frame.Headers.Get(stomp.HeaderReceipt); ok {
		e.reply(stomp.Receipt(receipt))
	}
	return nil
}

func (e *Engine) authenticated(frame *stomp.Frame, handler func(*stomp.Frame) error) error {
	if e.State() != StateAuthenticated {
		return newError(KindAuthentication, "not connected", string(frame.Command)+" received before CONNECT")
	}
	return handler(frame)
}

func (e *Engine) reply(frame *stomp.Frame) bool {
	if !e.broker.registry.SendDirect(e.connID, frame) {
		logger.WarnF("[conn %d] Fail to send %s frame", e.connID, frame.Command)
		return false
	}
	return true
}

func requireHeader(frame *stomp.Frame, key string) (string, error) {
	value, ok := frame.Headers.Get(key)
	if !ok {
		return "", newError(KindProtocol, "missing "+key+" header", string(frame.Command))
	}
	return value, nil
}

// handleError sends the ERROR frame and tears the connection down. It runs at
// most once per connection because the engine is terminated afterwards.
func (e *Engine) handleError(frame *stomp.Frame, err error) {
	if e.Terminated() {
		return
	}
	var perr *Error
	if !errors.As(err, &perr) {
		perr = wrapError(err, KindProtocol, err.Error())
	}
	switch KindOf(err) {
	case KindAuthentication:
		logger.InfoF("[conn %d] Rejecting client: %v", e.connID, perr)
	default:
		logger.WarnF("[conn %d] Closing connection after %s error: %v", e.connID, perr.Kind, perr)
	}

	e.reply(stomp.Error(perr.Message, frame))
	e.terminate()
}

func (e *Engine) terminate() {
	e.state.Store(int32(StateTerminated))
	e.logout()
	clear(e.subscriptions)

	if !e.broker.registry.Connected(e.connID) {
		logger.DebugF("[conn %d] Already removed from registry", e.connID)
		return
	}
	if err := e.broker.registry.Disconnect(e.connID); err != nil {
		logger.WarnF("[conn %d] Fail to disconnect, details: %v", e.connID, err)
	}
}

func (e *Engine) logout() {
	if e.user == "" {
		return
	}
	e.broker.logins.Release(e.connID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := e.broker.store.Logout(ctx, e.connID); err != nil {
		logger.ErrorF("[conn %d] Fail to record logout of %s, details: %v", e.connID, e.user, err)
	}
	logger.InfoF("[conn %d] User %s logged out", e.connID, e.user)
	e.user = ""
}
