package server

import (
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

// dispatcher decides where the engine work of one connection runs. It reports
// false when the task was dropped.
type dispatcher func(connID int, task func()) bool

func inline(_ int, task func()) bool {
	task()
	return true
}

type ConnectionHandler struct {
	conn        net.Conn
	connID      int
	engine      *protocol.Engine
	reader      *stomp.Reader
	readTimeout time.Duration
	dispatch    dispatcher
}

func handleReadError(connID int, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[conn %d] Client close connection", connID)
	case errors.Is(err, io.ErrUnexpectedEOF):
		logger.WarnF("[conn %d] Client closed connection in the middle of a frame", connID)
	case os.IsTimeout(err):
		logger.WarnF("[conn %d] Reading timeout", connID)
	case connection.IsNetClosedError(err):
		logger.DebugF("[conn %d] Connection closed locally", connID)
	default:
		logger.ErrorF("[conn %d] Error occured while reading frame, details: %v", connID, err)
	}
}

func (c *ConnectionHandler) readFrame() (string, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.reader.ReadFrame()
}

func (c *ConnectionHandler) closeConn() {
	logger.DebugF("[conn %d] Connection closed", c.connID)
	if err := c.conn.Close(); err != nil && !connection.IsNetClosedError(err) {
		logger.WarnF("[conn %d] Error occured while closing connection, details: %v", c.connID, err)
	}
}

// handleConnection reads frames until the engine terminates or the stream ends.
// The socket is closed by the last task dispatched for the connection, so every
// frame read before it is answered first.
func (c *ConnectionHandler) handleConnection() {
	finish := c.engine.ConnectionClosed
	for !c.engine.Terminated() {
		text, err := c.readFrame()
		if err != nil {
			var parseErr *stomp.ParseError
			if errors.As(err, &parseErr) {
				logger.WarnF("[conn %d] Fail to read frame, details: %v", c.connID, err)
				finish = func() { c.engine.Fail(err) }
			} else {
				handleReadError(c.connID, err)
			}
			break
		}
		if !c.dispatch(c.connID, func() { c.engine.Process(text) }) {
			break
		}
	}

	if !c.dispatch(c.connID, func() {
		finish()
		c.closeConn()
	}) {
		c.closeConn()
	}
}
