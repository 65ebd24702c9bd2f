package connection

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
)

// Handle is the transport capability of one connection.
type Handle interface {
	Send(data []byte) error
	Close() error
}

// NetHandle writes to a net.Conn. A zero writeTimeout disables the write deadline.
type NetHandle struct {
	conn         net.Conn
	connID       int
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func NewNetHandle(conn net.Conn, connID int, writeTimeout time.Duration) *NetHandle {
	return &NetHandle{conn: conn, connID: connID, writeTimeout: writeTimeout}
}

func (h *NetHandle) Send(data []byte) error {
	if h.writeTimeout > 0 {
		_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		defer func() { _ = h.conn.SetWriteDeadline(time.Time{}) }()
	}
	return Send(h.conn, data, h.connID)
}

// Close closes the underlying conn once. Errors from an already closed conn are ignored.
func (h *NetHandle) Close() error {
	h.closeOnce.Do(func() {
		if err := h.conn.Close(); err != nil && !IsNetClosedError(err) {
			h.closeErr = err
		}
	})
	return h.closeErr
}

// Send writes all of data to conn.
func Send(conn net.Conn, data []byte, connID int) error {
	total := 0
	for total < len(data) {
		n, err := conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[conn %d] Fail to send data, details: %v", connID, err)
			return err
		}
		total += n
	}
	logger.DebugF("[conn %d] Send %d bytes to client", connID, total)
	return nil
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}
