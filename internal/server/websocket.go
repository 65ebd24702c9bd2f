package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
)

// WebSocketHandle sends each frame as one text message.
type WebSocketHandle struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (h *WebSocketHandle) Send(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *WebSocketHandle) Close() error {
	h.mu.Lock()
	_ = h.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	h.mu.Unlock()
	return h.conn.Close()
}

// WebSocketServer serves STOMP over WebSocket. Every text message carries one frame.
type WebSocketServer struct {
	cfg          config.WebSocketConfig
	host         string
	maxFrameSize int
	broker       *protocol.Broker
	upgrader     websocket.Upgrader

	httpServer *http.Server
	conns      sync.Map // connID -> *websocket.Conn
	wg         sync.WaitGroup
	shutdown   atomic.Bool
}

func NewWebSocketServer(cfg config.WebSocketConfig, host string, maxFrameSize int, broker *protocol.Broker) *WebSocketServer {
	s := &WebSocketServer{
		cfg:          cfg,
		host:         host,
		maxFrameSize: maxFrameSize,
		broker:       broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{"v12.stomp"},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *WebSocketServer) Router() http.Handler {
	path := s.cfg.Path
	if path == "" {
		path = "/stomp"
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok " + strconv.Itoa(s.broker.Registry().Len()) + "\n"))
	})
	r.Get(path, s.handleUpgrade)
	return r
}

// ListenAndServe blocks until Invoke shuts the server down.
func (s *WebSocketServer) ListenAndServe() error {
	logger.InfoF("STOMP WebSocket Server Listen On %s%s", s.httpServer.Addr, s.cfg.Path)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebSocketServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.shutdown.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnF("WebSocket upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	connID := s.broker.Registry().NextConnectionID()
	s.conns.Store(connID, conn)
	s.wg.Add(1)
	defer func() {
		s.conns.Delete(connID)
		s.wg.Done()
	}()

	logger.InfoF("[conn %d] New WebSocket connection from %s", connID, r.RemoteAddr)
	s.serve(connID, conn)
}

func (s *WebSocketServer) serve(connID int, conn *websocket.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.WarnF("[conn %d] Error occured while closing connection, details: %v", connID, err)
		}
	}()
	if s.maxFrameSize > 0 {
		conn.SetReadLimit(int64(s.maxFrameSize) + 1)
	}

	engine := s.broker.NewEngine()
	engine.Start(connID, &WebSocketHandle{conn: conn})

	for !engine.Terminated() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				engine.Fail(&stomp.ParseError{Reason: stomp.ErrFrameTooLarge})
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				logger.WarnF("[conn %d] WebSocket closed unexpectedly: %v", connID, err)
				engine.ConnectionClosed()
			default:
				logger.InfoF("[conn %d] Client close connection", connID)
				engine.ConnectionClosed()
			}
			return
		}
		text := string(data)
		if strings.Trim(text, "\r\n") == "" {
			continue
		}
		engine.Process(text)
	}
}

// Invoke shuts the HTTP server down and closes every WebSocket connection.
func (s *WebSocketServer) Invoke(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	logger.InfoF("Closing STOMP WebSocket server")
	err := s.httpServer.Shutdown(ctx)
	s.conns.Range(func(_, value any) bool {
		_ = value.(*websocket.Conn).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
