package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/utils"
)

const writeTimeout = 30 * time.Second

// Server accepts STOMP connections over TCP.
type Server struct {
	cfg         config.ServerConfig
	broker      *protocol.Broker
	readTimeout time.Duration

	listener net.Listener
	sem      chan struct{}
	pool     *ActorPool
	dispatch dispatcher

	conns    sync.Map // connID -> net.Conn
	wg       sync.WaitGroup
	shutdown atomic.Bool
	ready    chan struct{}
	stopped  chan struct{}
}

func NewServer(cfg config.ServerConfig, broker *protocol.Broker) *Server {
	maxConnections := cfg.MaxConnections
	if maxConnections <= 0 {
		maxConnections = 10000
	}
	s := &Server{
		cfg:         cfg,
		broker:      broker,
		readTimeout: utils.MustParseStringTime(cfg.ReadTimeout),
		sem:         make(chan struct{}, maxConnections),
		dispatch:    inline,
		ready:       make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	if cfg.Strategy == config.StrategyReactor {
		s.pool = NewActorPool(cfg.Workers)
		s.dispatch = func(connID int, task func()) bool {
			if !s.pool.Submit(connID, task) {
				logger.DebugF("[conn %d] Worker pool closed, dropping task", connID)
				return false
			}
			return true
		}
	}
	return s
}

// Addr returns the bound address once StartServer is listening.
func (s *Server) Addr() net.Addr {
	<-s.ready
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StartServer listens on the configured port and serves until Invoke is called.
func (s *Server) StartServer() error {
	defer close(s.stopped)
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		close(s.ready)
		return err
	}
	s.listener = ln
	close(s.ready)
	registry := s.broker.Registry()
	logger.InfoF("STOMP Server (%s) Listen On %s", s.cfg.Strategy, ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		logger.DebugF("Accepted new connection from %s", conn.RemoteAddr().String())

		s.sem <- struct{}{}
		connID := registry.NextConnectionID()
		s.conns.Store(connID, conn)
		s.wg.Add(1)
		go func(c net.Conn) {
			defer func() {
				s.conns.Delete(connID)
				<-s.sem
				s.wg.Done()
			}()
			s.serve(connID, c)
		}(conn)
	}
}

func (s *Server) serve(connID int, conn net.Conn) {
	engine := s.broker.NewEngine()
	handle := connection.NewNetHandle(conn, connID, writeTimeout)
	s.dispatch(connID, func() { engine.Start(connID, handle) })

	handler := &ConnectionHandler{
		conn:        conn,
		connID:      connID,
		engine:      engine,
		reader:      stomp.NewReader(conn, s.cfg.MaxFrameSize),
		readTimeout: s.readTimeout,
		dispatch:    s.dispatch,
	}
	logger.InfoF("[conn %d] New connection from %s", connID, conn.RemoteAddr().String())
	handler.handleConnection()
}

// Invoke closes the listener and every open connection, then waits for the handlers to finish.
func (s *Server) Invoke(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	logger.InfoF("Closing STOMP server")
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.WarnF("Server close error: %v", err)
		}
		select {
		case <-s.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.conns.Range(func(_, value any) bool {
		_ = value.(net.Conn).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		if s.pool != nil {
			s.pool.Close()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
