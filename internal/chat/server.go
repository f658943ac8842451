package chat

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	defaultWriteTimeout = 10 * time.Second
	minAcceptBackoff    = 5 * time.Millisecond
	maxAcceptBackoff    = time.Second
)

// Server accepts connections and runs each username handshake on the accept
// goroutine before handing the session its own read loop.
type Server struct {
	addr         string
	logger       *slog.Logger
	registry     *Registry
	broadcaster  *Broadcaster
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	pending  net.Conn
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Server)

// WithWriteTimeout bounds each write to a client. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.writeTimeout = d
		}
	}
}

func NewServer(addr string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()
	s := &Server{
		addr:         addr,
		logger:       logger,
		registry:     reg,
		broadcaster:  NewBroadcaster(reg, logger),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Registry() *Registry { return s.registry }

// Addr returns the listener address, or nil before Start/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if err := s.setListener(ln); err != nil {
		return err
	}

	go func() {
		if err := s.serve(ln); err != nil && !errors.Is(err, ErrServerClosed) {
			s.logger.Error("accept loop stopped", "error", err)
		}
	}()

	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Serve runs the accept loop on ln until Stop is called. It always returns
// a non-nil error; after Stop it is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.setListener(ln); err != nil {
		return err
	}
	return s.serve(ln)
}

// Stop closes the listener and waits for the accept loop to return.
// Sessions that are already active keep running.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.pending != nil {
		_ = s.pending.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("shutdown complete")
}

func (s *Server) setListener(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.wg.Add(1)
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) serve(ln net.Listener) error {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Error("accept failed", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	if !s.trackPending(conn) {
		_ = conn.Close()
		return
	}

	sess := newSession(conn, bufio.NewReader(conn), s.writeTimeout, s.logger)
	sess.registry = s.registry
	sess.broadcaster = s.broadcaster
	sess.logger.Info("client connected")

	ok := s.handshake(sess)
	s.trackPending(nil)

	if !ok {
		_ = sess.Close()
		return
	}

	s.broadcaster.AnnounceJoin(sess)
	go sess.run()
}

// trackPending records the connection currently in handshake so Stop can
// unblock it. It returns false once the server is closed.
func (s *Server) trackPending(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil && s.closed {
		return false
	}
	s.pending = conn
	return true
}
