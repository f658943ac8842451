package chat

import (
	"errors"
	"io"
)

// handshake negotiates a username for s until one is accepted or the
// connection fails. It reports whether s is now registered.
func (srv *Server) handshake(s *Session) bool {
	for {
		line, err := readLine(s.reader)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("handshake read failed", "error", err)
			}
			return false
		}

		name := normalizeUsername(line)
		// Set before insertion so peers that find s in the registry see it.
		s.username = name
		err = s.out.WriteLineAfter(func() error {
			return srv.activate(name, s)
		}, ReplyUsernameAccepted)

		switch {
		case err == nil:
			s.logger = s.logger.With("username", name)
			s.logger.Info("user registered")
			return true
		case errors.Is(err, ErrUsernameEmpty):
			srv.reject(s, ReplyUsernameEmpty, "empty")
		case errors.Is(err, ErrUsernameTaken):
			srv.reject(s, ReplyUsernameTaken, "taken")
		case errors.Is(err, ErrServerClosed):
			return false
		default:
			// Registered, but the ack could not be written: the connection is gone.
			s.logger.Debug("handshake ack failed", "error", err)
			if registered, ok := srv.registry.Lookup(name); ok && registered == s {
				s.depart("disconnect")
			}
			return false
		}
	}
}

// activate registers s unless the server is stopping. The connection stops
// being pending in the same step, so Stop never closes an active session.
func (srv *Server) activate(name string, s *Session) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return ErrServerClosed
	}
	if err := srv.registry.TryRegister(name, s); err != nil {
		return err
	}
	if srv.pending == s.conn {
		srv.pending = nil
	}
	return nil
}

func (srv *Server) reject(s *Session, reply, reason string) {
	MessagesTotal.WithLabelValues(metricHandshakeRejected).Inc()
	s.logger.Info("username rejected", "username", s.username, "reason", reason)
	s.username = ""
	if err := s.Send(reply); err != nil {
		s.logger.Debug("reject reply failed", "error", err)
	}
}
