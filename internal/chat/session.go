package chat

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one connected client. It owns the connection; other sessions
// reach it only through Send, which holds the session's write lock.
type Session struct {
	username string
	conn     net.Conn
	reader   *bufio.Reader
	out      *lineWriter

	registry    *Registry
	broadcaster *Broadcaster
	logger      *slog.Logger

	departOnce sync.Once
}

func newSession(conn net.Conn, reader *bufio.Reader, writeTimeout time.Duration, logger *slog.Logger) *Session {
	id := uuid.New()
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	return &Session{
		conn:   conn,
		reader: reader,
		out:    newLineWriter(conn, writeTimeout),
		logger: logger.With("session", id.String(), "remote", conn.RemoteAddr().String()),
	}
}

// Username is empty until the handshake has succeeded.
func (s *Session) Username() string { return s.username }

// Send delivers one line to this session's client.
func (s *Session) Send(line string) error {
	return s.out.WriteLine(line)
}

// Alive reports whether the connection is still writable.
func (s *Session) Alive() bool { return !s.out.isClosed() }

func (s *Session) Close() error {
	return s.out.Close()
}

// run is the read/dispatch loop. It returns once the session has terminated.
func (s *Session) run() {
	for {
		line, err := readLine(s.reader)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("read failed", "error", err)
			}
			s.disconnect()
			return
		}

		if done := s.dispatch(line); done {
			return
		}
	}
}

// dispatch routes one line and reports whether the session terminated.
func (s *Session) dispatch(line string) bool {
	start := time.Now()
	cmd := ParseLine(line)
	eventType := cmd.Type.String()
	defer func() {
		MessagesTotal.WithLabelValues(eventType).Inc()
		EventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	switch cmd.Type {
	case CommandExit:
		s.exit()
		return true
	case CommandWhisper:
		s.broadcaster.Whisper(s, cmd.Raw)
	case CommandMalformedWhisper:
		s.reply(ReplyNoMessage)
	default:
		s.broadcaster.Broadcast(s, cmd.Raw, true)
	}
	return false
}

// exit is the graceful /exit path.
func (s *Session) exit() {
	s.reply(ReplyExiting)
	s.depart("exit")
	s.reply(ReplyTerminate)
	_ = s.Close()
}

// disconnect handles EOF or a read error: the client is not told anything.
func (s *Session) disconnect() {
	MessagesTotal.WithLabelValues(metricDisconnect).Inc()
	s.depart("disconnect")
	_ = s.Close()
}

// depart removes the user and notifies the remaining sessions. It runs at most once.
func (s *Session) depart(reason string) {
	s.departOnce.Do(func() {
		s.registry.Unregister(s.username)
		s.broadcaster.AnnounceLeave(s)
		s.logger.Info("user left", "username", s.username, "reason", reason)
	})
}

func (s *Session) reply(line string) {
	if err := s.Send(line); err != nil {
		s.logger.Debug("reply failed", "line", line, "error", err)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return trimLineEnd(line), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return trimLineEnd(line), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}

func normalizeUsername(line string) string {
	return strings.TrimSpace(line)
}
