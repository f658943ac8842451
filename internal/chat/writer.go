package chat

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// lineWriter serializes newline-terminated writes to one connection.
// Every line is flushed before the lock is released.
type lineWriter struct {
	mu      sync.Mutex
	conn    net.Conn
	w       *bufio.Writer
	timeout time.Duration
	closed  bool
}

func newLineWriter(conn net.Conn, timeout time.Duration) *lineWriter {
	return &lineWriter{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		timeout: timeout,
	}
}

// WriteLine writes msg followed by '\n'. After the first failure the writer
// is closed and the connection is torn down; later calls return ErrSessionClosed.
func (lw *lineWriter) WriteLine(msg string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	return lw.writeLocked(msg)
}

// WriteLineAfter runs fn while holding the write lock and writes msg only if
// fn succeeds, so no other writer can get a line in before msg.
func (lw *lineWriter) WriteLineAfter(fn func() error, msg string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.closed {
		return ErrSessionClosed
	}
	if err := fn(); err != nil {
		return err
	}
	return lw.writeLocked(msg)
}

// WriteLineFunc builds the line with build while holding the write lock, so
// the line reflects state at the moment it goes out.
func (lw *lineWriter) WriteLineFunc(build func() string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.closed {
		return ErrSessionClosed
	}
	return lw.writeLocked(build())
}

func (lw *lineWriter) writeLocked(msg string) error {
	if lw.closed {
		return ErrSessionClosed
	}
	if lw.timeout > 0 {
		_ = lw.conn.SetWriteDeadline(time.Now().Add(lw.timeout))
	}
	if _, err := lw.w.WriteString(msg + "\n"); err != nil {
		_ = lw.closeLocked()
		return err
	}
	if err := lw.w.Flush(); err != nil {
		_ = lw.closeLocked()
		return err
	}
	return nil
}

// Close marks the writer closed and closes the connection. It waits for an
// in-flight write to finish.
func (lw *lineWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.closed {
		return nil
	}
	return lw.closeLocked()
}

func (lw *lineWriter) closeLocked() error {
	lw.closed = true
	return lw.conn.Close()
}

func (lw *lineWriter) isClosed() bool {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.closed
}
