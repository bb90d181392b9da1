// Package conn adapts a net.Conn into a live notification channel that writes
// newline-terminated lines.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/channel"
)

var ErrClosed = errors.New("connection channel closed")

// Channel serializes writers on one connection. Each write carries a deadline
// so a stalled peer fails the send instead of blocking the dispatcher.
type Channel struct {
	mu           sync.Mutex
	conn         net.Conn
	w            *bufio.Writer
	writeTimeout time.Duration
	closed       bool
}

var _ channel.Channel = (*Channel)(nil)

func New(c net.Conn, writeTimeout time.Duration) *Channel {
	return &Channel{conn: c, w: bufio.NewWriter(c), writeTimeout: writeTimeout}
}

func (c *Channel) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(line)
}

// WithLock runs fn while holding the write lock, so no concurrent Send can
// interleave with the lines fn writes.
func (c *Channel) WithLock(fn func(write func(line string) error) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.writeLocked)
}

// writeLocked writes one line. A failed write may leave a partial line on the
// wire and poisons the buffered writer, so the channel is closed on any error.
func (c *Channel) writeLocked(line string) error {
	if c.closed {
		return ErrClosed
	}
	if err := c.write(line); err != nil {
		c.closeLocked()
		return err
	}
	return nil
}

func (c *Channel) write(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := c.w.WriteString(line); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flush line: %w", err)
	}
	return nil
}

// Close marks the channel closed and closes the connection. Later sends fail
// with ErrClosed. A failed write closes the channel the same way.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Channel) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Channel) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
