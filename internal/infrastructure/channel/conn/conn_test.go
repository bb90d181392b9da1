package conn

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_WritesLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, time.Second)
	defer ch.Close()

	go func() {
		assert.NoError(t, ch.Send(context.Background(), "NOTIFICATION,APPROVED,ok,908호,d,w,t"))
	}()

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "NOTIFICATION,APPROVED,ok,908호,d,w,t\n", line)
}

func TestSend_TimesOutOnStalledPeer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, 20*time.Millisecond)
	defer ch.Close()

	start := time.Now()
	err := ch.Send(context.Background(), "nobody reads this")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSend_FailedWriteClosesChannel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, 20*time.Millisecond)

	require.Error(t, ch.Send(context.Background(), "nobody reads this"))

	// The peer sees the connection end instead of a half-written line.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := bufio.NewReader(client).ReadString('\n')
	assert.Error(t, err)
	assert.ErrorIs(t, ch.Send(context.Background(), "x"), ErrClosed)
	assert.NoError(t, ch.Close())
}

func TestSend_AfterClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, time.Second)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Send(context.Background(), "x"), ErrClosed)
}

func TestSend_CancelledContext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, time.Second)
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Send(ctx, "x"), context.Canceled)
}

func TestWithLock_BlocksConcurrentSends(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	ch := New(server, time.Second)
	defer ch.Close()

	reader := bufio.NewReader(client)
	lines := make(chan string, 4)
	go func() {
		for i := 0; i < 4; i++ {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- line
		}
	}()

	var wg sync.WaitGroup
	inside := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ch.WithLock(func(write func(string) error) error {
			close(inside)
			assert.NoError(t, write("a"))
			time.Sleep(20 * time.Millisecond)
			assert.NoError(t, write("b"))
			return write("c")
		})
	}()

	<-inside
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, ch.Send(context.Background(), "live"))
	}()
	wg.Wait()

	got := []string{<-lines, <-lines, <-lines, <-lines}
	assert.Equal(t, []string{"a\n", "b\n", "c\n", "live\n"}, got)
}
