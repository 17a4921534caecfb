package network

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bnema/waytablet/internal/protocol"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowConn simulates a socket with configurable write latency
type slowConn struct {
	mu           sync.Mutex
	written      int
	writeLatency time.Duration
}

func (s *slowConn) Write(p []byte) (int, error) {
	if s.writeLatency > 0 {
		time.Sleep(s.writeLatency)
	}
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	return len(p), nil
}

func (s *slowConn) Close() error { return nil }

func (s *slowConn) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func newSlowClient(conn *slowConn) *Client {
	return NewClient(Options{
		Dial: func(ctx context.Context, addr *net.UDPAddr) (Conn, error) {
			return conn, nil
		},
		Logger: log.New(io.Discard),
	})
}

// TestProducerNeverBlocks checks that a slow socket does not slow down producers.
func TestProducerNeverBlocks(t *testing.T) {
	conn := &slowConn{writeLatency: time.Millisecond}
	c := newSlowClient(conn)
	go func() { _ = c.Run(context.Background()) }()

	_, err := c.Reconfigure(context.Background(), "127.0.0.1", 40118)
	require.NoError(t, err)

	const eventCount = 2000
	start := time.Now()
	for i := 0; i < eventCount; i++ {
		c.Enqueue(protocol.Motion{X: 0.5, Y: 0.5, Pressure: 1})
	}
	enqueueTime := time.Since(start)

	// 2000 writes at 1ms each take two seconds; enqueueing must not wait for them
	assert.Less(t, enqueueTime, 500*time.Millisecond, "enqueue blocked on the worker")
	assert.Greater(t, c.Stats().Queued, 0)

	c.Close()
	<-c.Done()
	assert.Equal(t, eventCount, conn.count())
	t.Logf("Enqueued %d events in %v", eventCount, enqueueTime)
}

func TestWorkerThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throughput test in short mode")
	}

	conn := &slowConn{}
	c := newSlowClient(conn)
	go func() { _ = c.Run(context.Background()) }()

	_, err := c.Reconfigure(context.Background(), "127.0.0.1", 40118)
	require.NoError(t, err)

	const eventCount = 100000
	start := time.Now()
	for i := 0; i < eventCount; i++ {
		if i%2 == 0 {
			c.Enqueue(protocol.Motion{X: float32(i%1000) / 1000, Y: 0.25, Pressure: 0.75})
		} else {
			c.Enqueue(protocol.Button{ID: 0, Pressed: i%4 == 1})
		}
	}
	c.Close()
	<-c.Done()
	elapsed := time.Since(start)

	assert.Equal(t, eventCount, conn.count())
	t.Logf("Sent %d frames in %v (%.0f frames/sec)", eventCount, elapsed, float64(eventCount)/elapsed.Seconds())
}

func BenchmarkEncodeAndSend(b *testing.B) {
	conn := &slowConn{}
	c := newSlowClient(conn)
	go func() { _ = c.Run(context.Background()) }()

	if _, err := c.Reconfigure(context.Background(), "127.0.0.1", 40118); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Enqueue(protocol.Motion{X: 0.1, Y: 0.2, Pressure: 0.3})
	}
	c.Close()
	<-c.Done()
}
