// Package network streams tablet events to a host over UDP.
//
// A Client owns a single worker goroutine (Run) that drains an unbounded
// queue. Data events and control events (Reconfigure, Disconnect) share that
// queue, so a destination change or disconnect takes effect exactly between
// the events enqueued before and after it. Only the worker touches the socket
// and the connection state; everything else reads published snapshots.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/metrics"
	"github.com/bnema/waytablet/internal/protocol"
	"github.com/bnema/waytablet/internal/queue"
	"github.com/bnema/waytablet/internal/resolver"
	"github.com/charmbracelet/log"
)

var (
	// ErrClosed is returned when the worker is gone or the client was closed.
	ErrClosed = errors.New("network client closed")
	// ErrNoDestination is returned by ReconfigureNetworking without a provider.
	ErrNoDestination = errors.New("no destination provider configured")
)

// Options configures a Client. Zero fields get defaults.
type Options struct {
	Resolver    Resolver        // defaults to resolver.Default
	Dial        DialFunc        // defaults to DialUDP
	Destination DestinationFunc // consulted by ReconfigureNetworking
	Metrics     *metrics.Client
	Logger      *log.Logger
}

// Stats is a point-in-time view of the client for display.
type Stats struct {
	State       State
	Destination *net.UDPAddr
	Sent        uint64
	Dropped     uint64
	SendErrors  uint64
	Queued      int
}

// Client is the network event client.
type Client struct {
	queue       *queue.Queue[protocol.Event]
	resolver    Resolver
	dial        DialFunc
	destination DestinationFunc
	metrics     *metrics.Client
	log         *log.Logger

	// owned by the worker goroutine
	state   State
	addr    *net.UDPAddr
	conn    Conn
	buf     []byte
	failing bool

	// snapshots for other goroutines
	publishedState atomic.Int32
	publishedDest  atomic.Pointer[net.UDPAddr]
	sent           atomic.Uint64
	dropped        atomic.Uint64
	sendErrors     atomic.Uint64

	running atomic.Bool
	done    chan struct{}
}

// NewClient creates a client in the Idle state. Call Run to start the worker.
func NewClient(opts Options) *Client {
	c := &Client{
		queue:       queue.New[protocol.Event](),
		resolver:    opts.Resolver,
		dial:        opts.Dial,
		destination: opts.Destination,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		buf:         make([]byte, 0, protocol.MaxFrameSize),
		done:        make(chan struct{}),
	}

	if c.resolver == nil {
		c.resolver = resolver.Default
	}
	if c.dial == nil {
		c.dial = DialUDP
	}
	if c.log == nil {
		c.log = logger.Logger.WithPrefix("network")
	}

	return c
}

// Run is the worker loop. It returns nil once the client is closed and the
// queue drained, or when ctx is cancelled. The socket is released and the
// queue closed either way, so later events are counted as dropped.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("network client already running")
	}
	defer close(c.done)
	defer c.release()
	defer c.queue.Close()

	c.log.Debug("Network worker started")
	for {
		ev, err := c.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				c.log.Debug("Event queue closed, stopping worker")
			} else {
				c.log.Debug("Worker context done, stopping worker", "err", err)
			}
			return nil
		}

		c.metrics.SetQueueDepth(c.queue.Len())
		c.handle(ctx, ev)
	}
}

// Done is closed when Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue hands e to the worker without blocking. Events enqueued after
// Close are dropped.
func (c *Client) Enqueue(e protocol.Event) {
	if c.queue.Push(e) {
		return
	}
	if _, ok := e.(protocol.DataEvent); ok {
		c.dropped.Add(1)
		c.metrics.FrameDropped(metrics.DropClosed)
	}
}

// Reconfigure asks the worker to switch to host:port and waits for the
// outcome. Events enqueued before the call still go to the old destination.
// On failure the previous destination, if any, stays in place.
func (c *Client) Reconfigure(ctx context.Context, host string, port uint16) (*net.UDPAddr, error) {
	reply := make(chan protocol.ReconfigureResult, 1)
	if !c.queue.Push(protocol.Reconfigure{Host: host, Port: port, Reply: reply}) {
		return nil, ErrClosed
	}

	select {
	case res := <-reply:
		return res.Addr, res.Err
	case <-c.done:
		select {
		case res := <-reply:
			return res.Addr, res.Err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReconfigureNetworking reconfigures to the destination reported by the
// Destination option.
func (c *Client) ReconfigureNetworking(ctx context.Context) (*net.UDPAddr, error) {
	if c.destination == nil {
		return nil, ErrNoDestination
	}
	host, port := c.destination()
	return c.Reconfigure(ctx, host, port)
}

// Disconnect releases the destination after everything queued before it.
func (c *Client) Disconnect() {
	c.Enqueue(protocol.Disconnect{})
}

// Close stops accepting events. The worker drains what is queued, releases
// the socket and Run returns.
func (c *Client) Close() {
	c.queue.Close()
}

// CurrentDestination returns the address frames are sent to, or nil.
func (c *Client) CurrentDestination() *net.UDPAddr {
	return c.publishedDest.Load()
}

// State returns the last state published by the worker.
func (c *Client) State() State {
	return State(c.publishedState.Load())
}

// Stats returns counters and state for display.
func (c *Client) Stats() Stats {
	return Stats{
		State:       c.State(),
		Destination: c.CurrentDestination(),
		Sent:        c.sent.Load(),
		Dropped:     c.dropped.Load(),
		SendErrors:  c.sendErrors.Load(),
		Queued:      c.queue.Len(),
	}
}

func (c *Client) handle(ctx context.Context, ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.DataEvent:
		c.send(e)
	case protocol.Reconfigure:
		c.reconfigure(ctx, e)
	case protocol.Disconnect:
		c.disconnect()
	default:
		c.log.Warn("Ignoring unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

func (c *Client) send(e protocol.DataEvent) {
	if c.state != StateConnected {
		c.dropped.Add(1)
		c.metrics.FrameDropped(metrics.DropNoDestination)
		return
	}

	c.buf = protocol.AppendFrame(c.buf[:0], e)
	if _, err := c.conn.Write(c.buf); err != nil {
		c.sendErrors.Add(1)
		c.metrics.SendError()
		if !c.failing {
			c.failing = true
			c.log.Warn("Sending to destination failed, dropping frames", "dest", c.addr, "err", err)
		} else {
			c.log.Debug("Dropped frame", "dest", c.addr, "err", err)
		}
		return
	}

	if c.failing {
		c.failing = false
		c.log.Info("Sending to destination recovered", "dest", c.addr)
	}
	c.sent.Add(1)
	c.metrics.FrameSent()
}

func (c *Client) reconfigure(ctx context.Context, r protocol.Reconfigure) {
	prev := c.state
	c.setState(StateResolving)

	addr, err := c.resolver.Resolve(ctx, r.Host, r.Port)
	var conn Conn
	if err == nil {
		conn, err = c.dial(ctx, addr)
		if err != nil {
			err = fmt.Errorf("open socket to %s: %w", addr, err)
		}
	}
	c.metrics.Reconfigured(err)

	if err != nil {
		c.setState(prev)
		c.log.Error("Reconfigure failed, keeping previous destination",
			"host", r.Host, "port", r.Port, "current", c.addr, "err", err)
		c.reply(r.Reply, protocol.ReconfigureResult{Err: err})
		return
	}

	old := c.conn
	c.conn, c.addr = conn, addr
	c.failing = false
	c.publishedDest.Store(addr)
	c.metrics.SetConnected(true)
	c.setState(StateConnected)

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn("Failed to close previous socket", "err", err)
		}
	}

	c.log.Info("Touch events will be sent to destination", "dest", addr.String())
	c.reply(r.Reply, protocol.ReconfigureResult{Addr: addr})
}

func (c *Client) disconnect() {
	if c.conn == nil {
		return
	}

	c.setState(StateDisconnected)
	c.release()
	c.setState(StateIdle)
}

// release closes the socket if one is held.
func (c *Client) release() {
	if c.conn == nil {
		return
	}

	dest := c.addr
	if err := c.conn.Close(); err != nil {
		c.log.Warn("Failed to release socket", "dest", dest, "err", err)
	}
	c.conn, c.addr = nil, nil
	c.failing = false
	c.publishedDest.Store(nil)
	c.metrics.SetConnected(false)
	c.setState(StateIdle)

	c.log.Info("Disconnected", "dest", dest)
}

func (c *Client) setState(s State) {
	c.state = s
	c.publishedState.Store(int32(s))
}

func (c *Client) reply(ch chan<- protocol.ReconfigureResult, res protocol.ReconfigureResult) {
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
		c.log.Warn("Dropped reconfigure result, reply channel full")
	}
}
