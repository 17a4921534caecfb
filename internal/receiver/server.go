package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/metrics"
	"github.com/bnema/waytablet/internal/protocol"
	"github.com/charmbracelet/log"
)

// Server receives tablet frames on a UDP socket
type Server struct {
	bindAddress string
	port        uint16
	handlers    []Handler
	metrics     *metrics.Receiver
	logger      *log.Logger

	conn     *net.UDPConn
	stop     chan struct{}
	stopOnce sync.Once

	received atomic.Uint64
	invalid  atomic.Uint64
}

// Options configures a Server.
type Options struct {
	BindAddress string
	Port        uint16
	Handlers    []Handler
	Metrics     *metrics.Receiver
	Logger      *log.Logger
}

// NewServer creates a server instance. Call Listen before Run.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Logger.WithPrefix("receiver")
	}
	return &Server{
		bindAddress: opts.BindAddress,
		port:        opts.Port,
		handlers:    opts.Handlers,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		stop:        make(chan struct{}),
	}
}

// Listen binds the UDP socket. Port 0 picks a free port.
func (s *Server) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.bindAddress, fmt.Sprint(s.port)))
	if err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.conn = conn
	s.logger.Info("Listening for tablet frames", "address", conn.LocalAddr())
	return nil
}

// Address returns the server's listening address
func (s *Server) Address() *net.UDPAddr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Received returns how many frames were decoded and dispatched.
func (s *Server) Received() uint64 {
	return s.received.Load()
}

// Invalid returns how many datagrams failed to decode.
func (s *Server) Invalid() uint64 {
	return s.invalid.Load()
}

// Run reads datagrams until ctx is done or Stop is called, then closes every
// handler.
func (s *Server) Run(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("receiver is not listening")
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stop:
		}
	}()

	defer s.closeHandlers()

	// room for a full MTU; bytes past a frame are ignored by Decode
	buf := make([]byte, 1500)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("Read failed", "error", err)
			continue
		}

		ev, err := protocol.Decode(buf[:n])
		if err != nil {
			s.invalid.Add(1)
			s.metrics.DecodeError(decodeErrorKind(err))
			s.logger.Debug("Dropping invalid datagram", "from", from, "size", n, "error", err)
			continue
		}

		s.received.Add(1)
		s.metrics.FrameReceived(ev.Tag().String())
		s.dispatch(ev)
	}
}

// Stop closes the socket and makes Run return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *Server) dispatch(ev protocol.DataEvent) {
	for _, h := range s.handlers {
		if err := h.Handle(ev); err != nil {
			s.metrics.HandlerError(h.Name())
			s.logger.Warn("Handler failed", "handler", h.Name(), "event", ev, "error", err)
		}
	}
}

func (s *Server) closeHandlers() {
	for _, h := range s.handlers {
		if err := h.Close(); err != nil {
			s.logger.Warn("Failed to close handler", "handler", h.Name(), "error", err)
		}
	}
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrTruncated):
		return "truncated"
	case errors.Is(err, protocol.ErrUnknownTag):
		return "unknown_tag"
	default:
		return "other"
	}
}
