// Package ipc lets CLI commands control a running tablet client over a unix
// socket.
package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

// requestTimeout bounds how long a single request may take to handle,
// including a reconfigure waiting on name resolution.
const requestTimeout = 10 * time.Second

// Handler executes requests received on the socket
type Handler interface {
	HandleStatus() (Response, error)
	HandleReconfigure(ctx context.Context, host string, port uint16) (Response, error)
	HandleDisconnect() (Response, error)
}

// SocketServer handles incoming IPC connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer creates a server bound to socketPath once started. An
// empty path selects the default location.
func NewSocketServer(socketPath string, handler Handler) (*SocketServer, error) {
	if socketPath == "" {
		var err error
		socketPath, err = GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}

	return &SocketServer{
		socketPath: socketPath,
		handler:    handler,
	}, nil
}

// Path returns the socket path.
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// A stale socket from a crashed client would make Listen fail
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Infof("IPC socket server started at %s", s.socketPath)
	return nil
}

// Stop stops the socket server
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.wg.Wait()
	_ = os.RemoveAll(s.socketPath)

	logger.Info("IPC socket server stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Errorf("Failed to accept connection: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection serves requests on conn until the peer hangs up
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	// unblock reads when the server stops
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	logger.Debug("New IPC connection established")

	for {
		var msg structpb.Struct
		if err := readMessage(conn, &msg); err != nil {
			logger.Debugf("Connection closed or read error: %v", err)
			return
		}

		resp := s.handleMessage(ctx, &msg)
		out, err := resp.ToStruct()
		if err != nil {
			logger.Errorf("Failed to encode response: %v", err)
			return
		}
		if err := writeMessage(conn, out); err != nil {
			logger.Errorf("Failed to send response: %v", err)
			return
		}
	}
}

// handleMessage processes a single message and returns a response
func (s *SocketServer) handleMessage(ctx context.Context, msg *structpb.Struct) Response {
	req, err := RequestFromStruct(msg)
	if err != nil {
		return ErrorResponse(err.Error())
	}

	var resp Response
	switch req.Type {
	case TypeStatus:
		resp, err = s.handler.HandleStatus()
	case TypeReconfigure:
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err = s.handler.HandleReconfigure(reqCtx, req.Host, req.Port)
		cancel()
	case TypeDisconnect:
		resp, err = s.handler.HandleDisconnect()
	}

	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}
	return resp
}

// GetSocketPath returns $XDG_RUNTIME_DIR/waytablet.sock, or a per-user path
// under /tmp when the runtime dir is unset.
func GetSocketPath() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "waytablet.sock"), nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("waytablet-%s.sock", currentUser.Username)), nil
}
