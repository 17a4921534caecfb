package ipc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotRunning is returned when no client is listening on the socket.
var ErrNotRunning = errors.New("waytablet client is not running")

const defaultTimeout = 15 * time.Second

// Client sends requests to a running waytablet client
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for socketPath, or the default path when empty.
func NewClient(socketPath string) (*Client, error) {
	if socketPath == "" {
		var err error
		socketPath, err = GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}
	return &Client{socketPath: socketPath, timeout: defaultTimeout}, nil
}

// WithTimeout overrides the per-request deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Status asks for the current state and counters.
func (c *Client) Status() (Response, error) {
	return c.send(Request{Type: TypeStatus})
}

// Reconfigure points the client at host:port. An empty host makes it re-read
// its configuration.
func (c *Client) Reconfigure(host string, port uint16) (Response, error) {
	return c.send(Request{Type: TypeReconfigure, Host: host, Port: port})
}

// Disconnect releases the client's socket.
func (c *Client) Disconnect() (Response, error) {
	return c.send(Request{Type: TypeDisconnect})
}

// send sends a request and returns the decoded response. A response with
// ok=false is returned together with an ErrRequestFailed error.
func (c *Client) send(req Request) (Response, error) {
	msg, err := req.ToStruct()
	if err != nil {
		return Response{}, fmt.Errorf("failed to create %s message: %w", req.Type, err)
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotRunning(err) {
			return Response{}, ErrNotRunning
		}
		return Response{}, fmt.Errorf("failed to connect to waytablet: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return Response{}, fmt.Errorf("failed to send message: %w", err)
	}

	var out structpb.Struct
	if err := readMessage(conn, &out); err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := ResponseFromStruct(&out)
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	return resp, nil
}

// isNotRunning reports a missing socket file or a socket nobody listens on
func isNotRunning(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
