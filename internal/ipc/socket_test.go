package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/waytablet/internal/network"
)

// fakeController stands in for a running network client
type fakeController struct {
	mu             sync.Mutex
	stats          network.Stats
	reconfigured   []string
	networking     int
	disconnects    int
	reconfigureErr error
}

func (f *fakeController) Stats() network.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeController) Reconfigure(ctx context.Context, host string, port uint16) (*net.UDPAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconfigured = append(f.reconfigured, net.JoinHostPort(host, strconv.Itoa(int(port))))
	if f.reconfigureErr != nil {
		return nil, f.reconfigureErr
	}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: int(port)}
	f.stats.State = network.StateConnected
	f.stats.Destination = addr
	return addr, nil
}

func (f *fakeController) ReconfigureNetworking(ctx context.Context) (*net.UDPAddr, error) {
	f.mu.Lock()
	f.networking++
	f.mu.Unlock()
	return f.Reconfigure(ctx, "from-config", 40118)
}

func (f *fakeController) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.stats.State = network.StateIdle
	f.stats.Destination = nil
}

func startTestServer(t *testing.T, ctrl Controller) (*SocketServer, *Client) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sock")
	server, err := NewSocketServer(path, NewClientHandler(ctrl))
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(server.Stop)

	client, err := NewClient(path)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return server, client.WithTimeout(2 * time.Second)
}

func TestSocketServerStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sock")
	server, err := NewSocketServer(path, NewClientHandler(&fakeController{}))
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	if server.Path() != path {
		t.Errorf("Expected path %s, got %s", path, server.Path())
	}

	// A stale file from a previous run must not block Start
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Socket file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected socket mode 0600, got %v", info.Mode().Perm())
	}

	// Starting again should not error
	if err := server.Start(); err != nil {
		t.Errorf("Start() on running server error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		server.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() took too long")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Socket file was not cleaned up")
	}

	// Stopping again should not panic
	server.Stop()
}

func TestRoundTrip(t *testing.T) {
	ctrl := &fakeController{stats: network.Stats{State: network.StateIdle, Sent: 7, Dropped: 2}}
	_, client := startTestServer(t, ctrl)

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !resp.OK || resp.State != "idle" || resp.Sent != 7 || resp.Dropped != 2 || resp.Destination != "" {
		t.Errorf("Unexpected status %+v", resp)
	}

	resp, err = client.Reconfigure("studio-pc", 0)
	if err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if resp.State != "connected" || resp.Destination != "10.0.0.9:40118" {
		t.Errorf("Unexpected reconfigure response %+v", resp)
	}

	if _, err := client.Reconfigure("", 0); err != nil {
		t.Fatalf("Reconfigure() from config error = %v", err)
	}

	resp, err = client.Disconnect()
	if err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if resp.State != "idle" {
		t.Errorf("Expected idle after disconnect, got %s", resp.State)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	want := []string{"studio-pc:40118", "from-config:40118"}
	if strings.Join(ctrl.reconfigured, ",") != strings.Join(want, ",") {
		t.Errorf("Expected reconfigures %v, got %v", want, ctrl.reconfigured)
	}
	if ctrl.networking != 1 || ctrl.disconnects != 1 {
		t.Errorf("Expected one networking reconfigure and one disconnect, got %d and %d", ctrl.networking, ctrl.disconnects)
	}
}

func TestReconfigureFailureIsReported(t *testing.T) {
	ctrl := &fakeController{
		stats:          network.Stats{State: network.StateIdle},
		reconfigureErr: errors.New("destination unresolvable"),
	}
	_, client := startTestServer(t, ctrl)

	resp, err := client.Reconfigure("nowhere", 40118)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("Expected ErrRequestFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "unresolvable") {
		t.Errorf("Error should carry the cause, got %v", err)
	}
	if resp.OK || resp.State != "idle" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestReconfigureWithoutHostReloadsConfig(t *testing.T) {
	ctx := context.Background()

	ctrl := &fakeController{stats: network.Stats{State: network.StateIdle}}
	reloads := 0
	h := NewClientHandler(ctrl).WithReload(func() error {
		reloads++
		return nil
	})

	resp, err := h.HandleReconfigure(ctx, "", 0)
	if err != nil || !resp.OK {
		t.Fatalf("HandleReconfigure() = %+v, %v", resp, err)
	}
	if reloads != 1 || ctrl.networking != 1 {
		t.Errorf("Expected one reload before one networking reconfigure, got %d and %d", reloads, ctrl.networking)
	}

	// an explicit host does not touch the config
	if _, err := h.HandleReconfigure(ctx, "10.0.0.3", 0); err != nil {
		t.Fatal(err)
	}
	if reloads != 1 {
		t.Errorf("Expected no reload for an explicit host, got %d", reloads)
	}

	// a broken file is reported and the destination is left alone
	bad := NewClientHandler(ctrl).WithReload(func() error {
		return errors.New("error reading config file: toml: expected ]")
	})
	resp, _ = bad.HandleReconfigure(ctx, "", 0)
	if resp.OK || !strings.Contains(resp.Error, "toml") {
		t.Errorf("Expected reload error in response, got %+v", resp)
	}
	if ctrl.networking != 1 {
		t.Errorf("Expected no reconfigure after a failed reload, got %d", ctrl.networking)
	}
}

func TestClientNotRunning(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Status(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}

func TestGetSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err := GetSocketPath()
	if err != nil {
		t.Fatalf("GetSocketPath() error = %v", err)
	}
	if path != "/run/user/1000/waytablet.sock" {
		t.Errorf("Unexpected socket path %s", path)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	path, err = GetSocketPath()
	if err != nil {
		t.Fatalf("GetSocketPath() error = %v", err)
	}
	if !filepath.IsAbs(path) || !strings.Contains(filepath.Base(path), "waytablet-") {
		t.Errorf("Unexpected fallback socket path %s", path)
	}
}
