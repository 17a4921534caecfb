// Package source provides event producers that feed the network client.
package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bnema/waytablet/internal/protocol"
)

// Sink receives what a source produces. *network.Client satisfies it.
type Sink interface {
	Enqueue(e protocol.Event)
	Reconfigure(ctx context.Context, host string, port uint16) (*net.UDPAddr, error)
	Disconnect()
}

// Source produces events until it is exhausted or ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Names of the built-in sources.
const (
	NameDemo   = "demo"
	NameScript = "script"
	NameStdin  = "stdin"
)

// New builds the named source. The script source reads scriptPath up front so
// syntax errors surface before anything is sent.
func New(name, scriptPath string, stdin io.Reader) (Source, error) {
	switch name {
	case "", NameDemo:
		return NewDemo(), nil
	case NameScript:
		if scriptPath == "" {
			return nil, fmt.Errorf("script source needs a script path")
		}
		f, err := os.Open(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		defer func() { _ = f.Close() }()
		script, err := ParseScript(scriptPath, f)
		if err != nil {
			return nil, err
		}
		return script, nil
	case NameStdin:
		return NewStream("stdin", stdin), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want %s, %s or %s)", name, NameDemo, NameScript, NameStdin)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
