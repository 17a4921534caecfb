package ui

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bnema/waytablet/internal/network"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshInterval    = 250 * time.Millisecond
	reconfigureTimeout = 10 * time.Second
	messageLifetime    = 5 * time.Second
)

// Controller is the part of the network client the status view drives.
type Controller interface {
	Stats() network.Stats
	ReconfigureNetworking(ctx context.Context) (*net.UDPAddr, error)
	Disconnect()
}

// Message types for the status view
type (
	tickMsg time.Time

	// ReconfigureResultMsg reports the outcome of a reconfigure, whether it
	// came from the r key, startup or a config file change. Destination is
	// the requested host:port when known.
	ReconfigureResultMsg struct {
		Destination string
		Addr        *net.UDPAddr
		Err         error
	}

	// SourceDoneMsg tells the view the event source has finished.
	SourceDoneMsg struct {
		Err error
	}
)

// StatusModel is an inline view of a running client
type StatusModel struct {
	ctrl    Controller
	source  string
	version string
	spinner spinner.Model

	stats         network.Stats
	reconfiguring bool
	sourceDone    bool
	lastErr       string
	message       string
	messageExpiry time.Time
	quitting      bool
}

// NewStatusModel creates the view for ctrl.
func NewStatusModel(ctrl Controller, source, version string) *StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &StatusModel{
		ctrl:    ctrl,
		source:  source,
		version: version,
		spinner: s,
		stats:   ctrl.Stats(),
	}
}

func (m *StatusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.reconfiguring {
				return m, nil
			}
			m.reconfiguring = true
			m.setMessage("Reconfiguring from config...")
			return m, m.reconfigure()
		case "d":
			m.ctrl.Disconnect()
			m.setMessage("Disconnect requested")
			return m, nil
		}

	case tickMsg:
		m.stats = m.ctrl.Stats()
		if !m.messageExpiry.IsZero() && time.Time(msg).After(m.messageExpiry) {
			m.message = ""
			m.messageExpiry = time.Time{}
		}
		return m, tick()

	case ReconfigureResultMsg:
		m.applyResult(msg)
		return m, nil

	case SourceDoneMsg:
		m.sourceDone = true
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *StatusModel) reconfigure() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reconfigureTimeout)
		defer cancel()
		addr, err := ctrl.ReconfigureNetworking(ctx)
		return ReconfigureResultMsg{Addr: addr, Err: err}
	}
}

// applyResult shows a reconfigure outcome. Failures stay on screen until the
// next success.
func (m *StatusModel) applyResult(msg ReconfigureResultMsg) {
	m.reconfiguring = false
	m.stats = m.ctrl.Stats()

	if msg.Err != nil {
		m.lastErr = msg.Err.Error()
		if msg.Destination != "" {
			m.setMessage("Reconfigure to " + msg.Destination + " failed")
		} else {
			m.setMessage("Reconfigure failed")
		}
		return
	}

	m.lastErr = ""
	if msg.Addr != nil {
		m.setMessage("Sending to " + msg.Addr.String())
	}
}

func (m *StatusModel) setMessage(s string) {
	m.message = s
	m.messageExpiry = time.Now().Add(messageLifetime)
}

func (m *StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(HeaderStyle.Render("waytablet client"))
	if m.version != "" {
		b.WriteString(" " + SubtleStyle.Render(m.version))
	}
	b.WriteString("\n")

	state := FormatState(m.stats.State.String())
	if m.stats.State == network.StateResolving || m.reconfiguring {
		state = m.spinner.View() + " " + state
	}
	b.WriteString(FormatField("State", state) + "\n")

	dest := "none"
	if m.stats.Destination != nil {
		dest = m.stats.Destination.String()
	}
	b.WriteString(FormatField("Destination", dest) + "\n")

	source := m.source
	if m.sourceDone {
		source += " (finished)"
	}
	b.WriteString(FormatField("Source", source) + "\n")

	b.WriteString(FormatField("Frames", fmt.Sprintf("%s sent, %s dropped, %s errors, %d queued",
		FormatCount(m.stats.Sent),
		FormatCount(m.stats.Dropped),
		FormatCount(m.stats.SendErrors),
		m.stats.Queued)) + "\n")

	if m.lastErr != "" {
		b.WriteString(ErrorStyle.Render(IconError+" "+m.lastErr) + "\n")
	}
	if m.message != "" {
		b.WriteString(InfoStyle.Render(m.message) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.Join([]string{
		FormatControl("r", "reconfigure"),
		FormatControl("d", "disconnect"),
		FormatControl("q", "quit"),
	}, SubtleStyle.Render(" • ")))
	b.WriteString("\n")

	return b.String()
}

// NewProgram wraps the model in an inline bubbletea program bound to ctx.
func NewProgram(ctx context.Context, m *StatusModel) *tea.Program {
	return tea.NewProgram(m, tea.WithContext(ctx))
}
