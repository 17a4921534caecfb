// Package receiver listens for tablet frames on the host and hands decoded
// events to handlers.
package receiver

import (
	"errors"

	"github.com/bnema/waytablet/internal/protocol"
	"github.com/charmbracelet/log"
)

var (
	// ErrHandlerClosed is returned when operating on a closed handler
	ErrHandlerClosed = errors.New("handler is closed")
	// ErrInvalidEvent is returned for events a handler cannot apply
	ErrInvalidEvent = errors.New("invalid event")
)

// Handler consumes decoded events. Handle is called from the receive loop
// only, never concurrently.
type Handler interface {
	Name() string
	Handle(e protocol.DataEvent) error
	Close() error
}

// LogHandler prints every event at debug level and button changes at info.
type LogHandler struct {
	logger *log.Logger
}

// NewLogHandler creates a handler writing to l.
func NewLogHandler(l *log.Logger) *LogHandler {
	return &LogHandler{logger: l}
}

func (h *LogHandler) Name() string { return "log" }

func (h *LogHandler) Handle(e protocol.DataEvent) error {
	switch ev := e.(type) {
	case protocol.Motion:
		h.logger.Debug("Motion", "x", ev.X, "y", ev.Y, "pressure", ev.Pressure)
	case protocol.Button:
		h.logger.Info("Button", "id", ev.ID, "pressed", ev.Pressed)
	}
	return nil
}

func (h *LogHandler) Close() error { return nil }
