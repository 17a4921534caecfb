package receiver

import (
	"fmt"
	"math"
	"sync"

	"github.com/ThomasT75/uinput"
	"github.com/bnema/waytablet/internal/protocol"
)

// Pointer is the part of a uinput mouse the injector drives.
type Pointer interface {
	Move(x, y int32) error
	LeftPress() error
	LeftRelease() error
	RightPress() error
	RightRelease() error
	MiddlePress() error
	MiddleRelease() error
	Close() error
}

// Button ids sent by the tablet.
const (
	ButtonPen    uint8 = 0
	ButtonRight  uint8 = 1
	ButtonMiddle uint8 = 2
)

// PointerHandler replays tablet events on a virtual pointer. Normalised
// coordinates are scaled to the screen size and applied as relative moves
// from the last known position.
type PointerHandler struct {
	pointer Pointer
	width   int
	height  int

	mu       sync.Mutex
	closed   bool
	currentX int32
	currentY int32
}

// NewPointerHandler wraps an existing pointer.
func NewPointerHandler(p Pointer, width, height int) *PointerHandler {
	return &PointerHandler{pointer: p, width: width, height: height}
}

// NewUInputHandler creates a virtual mouse through /dev/uinput.
func NewUInputHandler(width, height int) (*PointerHandler, error) {
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte("Waytablet Virtual Pointer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	return NewPointerHandler(mouse, width, height), nil
}

func (h *PointerHandler) Name() string { return "uinput" }

func (h *PointerHandler) Handle(e protocol.DataEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandlerClosed
	}

	switch ev := e.(type) {
	case protocol.Motion:
		return h.handleMove(ev)
	case protocol.Button:
		return h.handleButton(ev)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidEvent, e)
	}
}

func (h *PointerHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.pointer.Close()
}

// Position returns the tracked pointer position in pixels.
func (h *PointerHandler) Position() (int32, int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentX, h.currentY
}

func (h *PointerHandler) handleMove(m protocol.Motion) error {
	m = m.Clamp()
	x := scale(m.X, h.width)
	y := scale(m.Y, h.height)

	deltaX := x - h.currentX
	deltaY := y - h.currentY
	h.currentX = x
	h.currentY = y

	if deltaX != 0 || deltaY != 0 {
		return h.pointer.Move(deltaX, deltaY)
	}
	return nil
}

func (h *PointerHandler) handleButton(b protocol.Button) error {
	switch b.ID {
	case ButtonPen:
		if b.Pressed {
			return h.pointer.LeftPress()
		}
		return h.pointer.LeftRelease()
	case ButtonRight:
		if b.Pressed {
			return h.pointer.RightPress()
		}
		return h.pointer.RightRelease()
	case ButtonMiddle:
		if b.Pressed {
			return h.pointer.MiddlePress()
		}
		return h.pointer.MiddleRelease()
	default:
		return fmt.Errorf("%w: unknown button %d", ErrInvalidEvent, b.ID)
	}
}

func scale(v float32, size int) int32 {
	if size <= 1 {
		return 0
	}
	return int32(math.Round(float64(v) * float64(size-1)))
}
