// Package protocol defines the events streamed from a tablet client to a host
// and the binary frames they travel in.
package protocol

import (
	"fmt"
	"math"
	"net"
)

// DefaultPort is the UDP port hosts listen on unless configured otherwise.
const DefaultPort uint16 = 40118

// Tag identifies the frame type in byte 0 of every datagram.
type Tag uint8

const (
	TagMotion Tag = 0x01
	TagButton Tag = 0x02
)

func (t Tag) String() string {
	switch t {
	case TagMotion:
		return "motion"
	case TagButton:
		return "button"
	default:
		return fmt.Sprintf("tag(0x%02x)", uint8(t))
	}
}

// Event is anything that can travel through the client's event queue.
// Only Motion, Button, Reconfigure and Disconnect implement it.
type Event interface {
	isEvent()
}

// DataEvent is an Event that is transmitted on the wire.
type DataEvent interface {
	Event
	Tag() Tag
	appendBody(dst []byte) []byte
}

// Motion is a pointer sample in normalized surface coordinates.
type Motion struct {
	X        float32
	Y        float32
	Pressure float32
}

// Button is a press or release of a stylus or surface button.
type Button struct {
	ID      uint8
	Pressed bool
}

// Reconfigure switches the client to a new destination. It is applied in
// queue order and never transmitted.
type Reconfigure struct {
	Host string
	Port uint16

	// Reply receives exactly one result once the request was applied.
	// It must be buffered; nil means nobody is waiting.
	Reply chan<- ReconfigureResult
}

// ReconfigureResult is the outcome of a Reconfigure.
type ReconfigureResult struct {
	Addr *net.UDPAddr
	Err  error
}

// Disconnect releases the current connection once every event queued before
// it has been handled.
type Disconnect struct{}

func (Motion) isEvent()      {}
func (Button) isEvent()      {}
func (Reconfigure) isEvent() {}
func (Disconnect) isEvent()  {}

func (Motion) Tag() Tag { return TagMotion }
func (Button) Tag() Tag { return TagButton }

// Clamp returns m with every field limited to [0,1].
func (m Motion) Clamp() Motion {
	return Motion{X: clamp01(m.X), Y: clamp01(m.Y), Pressure: clamp01(m.Pressure)}
}

func (m Motion) String() string {
	return fmt.Sprintf("motion(x=%.4f y=%.4f p=%.4f)", m.X, m.Y, m.Pressure)
}

func (b Button) String() string {
	state := "up"
	if b.Pressed {
		state = "down"
	}
	return fmt.Sprintf("button(%d %s)", b.ID, state)
}

func clamp01(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
