package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Frame sizes including the tag byte.
const (
	MotionFrameSize = 1 + 3*4
	ButtonFrameSize = 1 + 2

	// MaxFrameSize is large enough for any frame.
	MaxFrameSize = MotionFrameSize
)

var (
	// ErrTruncated is returned when a frame is shorter than its tag requires.
	ErrTruncated = errors.New("truncated frame")
	// ErrUnknownTag is returned for a tag byte this version does not know.
	ErrUnknownTag = errors.New("unknown frame tag")
)

// Encode returns the wire frame for e.
func Encode(e DataEvent) []byte {
	return AppendFrame(make([]byte, 0, MaxFrameSize), e)
}

// AppendFrame appends the wire frame for e to dst.
func AppendFrame(dst []byte, e DataEvent) []byte {
	dst = append(dst, byte(e.Tag()))
	return e.appendBody(dst)
}

func (m Motion) appendBody(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.Y))
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.Pressure))
}

func (b Button) appendBody(dst []byte) []byte {
	var pressed byte
	if b.Pressed {
		pressed = 1
	}
	return append(dst, b.ID, pressed)
}

// Decode parses one frame. Bytes following a complete frame are ignored.
func Decode(b []byte) (DataEvent, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrTruncated)
	}

	tag := Tag(b[0])
	switch tag {
	case TagMotion:
		if len(b) < MotionFrameSize {
			return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, tag, MotionFrameSize, len(b))
		}
		return Motion{
			X:        math.Float32frombits(binary.LittleEndian.Uint32(b[1:5])),
			Y:        math.Float32frombits(binary.LittleEndian.Uint32(b[5:9])),
			Pressure: math.Float32frombits(binary.LittleEndian.Uint32(b[9:13])),
		}, nil
	case TagButton:
		if len(b) < ButtonFrameSize {
			return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, tag, ButtonFrameSize, len(b))
		}
		return Button{ID: b[1], Pressed: b[2] != 0}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
}
