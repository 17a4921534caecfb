package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/protocol"
)

// ParseError reports a malformed script line.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Step is one parsed script instruction.
type Step interface {
	apply(ctx context.Context, sink Sink) error
}

// EventStep enqueues a data event.
type EventStep struct {
	Event protocol.DataEvent
}

// SleepStep pauses the script.
type SleepStep struct {
	Duration time.Duration
}

// ReconfigureStep points the client at a new destination and waits for the
// outcome. A failed reconfigure is logged and the script continues.
type ReconfigureStep struct {
	Host string
	Port uint16
}

// DisconnectStep releases the client's socket.
type DisconnectStep struct{}

func (s EventStep) apply(_ context.Context, sink Sink) error {
	sink.Enqueue(s.Event)
	return nil
}

func (s SleepStep) apply(ctx context.Context, _ Sink) error {
	return sleep(ctx, s.Duration)
}

func (s ReconfigureStep) apply(ctx context.Context, sink Sink) error {
	addr, err := sink.Reconfigure(ctx, s.Host, s.Port)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Script reconfigure failed", "host", s.Host, "port", s.Port, "error", err)
		return nil
	}
	logger.Debug("Script reconfigured", "destination", addr)
	return nil
}

func (DisconnectStep) apply(_ context.Context, sink Sink) error {
	sink.Disconnect()
	return nil
}

// ParseLine parses a single script line. Blank lines and # comments yield a
// nil step.
func ParseLine(line string) (Step, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "motion":
		if len(args) != 3 {
			return nil, errors.New("motion takes x y pressure")
		}
		var v [3]float32
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", a)
			}
			v[i] = float32(f)
		}
		m := protocol.Motion{X: v[0], Y: v[1], Pressure: v[2]}
		return EventStep{Event: m.Clamp()}, nil

	case "button":
		if len(args) != 2 {
			return nil, errors.New("button takes id down|up")
		}
		id, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid button id %q", args[0])
		}
		var pressed bool
		switch strings.ToLower(args[1]) {
		case "down", "press", "1":
			pressed = true
		case "up", "release", "0":
			pressed = false
		default:
			return nil, fmt.Errorf("invalid button state %q", args[1])
		}
		return EventStep{Event: protocol.Button{ID: uint8(id), Pressed: pressed}}, nil

	case "sleep":
		if len(args) != 1 {
			return nil, errors.New("sleep takes a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid duration %q", args[0])
		}
		return SleepStep{Duration: d}, nil

	case "reconfigure":
		if len(args) < 1 || len(args) > 2 {
			return nil, errors.New("reconfigure takes host [port]")
		}
		port := protocol.DefaultPort
		if len(args) == 2 {
			p, err := strconv.ParseUint(args[1], 10, 16)
			if err != nil || p == 0 {
				return nil, fmt.Errorf("invalid port %q", args[1])
			}
			port = uint16(p)
		}
		return ReconfigureStep{Host: args[0], Port: port}, nil

	case "disconnect":
		if len(args) != 0 {
			return nil, errors.New("disconnect takes no arguments")
		}
		return DisconnectStep{}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

// Script replays a fixed list of steps.
type Script struct {
	name  string
	Steps []Step
}

// ParseScript reads a whole script, failing on the first bad line.
func ParseScript(name string, r io.Reader) (*Script, error) {
	s := &Script{name: name}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		step, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, &ParseError{File: name, Line: line, Message: err.Error()}
		}
		if step != nil {
			s.Steps = append(s.Steps, step)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return s, nil
}

func (s *Script) Name() string { return NameScript }

// Run applies every step in order.
func (s *Script) Run(ctx context.Context, sink Sink) error {
	logger.Info("Running script", "name", s.name, "steps", len(s.Steps))
	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.apply(ctx, sink); err != nil {
			return err
		}
	}
	return nil
}

// Stream parses and applies lines as they arrive, for interactive use. Bad
// lines are logged and skipped.
type Stream struct {
	name string
	r    io.Reader
}

// NewStream creates a line-at-a-time source over r.
func NewStream(name string, r io.Reader) *Stream {
	return &Stream{name: name, r: r}
}

func (s *Stream) Name() string { return NameStdin }

// Run returns when r reaches EOF or ctx is done. A blocked read is not
// interrupted by ctx.
func (s *Stream) Run(ctx context.Context, sink Sink) error {
	scanner := bufio.NewScanner(s.r)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		step, err := ParseLine(scanner.Text())
		if err != nil {
			logger.Warn("Skipping bad line", "error", &ParseError{File: s.name, Line: line, Message: err.Error()})
			continue
		}
		if step == nil {
			continue
		}
		if err := step.apply(ctx, sink); err != nil {
			return err
		}
	}
	return scanner.Err()
}
