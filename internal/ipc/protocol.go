package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MessageType selects what a request asks the running client to do.
type MessageType string

const (
	TypeStatus      MessageType = "status"
	TypeReconfigure MessageType = "reconfigure"
	TypeDisconnect  MessageType = "disconnect"
)

// maxMessageSize bounds the length prefix so a bad peer cannot make us
// allocate arbitrarily.
const maxMessageSize = 1 << 20

var (
	// ErrInvalidMessage is returned for messages missing required fields
	ErrInvalidMessage = errors.New("invalid ipc message")
	// ErrRequestFailed wraps an error reported by the running client
	ErrRequestFailed = errors.New("request failed")
)

// Request is sent by CLI commands to a running client.
type Request struct {
	Type MessageType
	Host string // reconfigure only, empty means re-read the config
	Port uint16 // reconfigure only, 0 means the default port
}

// Response reports the client's state after handling a request.
type Response struct {
	OK          bool
	Error       string
	State       string
	Destination string
	Sent        uint64
	Dropped     uint64
	SendErrors  uint64
}

// ToStruct encodes the request as a protobuf Struct.
func (r Request) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{"type": string(r.Type)}
	if r.Host != "" {
		fields["host"] = r.Host
	}
	if r.Port != 0 {
		fields["port"] = float64(r.Port)
	}
	return structpb.NewStruct(fields)
}

// RequestFromStruct decodes and validates a request.
func RequestFromStruct(s *structpb.Struct) (Request, error) {
	if s == nil {
		return Request{}, ErrInvalidMessage
	}
	fields := s.GetFields()

	req := Request{
		Type: MessageType(fields["type"].GetStringValue()),
		Host: fields["host"].GetStringValue(),
	}
	switch req.Type {
	case TypeStatus, TypeReconfigure, TypeDisconnect:
	case "":
		return Request{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return Request{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, req.Type)
	}

	if v, ok := fields["port"]; ok {
		port := v.GetNumberValue()
		if port < 0 || port > 65535 || port != float64(uint16(port)) {
			return Request{}, fmt.Errorf("%w: invalid port %v", ErrInvalidMessage, port)
		}
		req.Port = uint16(port)
	}
	return req, nil
}

// ToStruct encodes the response as a protobuf Struct.
func (r Response) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ok":          r.OK,
		"error":       r.Error,
		"state":       r.State,
		"destination": r.Destination,
		"sent":        float64(r.Sent),
		"dropped":     float64(r.Dropped),
		"send_errors": float64(r.SendErrors),
	})
}

// ResponseFromStruct decodes a response. Missing fields read as zero values.
func ResponseFromStruct(s *structpb.Struct) (Response, error) {
	if s == nil {
		return Response{}, ErrInvalidMessage
	}
	fields := s.GetFields()
	if _, ok := fields["ok"]; !ok {
		return Response{}, fmt.Errorf("%w: missing ok", ErrInvalidMessage)
	}

	return Response{
		OK:          fields["ok"].GetBoolValue(),
		Error:       fields["error"].GetStringValue(),
		State:       fields["state"].GetStringValue(),
		Destination: fields["destination"].GetStringValue(),
		Sent:        uint64(fields["sent"].GetNumberValue()),
		Dropped:     uint64(fields["dropped"].GetNumberValue()),
		SendErrors:  uint64(fields["send_errors"].GetNumberValue()),
	}, nil
}

// ErrorResponse builds a failed response carrying msg.
func ErrorResponse(msg string) Response {
	return Response{OK: false, Error: msg}
}

// writeMessage writes a length-prefixed protobuf message
func writeMessage(w io.Writer, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Write message length (4 bytes, big endian)
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}

// readMessage reads a length-prefixed protobuf message into msg
func readMessage(r io.Reader, msg proto.Message) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds limit", ErrInvalidMessage, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message data: %w", err)
	}

	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}
