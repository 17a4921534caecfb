package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestStruct(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "status", req: Request{Type: TypeStatus}},
		{name: "reconfigure from config", req: Request{Type: TypeReconfigure}},
		{name: "reconfigure to host", req: Request{Type: TypeReconfigure, Host: "studio-pc", Port: 40200}},
		{name: "disconnect", req: Request{Type: TypeDisconnect}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.req.ToStruct()
			if err != nil {
				t.Fatalf("ToStruct() error = %v", err)
			}

			got, err := RequestFromStruct(s)
			if err != nil {
				t.Fatalf("RequestFromStruct() error = %v", err)
			}
			if got != tt.req {
				t.Errorf("Expected %+v, got %+v", tt.req, got)
			}
		})
	}
}

func TestRequestFromStructInvalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{name: "missing type", fields: map[string]any{}},
		{name: "unknown type", fields: map[string]any{"type": "switch"}},
		{name: "negative port", fields: map[string]any{"type": "reconfigure", "port": -1}},
		{name: "port too large", fields: map[string]any{"type": "reconfigure", "port": 70000}},
		{name: "fractional port", fields: map[string]any{"type": "reconfigure", "port": 40118.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := RequestFromStruct(s); !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("Expected ErrInvalidMessage, got %v", err)
			}
		})
	}

	if _, err := RequestFromStruct(nil); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Expected ErrInvalidMessage for nil, got %v", err)
	}
}

func TestResponseStruct(t *testing.T) {
	resp := Response{
		OK:          true,
		State:       "connected",
		Destination: "192.168.1.20:40118",
		Sent:        1234,
		Dropped:     5,
		SendErrors:  1,
	}

	s, err := resp.ToStruct()
	if err != nil {
		t.Fatalf("ToStruct() error = %v", err)
	}
	got, err := ResponseFromStruct(s)
	if err != nil {
		t.Fatalf("ResponseFromStruct() error = %v", err)
	}
	if got != resp {
		t.Errorf("Expected %+v, got %+v", resp, got)
	}

	empty, _ := structpb.NewStruct(map[string]any{"state": "idle"})
	if _, err := ResponseFromStruct(empty); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Expected ErrInvalidMessage without ok field, got %v", err)
	}
}

func TestMessageFraming(t *testing.T) {
	var buf bytes.Buffer

	in, _ := Request{Type: TypeStatus}.ToStruct()
	if err := writeMessage(&buf, in); err != nil {
		t.Fatalf("writeMessage() error = %v", err)
	}

	length := binary.BigEndian.Uint32(buf.Bytes()[:4])
	if int(length) != buf.Len()-4 {
		t.Errorf("Length prefix %d does not match body of %d bytes", length, buf.Len()-4)
	}

	var out structpb.Struct
	if err := readMessage(&buf, &out); err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if out.GetFields()["type"].GetStringValue() != "status" {
		t.Errorf("Unexpected message %v", out.AsMap())
	}
}

func TestReadMessageRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(maxMessageSize+1))

	var out structpb.Struct
	if err := readMessage(&buf, &out); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Expected ErrInvalidMessage, got %v", err)
	}
}
