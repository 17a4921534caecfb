package ipc

import (
	"context"
	"net"

	"github.com/bnema/waytablet/internal/network"
	"github.com/bnema/waytablet/internal/protocol"
)

// Controller is the part of the network client the socket drives.
type Controller interface {
	Stats() network.Stats
	Reconfigure(ctx context.Context, host string, port uint16) (*net.UDPAddr, error)
	ReconfigureNetworking(ctx context.Context) (*net.UDPAddr, error)
	Disconnect()
}

// ClientHandler answers socket requests from a network client.
type ClientHandler struct {
	ctrl   Controller
	reload func() error
}

// NewClientHandler wraps ctrl.
func NewClientHandler(ctrl Controller) *ClientHandler {
	return &ClientHandler{ctrl: ctrl}
}

// WithReload sets the function that re-reads the configuration before a
// reconfigure request without a host.
func (h *ClientHandler) WithReload(reload func() error) *ClientHandler {
	h.reload = reload
	return h
}

func (h *ClientHandler) HandleStatus() (Response, error) {
	return h.snapshot(), nil
}

func (h *ClientHandler) HandleReconfigure(ctx context.Context, host string, port uint16) (Response, error) {
	var err error
	if host == "" {
		if h.reload != nil {
			err = h.reload()
		}
		if err == nil {
			_, err = h.ctrl.ReconfigureNetworking(ctx)
		}
	} else {
		if port == 0 {
			port = protocol.DefaultPort
		}
		_, err = h.ctrl.Reconfigure(ctx, host, port)
	}

	resp := h.snapshot()
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}
	return resp, nil
}

// HandleDisconnect enqueues a disconnect. The reported state may still show
// the old destination until the worker reaches it.
func (h *ClientHandler) HandleDisconnect() (Response, error) {
	h.ctrl.Disconnect()
	return h.snapshot(), nil
}

func (h *ClientHandler) snapshot() Response {
	st := h.ctrl.Stats()
	resp := Response{
		OK:         true,
		State:      st.State.String(),
		Sent:       st.Sent,
		Dropped:    st.Dropped,
		SendErrors: st.SendErrors,
	}
	if st.Destination != nil {
		resp.Destination = st.Destination.String()
	}
	return resp
}
