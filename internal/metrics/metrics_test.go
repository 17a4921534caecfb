package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClient(reg)

	m.FrameSent()
	m.FrameSent()
	m.FrameDropped(DropNoDestination)
	m.SendError()
	m.Reconfigured(nil)
	m.Reconfigured(errors.New("boom"))
	m.Reconfigured(errors.New("boom"))
	m.SetQueueDepth(7)
	m.SetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(DropNoDestination)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconfigures.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconfigures.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "waytablet_client_frames_sent_total")
	assert.Contains(t, names, "waytablet_client_reconfigures_total")
}

func TestReceiver_Counters(t *testing.T) {
	m := NewReceiver(prometheus.NewRegistry())

	m.FrameReceived("motion")
	m.DecodeError("truncated")
	m.HandlerError("uinput")
	m.SetMonitorClients(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("motion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors.WithLabelValues("truncated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerErrors.WithLabelValues("uinput")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.monitorClients))
}

func TestNilMetrics(t *testing.T) {
	var c *Client
	var r *Receiver

	assert.NotPanics(t, func() {
		c.FrameSent()
		c.FrameDropped(DropClosed)
		c.SendError()
		c.Reconfigured(nil)
		c.SetQueueDepth(1)
		c.SetConnected(false)
		r.FrameReceived("button")
		r.DecodeError("unknown_tag")
		r.HandlerError("log")
		r.SetMonitorClients(0)
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
