// Package metrics holds the Prometheus instruments of the client and receiver.
// All methods are safe to call on a nil receiver, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "waytablet"

// Drop reasons.
const (
	DropNoDestination = "no_destination"
	DropClosed        = "closed"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Client instruments the network worker.
type Client struct {
	framesSent    prometheus.Counter
	framesDropped *prometheus.CounterVec
	sendErrors    prometheus.Counter
	reconfigures  *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	connected     prometheus.Gauge
}

// NewClient registers the client metrics with reg.
func NewClient(reg prometheus.Registerer) *Client {
	factory := promauto.With(reg)

	return &Client{
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "frames_sent_total",
			Help:      "Frames written to the destination socket",
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "frames_dropped_total",
			Help:      "Data events that were not transmitted",
		}, []string{"reason"}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "send_errors_total",
			Help:      "Socket writes that failed",
		}),
		reconfigures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "reconfigures_total",
			Help:      "Destination changes by outcome",
		}, []string{"result"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "queue_depth",
			Help:      "Events waiting for the network worker",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "client",
			Name:      "connected",
			Help:      "1 while a destination is configured",
		}),
	}
}

func (m *Client) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Client) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Client) SendError() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}

// Reconfigured records a reconfigure outcome.
func (m *Client) Reconfigured(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconfigures.WithLabelValues(result).Inc()
}

func (m *Client) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Client) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// Receiver instruments the host-side listener.
type Receiver struct {
	framesReceived *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	handlerErrors  *prometheus.CounterVec
	monitorClients prometheus.Gauge
}

// NewReceiver registers the receiver metrics with reg.
func NewReceiver(reg prometheus.Registerer) *Receiver {
	factory := promauto.With(reg)

	return &Receiver{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receiver",
			Name:      "frames_received_total",
			Help:      "Frames decoded from incoming datagrams",
		}, []string{"type"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receiver",
			Name:      "decode_errors_total",
			Help:      "Datagrams that could not be decoded",
		}, []string{"kind"}),
		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "receiver",
			Name:      "handler_errors_total",
			Help:      "Events a handler failed to process",
		}, []string{"handler"}),
		monitorClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "receiver",
			Name:      "monitor_clients",
			Help:      "Connected websocket monitors",
		}),
	}
}

func (m *Receiver) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Receiver) DecodeError(kind string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(kind).Inc()
}

func (m *Receiver) HandlerError(handler string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(handler).Inc()
}

func (m *Receiver) SetMonitorClients(n int) {
	if m == nil {
		return
	}
	m.monitorClients.Set(float64(n))
}
