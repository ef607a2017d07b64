// Package metrics exposes prometheus collectors for the HTTP API and the forum.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/mindhealer-server/internal/forum"
)

const namespace = "mindhealer"

var _ forum.Observer = (*Metrics)(nil)

type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	participants prometheus.Gauge
	rooms        prometheus.Gauge
	roomSize     *prometheus.GaugeVec
	messages     prometheus.Counter
	deliveries   prometheus.Counter

	activeRooms map[string]struct{}
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forum",
			Name:      "participants",
			Help:      "Connected forum participants.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forum",
			Name:      "rooms",
			Help:      "Forum rooms with at least one member.",
		}),
		roomSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forum",
			Name:      "room_members",
			Help:      "Members per forum room.",
		}, []string{"room"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forum",
			Name:      "messages_total",
			Help:      "Messages sent to forum rooms.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forum",
			Name:      "message_deliveries_total",
			Help:      "Message events handed to participants.",
		}),
		activeRooms: make(map[string]struct{}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.participants,
		m.rooms,
		m.roomSize,
		m.messages,
		m.deliveries,
	)

	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// The forum.Observer methods run under the coordinator lock, which also guards activeRooms.

func (m *Metrics) ParticipantConnected() {
	m.participants.Inc()
}

func (m *Metrics) ParticipantDisconnected() {
	m.participants.Dec()
}

func (m *Metrics) RoomSize(room string, count int) {
	if count == 0 {
		m.roomSize.DeleteLabelValues(room)
		delete(m.activeRooms, room)
	} else {
		m.roomSize.WithLabelValues(room).Set(float64(count))
		m.activeRooms[room] = struct{}{}
	}
	m.rooms.Set(float64(len(m.activeRooms)))
}

func (m *Metrics) MessageSent(_ string, recipients int) {
	m.messages.Inc()
	m.deliveries.Add(float64(recipients))
}
