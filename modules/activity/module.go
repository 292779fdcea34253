package activity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/example/mood-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mood_chat"

// ActivityModule consumes chat events and keeps Prometheus metrics for them.
type ActivityModule struct {
	registry *prometheus.Registry

	rooms        prometheus.Gauge
	connections  prometheus.Gauge
	roomsCreated prometheus.Counter
	roomsDeleted *prometheus.CounterVec
	messages     prometheus.Counter
	deliveries   prometheus.Counter
	moods        *prometheus.CounterVec

	activeRooms       atomic.Int64
	activeConnections atomic.Int64
	messageCount      atomic.Int64
}

// Compile-time interface checks.
var _ mono.Module = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)
var _ mono.HealthCheckableModule = (*ActivityModule)(nil)

// NewModule creates a new ActivityModule with its own metrics registry.
func NewModule() *ActivityModule {
	m := &ActivityModule{
		registry: prometheus.NewRegistry(),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of chat rooms currently open.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently joined to a room.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created since start.",
		}),
		roomsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_deleted_total",
			Help:      "Rooms deleted since start, by reason.",
		}, []string{"reason"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "User messages broadcast.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_deliveries_total",
			Help:      "User message deliveries across all recipients.",
		}),
		moods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moods_total",
			Help:      "Mood announcements, by label.",
		}, []string{"label"}),
	}
	m.registry.MustRegister(
		m.rooms,
		m.connections,
		m.roomsCreated,
		m.roomsDeleted,
		m.messages,
		m.deliveries,
		m.moods,
		prometheus.NewGoCollector(),
	)
	return m
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// Start initializes the module.
func (m *ActivityModule) Start(_ context.Context) error {
	log.Println("[activity] Module started - collecting chat metrics")
	return nil
}

// Stop shuts down the module.
func (m *ActivityModule) Stop(_ context.Context) error {
	log.Printf("[activity] Module stopped - %d messages observed", m.messageCount.Load())
	return nil
}

// Health returns the health status.
func (m *ActivityModule) Health(_ context.Context) mono.HealthStatus {
	snap := m.Snapshot()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_rooms":       snap.Rooms,
			"active_connections": snap.Connections,
			"messages":           snap.Messages,
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomDeletedV1, m.handleRoomDeleted, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomDeleted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MoodAnnouncedV1, m.handleMoodAnnounced, m,
	); err != nil {
		return fmt.Errorf("failed to register MoodAnnounced consumer: %w", err)
	}

	log.Println("[activity] Registered event consumers: RoomCreated, RoomDeleted, UserJoined, UserLeft, MessageSent, MoodAnnounced")
	return nil
}

// Event handlers

func (m *ActivityModule) handleRoomCreated(_ context.Context, _ events.RoomCreatedEvent, _ *mono.Msg) error {
	m.roomsCreated.Inc()
	m.rooms.Set(float64(m.activeRooms.Add(1)))
	return nil
}

func (m *ActivityModule) handleRoomDeleted(_ context.Context, event events.RoomDeletedEvent, _ *mono.Msg) error {
	m.roomsDeleted.WithLabelValues(event.Reason).Inc()
	m.rooms.Set(float64(decrementFloor(&m.activeRooms)))
	return nil
}

func (m *ActivityModule) handleUserJoined(_ context.Context, _ events.UserJoinedEvent, _ *mono.Msg) error {
	m.connections.Set(float64(m.activeConnections.Add(1)))
	return nil
}

func (m *ActivityModule) handleUserLeft(_ context.Context, _ events.UserLeftEvent, _ *mono.Msg) error {
	m.connections.Set(float64(decrementFloor(&m.activeConnections)))
	return nil
}

func (m *ActivityModule) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.messageCount.Add(1)
	m.messages.Inc()
	m.deliveries.Add(float64(event.Recipients))
	return nil
}

func (m *ActivityModule) handleMoodAnnounced(_ context.Context, event events.MoodAnnouncedEvent, _ *mono.Msg) error {
	m.moods.WithLabelValues(event.Label).Inc()
	return nil
}

// decrementFloor subtracts one without going below zero. Events may arrive
// out of order across subjects.
func decrementFloor(v *atomic.Int64) int64 {
	for {
		cur := v.Load()
		if cur <= 0 {
			return 0
		}
		if v.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// Snapshot is the current activity view.
type Snapshot struct {
	Rooms       int64 `json:"rooms"`
	Connections int64 `json:"connections"`
	Messages    int64 `json:"messages"`
}

// Snapshot returns the current counters.
func (m *ActivityModule) Snapshot() Snapshot {
	return Snapshot{
		Rooms:       m.activeRooms.Load(),
		Connections: m.activeConnections.Load(),
		Messages:    m.messageCount.Load(),
	}
}

// MetricsHandler serves the module's metrics in the Prometheus text format.
func (m *ActivityModule) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
