package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/mood-chat/events"
	"github.com/example/mood-chat/modules/classifier"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the room registry and runs its mood loop.
type Module struct {
	registry *Registry
	eventBus mono.EventBus
	logger   types.Logger

	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(opts Options, logger types.Logger) *Module {
	return &Module{
		registry: NewRegistry(opts, logger),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"classifier"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "classifier":
		m.registry.SetClassifier(classifier.NewClassifierAdapter(container))
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	if bus != nil {
		m.registry.SetObserver(newEventPublisher(bus, m.logger))
	}
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.RoomDeletedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.MessageSentV1.ToBase(),
		events.MoodAnnouncedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoomMembers, json.Unmarshal, json.Marshal, m.getRoomMembers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoomMembers, err)
	}

	m.logger.Info("Registered chat services",
		"services", []string{ServiceCreateRoom, ServiceListRooms, ServiceGetRoom, ServiceGetRoomMembers})
	return nil
}

// Start launches the mood loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelRun = cancel
	m.runDone = make(chan struct{})
	go func() {
		defer close(m.runDone)
		m.registry.Run(ctx)
	}()

	opts := m.registry.Options()
	m.logger.Info("Chat module started",
		"maxHistory", opts.MaxHistory,
		"idleRoomGrace", opts.IdleRoomGrace,
		"moodInterval", opts.MoodInterval)
	return nil
}

// Stop stops the mood loop and closes every room.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancelRun != nil {
		m.cancelRun()
		select {
		case <-m.runDone:
		case <-ctx.Done():
			m.logger.Warn("Mood loop did not stop before shutdown deadline")
		}
	}

	stats := m.registry.Stats()
	m.registry.Close()
	m.logger.Info("Chat module stopped", "rooms", stats.Rooms, "connections", stats.Connections)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.registry.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       stats.Rooms,
			"connections": stats.Connections,
		},
	}
}

// Registry returns the room registry for the transport layer.
func (m *Module) Registry() *Registry {
	return m.registry
}
