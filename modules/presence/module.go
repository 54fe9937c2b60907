package presence

import (
	"context"
	"fmt"

	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the presence registry and relays MessageSent events to the
// recipient's live connection.
type Module struct {
	registry *Registry
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new presence module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		registry: NewRegistry(logger),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Registry returns the presence registry shared with the websocket endpoint.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Presence module started")
	return nil
}

// Stop closes every live connection.
func (m *Module) Stop(_ context.Context) error {
	count := m.registry.Count()
	m.registry.CloseAll()
	m.logger.Info("Presence module stopped", "closed_connections", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"online_users": m.registry.Count(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "MessageSent")
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	msg := domain.Message{
		ID:         event.MessageID,
		SenderID:   event.SenderID,
		ReceiverID: event.ReceiverID,
		Text:       event.Text,
		Image:      event.Image,
		CreatedAt:  event.CreatedAt,
	}

	if !m.registry.Push(event.ReceiverID, EventNewMessage, msg) {
		m.logger.Debug("Recipient offline, dropped push", "message_id", event.MessageID, "receiver_id", event.ReceiverID)
	}
	return nil
}
