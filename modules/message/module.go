package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/events"
	"github.com/example/chat-app/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds message module settings.
type Config struct {
	DBPath string
	Paging PageConfig
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		DBPath: "chat_messages.db",
		Paging: DefaultPageConfig(),
	}
}

// MessageModule persists direct messages and announces them on the event bus.
type MessageModule struct {
	config   Config
	db       *gorm.DB
	users    UserLookup
	eventBus mono.EventBus
	service  *Service
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*MessageModule)(nil)
	_ mono.ServiceProviderModule = (*MessageModule)(nil)
	_ mono.DependentModule       = (*MessageModule)(nil)
	_ mono.EventBusAwareModule   = (*MessageModule)(nil)
	_ mono.EventEmitterModule    = (*MessageModule)(nil)
	_ mono.HealthCheckableModule = (*MessageModule)(nil)
)

// NewModule creates a new MessageModule configured from the environment.
func NewModule() *MessageModule {
	return NewModuleWithConfig(loadConfig())
}

// NewModuleWithConfig creates a new MessageModule with explicit settings.
func NewModuleWithConfig(config Config) *MessageModule {
	return &MessageModule{config: config}
}

// Name returns the module name.
func (m *MessageModule) Name() string {
	return "message"
}

// Dependencies returns the list of module dependencies.
func (m *MessageModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *MessageModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.users = auth.NewAuthAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *MessageModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *MessageModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
	}
}

// Start opens the message database and builds the service.
func (m *MessageModule) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("auth dependency not set")
	}

	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewService(NewRepository(db), m.users, m.config.Paging)

	log.Printf("[message] Module started (database: %s, page limit: %d)", m.config.DBPath, m.config.Paging.DefaultLimit)
	return nil
}

// Stop shuts down the module.
func (m *MessageModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[message] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *MessageModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.config.DBPath},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *MessageModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "send-message", json.Unmarshal, json.Marshal, m.handleSend,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-conversation", json.Unmarshal, json.Marshal, m.handleListConversation,
	); err != nil {
		return fmt.Errorf("failed to register list-conversation service: %w", err)
	}

	log.Printf("[message] Registered services: send-message, list-conversation")
	return nil
}

// handleSend persists the message, then publishes MessageSent.
func (m *MessageModule) handleSend(ctx context.Context, req SendRequest, _ *mono.Msg) (SendResponse, error) {
	msg, err := m.service.Send(ctx, req.SenderID, req.RecipientID, req.Text, req.Image)
	if err != nil {
		return SendResponse{Error: fault("send-message", err)}, nil
	}

	// Publishing is best-effort; the message is already stored.
	if m.eventBus != nil {
		event := events.MessageSentEvent{
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Text:       msg.Text,
			Image:      msg.Image,
			CreatedAt:  msg.CreatedAt,
		}
		if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[message] Warning: failed to publish MessageSent for %s: %v", msg.ID, err)
		}
	}

	return SendResponse{Message: msg}, nil
}

func (m *MessageModule) handleListConversation(ctx context.Context, req ListConversationRequest, _ *mono.Msg) (ListConversationResponse, error) {
	msgs, err := m.service.ListConversation(ctx, req.UserA, req.UserB, req.Page)
	if err != nil {
		return ListConversationResponse{Error: fault("list-conversation", err)}, nil
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return ListConversationResponse{Messages: msgs}, nil
}

func fault(op string, err error) *apperr.Error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		log.Printf("[message] %s failed: %v", op, err)
	}
	return e
}

// loadConfig loads module configuration from environment variables.
func loadConfig() Config {
	config := DefaultConfig()

	if path := os.Getenv("CHAT_MESSAGES_DB_PATH"); path != "" {
		config.DBPath = path
	}
	if limit := os.Getenv("MESSAGE_PAGE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			config.Paging.DefaultLimit = min(n, config.Paging.MaxLimit)
		} else {
			log.Printf("[message] Ignoring invalid MESSAGE_PAGE_LIMIT %q", limit)
		}
	}

	return config
}
