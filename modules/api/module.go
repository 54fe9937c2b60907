package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/media"
	"github.com/example/chat-app/modules/message"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds HTTP server settings.
type Config struct {
	Port         int
	CORSOrigins  string
	CookieSecure bool
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Port:        3000,
		CORSOrigins: "http://localhost:5173",
	}
}

// APIModule is the HTTP and websocket front end.
type APIModule struct {
	config      Config
	app         *fiber.App
	authAdapter auth.AuthPort
	msgAdapter  message.MessagePort
	registry    PresenceRegistry
	mediaModule *media.Module
	health      map[string]HealthChecker
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule configured from the environment.
func NewModule() *APIModule {
	return NewModuleWithConfig(loadConfig())
}

// NewModuleWithConfig creates a new APIModule with explicit settings.
func NewModuleWithConfig(config Config) *APIModule {
	return &APIModule{
		config: config,
		health: make(map[string]HealthChecker),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies. The media module
// is included when wired so it is started before, and stopped after, the
// HTTP server that reads its service.
func (m *APIModule) Dependencies() []string {
	deps := []string{"auth", "message"}
	if m.mediaModule != nil {
		deps = append(deps, m.mediaModule.Name())
	}
	return deps
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authAdapter = auth.NewAuthAdapter(container)
	case "message":
		m.msgAdapter = message.NewMessageAdapter(container)
	}
}

// SetRegistry wires the presence registry used by /ws.
func (m *APIModule) SetRegistry(registry PresenceRegistry) {
	m.registry = registry
}

// SetMediaModule wires image storage. Call it before registering the
// module: it adds media to Dependencies.
func (m *APIModule) SetMediaModule(module *media.Module) {
	m.mediaModule = module
}

// AddHealthCheck includes a module in the /health report.
func (m *APIModule) AddHealthCheck(name string, checker HealthChecker) {
	m.health[name] = checker
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.msgAdapter == nil {
		return fmt.Errorf("message dependency not set")
	}
	if m.registry == nil {
		return fmt.Errorf("presence registry not set")
	}

	var store MediaStore
	if m.mediaModule != nil {
		store = moduleMedia{m.mediaModule}
	}
	handlers := NewHandlers(m.authAdapter, m.msgAdapter, store, m.config.CookieSecure)
	for name, checker := range m.health {
		handlers.health[name] = checker
	}
	handlers.health[m.Name()] = m

	m.app = newApp(m.config, handlers, m.authAdapter, m.registry)

	addr := fmt.Sprintf(":%d", m.config.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on %s", addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.config.Port,
		},
	}
}

// newApp builds the Fiber application with every route mounted.
func newApp(config Config, h *Handlers, authPort auth.AuthPort, registry PresenceRegistry) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		BodyLimit:             8 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: config.CORSOrigins != "*",
	}))

	requireSession := AuthMiddleware(authPort)

	app.Get("/health", h.Health)

	app.Use("/ws", upgradeGate)
	app.Get("/ws", requireSession, socketIdentity, websocket.New(socketHandler(registry)))

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", h.Signup)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/logout", h.Logout)
	authRoutes.Get("/check", requireSession, h.Check)
	authRoutes.Put("/update-profile", requireSession, h.UpdateProfile)

	messages := api.Group("/messages", requireSession)
	messages.Get("/users", h.ListUsers)
	messages.Post("/send/:peerId", h.SendMessage)
	messages.Get("/:peerId", h.ListConversation)

	api.Get("/media/:id", h.GetMedia)

	return app
}

// moduleMedia resolves the media service at call time.
type moduleMedia struct {
	module *media.Module
}

func (s moduleMedia) Upload(ctx context.Context, dataURL string) (*media.Image, error) {
	svc := s.module.Service()
	if svc == nil {
		return nil, errNoMedia
	}
	return svc.Upload(ctx, dataURL)
}

func (s moduleMedia) Get(ctx context.Context, id string) ([]byte, *media.Image, error) {
	svc := s.module.Service()
	if svc == nil {
		return nil, nil, errNoMedia
	}
	return svc.Get(ctx, id)
}

func (s moduleMedia) Delete(ctx context.Context, id string) error {
	svc := s.module.Service()
	if svc == nil {
		return errNoMedia
	}
	return svc.Delete(ctx, id)
}

// loadConfig loads server configuration from environment variables.
func loadConfig() Config {
	config := DefaultConfig()

	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			config.Port = n
		} else {
			log.Printf("[api] Warning: invalid PORT %q, using %d", port, config.Port)
		}
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.CORSOrigins = origins
	}
	if secure := os.Getenv("COOKIE_SECURE"); secure != "" {
		if b, err := strconv.ParseBool(secure); err == nil {
			config.CookieSecure = b
		} else {
			log.Printf("[api] Warning: invalid COOKIE_SECURE %q, using false", secure)
		}
	}

	return config
}
