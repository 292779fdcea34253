package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/mood-chat/config"
	"github.com/example/mood-chat/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
)

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	cfg            config.Config
	app            *fiber.App
	chatAdapter    chat.ChatPort
	registry       *chat.Registry
	metricsHandler http.Handler
	storage        fiber.Storage

	// ctx is cancelled on Stop and unblocks every WebSocket read.
	ctx    context.Context
	cancel context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg config.Config) *APIModule {
	ctx, cancel := context.WithCancel(context.Background())
	return &APIModule{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chatAdapter = chat.NewChatAdapter(container)
	}
}

// SetRegistry sets the room registry used by WebSocket sessions (called from main.go).
func (m *APIModule) SetRegistry(registry *chat.Registry) {
	m.registry = registry
}

// SetMetricsHandler mounts h at /metrics (called from main.go).
func (m *APIModule) SetMetricsHandler(h http.Handler) {
	m.metricsHandler = h
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.chatAdapter == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.registry == nil {
		return fmt.Errorf("chat registry dependency not set")
	}

	if m.cfg.RedisAddr != "" {
		host, port := parseRedisAddr(m.cfg.RedisAddr)
		m.storage = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			PoolSize: 10,
		})
		log.Printf("[api] Rate limiter storage: redis at %s", m.cfg.RedisAddr)
	}

	m.app = m.newApp()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on :%s", m.cfg.Port)
	return nil
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		UnescapePath:          true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	// Add recovery middleware
	app.Use(recover.New())

	// Add logging middleware
	app.Use(loggerMiddleware())

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(m.cfg.CORSAllowOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
	}))

	m.setupRoutes(app)
	return app
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	m.cancel()
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	err := m.app.ShutdownWithContext(ctx)
	if m.storage != nil {
		if cerr := m.storage.Close(); cerr != nil {
			log.Printf("[api] Error closing limiter storage: %v", cerr)
		}
	}
	return err
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.cfg.Port,
	}
	if m.registry != nil {
		stats := m.registry.Stats()
		details["rooms"] = stats.Rooms
		details["connections"] = stats.Connections
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
