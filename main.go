package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/mood-chat/config"
	"github.com/example/mood-chat/modules/activity"
	"github.com/example/mood-chat/modules/api"
	"github.com/example/mood-chat/modules/chat"
	"github.com/example/mood-chat/modules/classifier"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Mood Chat - Fiber WebSocket rooms + mood broadcasts ===")

	cfg := config.Load()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	classifierModule, err := classifier.NewModule(classifier.Config{
		Mode:       cfg.ClassifierMode,
		URL:        cfg.ClassifierURL,
		Timeout:    cfg.ClassifierTimeout,
		FixedLabel: cfg.ClassifierFixedLabel,
	})
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}
	chatModule := chat.NewModule(chat.Options{
		MaxHistory:     cfg.MaxHistory,
		IdleRoomGrace:  cfg.RoomIdleGrace,
		MoodInterval:   cfg.MoodInterval,
		MoodSampleSize: cfg.MoodSampleSize,
	}, app.Logger().WithModule("chat"))
	activityModule := activity.NewModule()
	apiModule := api.NewModule(cfg)

	// The registry and metrics handler are not exposed via ServiceContainer.
	apiModule.SetRegistry(chatModule.Registry())
	apiModule.SetMetricsHandler(activityModule.MetricsHandler())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - classifier: mood classification service (ServiceProviderModule)
	// - chat: rooms and mood loop (depends on classifier, emits events)
	// - activity: event consumer keeping Prometheus metrics
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on chat)
	for _, m := range []mono.Module{classifierModule, chatModule, activityModule, apiModule} {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	port := cfg.Port

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Rooms:")
	log.Printf("  - Max history per connection: %d", cfg.MaxHistory)
	log.Printf("  - Empty rooms are swept after: %s", cfg.RoomIdleGrace)
	log.Printf("  - Mood broadcast every %s (classifier: %s)", cfg.MoodInterval, cfg.ClassifierMode)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  GET    /metrics                         - Prometheus metrics")
	log.Println("  GET    /api/v1/chat/rooms               - List all rooms")
	log.Println("  POST   /api/v1/chat/rooms/new           - Create a new room")
	log.Println("  GET    /api/v1/chat/rooms/:id           - Get room details")
	log.Println("  GET    /api/v1/chat/rooms/:id/members   - List room members")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/api/v1/chat/:id/connect/:username):", port)
	log.Println(`  Send frames as {"message": "..."}`)
	log.Println("")
	log.Println("Client: go run ./cmd/chat-client -addr localhost:" + port)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
