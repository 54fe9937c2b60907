package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-app/modules/api"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/cache"
	"github.com/example/chat-app/modules/media"
	"github.com/example/chat-app/modules/message"
	"github.com/example/chat-app/modules/presence"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	storageDir := getEnv("JETSTREAM_DIR", "/tmp/chat-app")
	redisAddr := os.Getenv("REDIS_ADDR")
	mediaBucketBytes := getEnvInt64("MEDIA_BUCKET_BYTES", 1024*1024*1024)

	log.Println("=== Chat App ===")
	log.Printf("JetStream storage: %s", storageDir)

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(storageDir),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Image blobs live in the embedded NATS object store.
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        media.BucketName,
				Description: "Chat images and avatars",
				MaxBytes:    mediaBucketBytes,
				Storage:     fsjetstream.FileStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	authModule := auth.NewModule()
	messageModule := message.NewModule()
	mediaModule := media.NewModule(app.Logger())
	presenceModule := presence.NewModule(app.Logger())
	apiModule := api.NewModule()

	var cacheModule *cache.Module
	if redisAddr != "" {
		cfg := cache.DefaultConfig()
		cfg.RedisAddr = redisAddr
		cacheModule = cache.NewModule(cfg)
		authModule.SetCache(cacheModule.Cache())
		log.Printf("Directory cache: redis at %s", redisAddr)
	} else {
		log.Println("Directory cache: disabled (REDIS_ADDR not set)")
	}

	apiModule.SetRegistry(presenceModule.Registry())
	apiModule.SetMediaModule(mediaModule)
	apiModule.AddHealthCheck(authModule.Name(), authModule)
	apiModule.AddHealthCheck(messageModule.Name(), messageModule)
	apiModule.AddHealthCheck(mediaModule.Name(), mediaModule)
	apiModule.AddHealthCheck(presenceModule.Name(), presenceModule)

	modules := []mono.Module{authModule, messageModule, mediaModule, presenceModule, apiModule}
	if cacheModule != nil {
		apiModule.AddHealthCheck(cacheModule.Name(), cacheModule)
		modules = append([]mono.Module{cacheModule}, modules...)
	}
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Println("Endpoints:")
	log.Println("  POST /api/auth/signup | /api/auth/login | /api/auth/logout")
	log.Println("  GET  /api/auth/check   PUT /api/auth/update-profile")
	log.Println("  GET  /api/messages/users")
	log.Println("  GET  /api/messages/:peerId?limit=&before=")
	log.Println("  POST /api/messages/send/:peerId")
	log.Println("  GET  /api/media/:id")
	log.Println("  GET  /ws?userId=")
	log.Println("  GET  /health")

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

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}
