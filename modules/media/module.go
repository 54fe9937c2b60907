package media

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketName is the fs-jetstream bucket images are kept in.
const BucketName = "images"

// DefaultMaxBytes is the largest image accepted by default.
const DefaultMaxBytes = 5 * 1024 * 1024

// Module implements image storage using the fs-jetstream plugin.
type Module struct {
	storage  *fsjetstream.PluginModule
	service  *Service
	maxBytes int
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new media module. MEDIA_MAX_BYTES overrides the
// size limit.
func NewModule(logger types.Logger) *Module {
	maxBytes := DefaultMaxBytes
	if v := os.Getenv("MEDIA_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxBytes = n
		} else {
			logger.Warn("Ignoring invalid MEDIA_MAX_BYTES", "value", v)
		}
	}
	return &Module{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "media"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start resolves the images bucket.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	bucket := m.storage.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}
	m.service = NewService(bucket, m.maxBytes)

	m.logger.Info("Media module started", "bucket", BucketName, "max_bytes", m.maxBytes)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Media module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"bucket": BucketName, "max_bytes": m.maxBytes},
	}
}

// Service returns the media service. It is nil until Start.
func (m *Module) Service() *Service {
	return m.service
}
