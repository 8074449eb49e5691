package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dabananda/secure-account-api/internal/infra/config"
)

// Attach initializes distributed tracing when an OTLP endpoint is
// configured. Without one it is a no-op, so local runs need no collector.
func Attach(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*TracerProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.Telemetry.OTLPEndpoint == "" {
		logger.Info("otlp endpoint not configured, tracing disabled")
		return nil, nil
	}

	settings := cfg.Telemetry
	if settings.ServiceName == "" {
		settings.ServiceName = cfg.App.Name
	}
	if settings.SamplingRate <= 0 {
		settings.SamplingRate = 1.0
	}

	return NewTracerProvider(ctx, settings, logger)
}
