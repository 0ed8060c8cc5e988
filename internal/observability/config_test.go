package observability

import (
	"testing"

	"github.com/smallbiznis/residence/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      " WARN ",
			LogFormat:     "pretty",
			OtelEnabled:   true,
			OtelEndpoint:  "collector:4318",
			OtelProtocol:  "http/protobuf",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "residence", cfg.ServiceName)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "local",
		Telemetry:   config.TelemetryConfig{OtelEnabled: true, OtelProtocol: "grpc", SamplingRatio: 0.5},
	})

	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestSplitConfigCarriesServiceIdentity(t *testing.T) {
	parts := splitConfig(Config{ServiceName: "residence", Environment: "test", Version: "1.2.0", OtelSamplingRatio: 0.2})

	assert.Equal(t, "residence", parts.Logger.ServiceName)
	assert.True(t, parts.Logger.Debug)
	assert.Equal(t, "1.2.0", parts.Tracing.ServiceVersion)
	assert.Equal(t, 0.2, parts.Tracing.SamplingRatio)
	assert.Equal(t, "test", parts.Metrics.Environment)
}
