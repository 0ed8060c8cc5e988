package observability

import (
	"strings"

	"github.com/smallbiznis/residence/internal/config"
)

const (
	defaultServiceName   = "residence"
	defaultSamplingRatio = 0.1
)

// Config is the normalized telemetry setup shared by the logger, tracer and
// meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry
	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             lower(t.LogLevel),
		LogFormat:            lower(t.LogFormat),
		OtelEnabled:          t.OtelEnabled && strings.TrimSpace(t.OtelEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(t.OtelEndpoint),
		OtelExporterProtocol: exporterProtocol(t.OtelProtocol),
		OtelSamplingRatio:    t.SamplingRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = defaultServiceName
	}
	if out.LogFormat != "console" {
		out.LogFormat = "json"
	}
	if out.OtelSamplingRatio <= 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = defaultSamplingRatio
	}
	return out
}

// Debug enables verbose logging and gin debug mode.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// exporterProtocol folds the OTLP protocol names onto grpc or http.
func exporterProtocol(raw string) string {
	switch lower(raw) {
	case "http", "http/protobuf", "http/json":
		return "http"
	default:
		return "grpc"
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
