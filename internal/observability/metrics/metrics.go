package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	consumptionRecords    metric.Int64Counter
	notifications         metric.Int64Counter
	regulationActivations metric.Int64Counter
	gateChecks            metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "residence"
	}
	meter := provider.Meter(name)

	consumptionRecords, err := meter.Int64Counter("residence_consumption_records_total",
		metric.WithDescription("Consumption readings evaluated and stored."))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("residence_consumption_notifications_total",
		metric.WithDescription("Consumption email send attempts by outcome."))
	if err != nil {
		return nil, err
	}
	regulationActivations, err := meter.Int64Counter("residence_regulation_activations_total")
	if err != nil {
		return nil, err
	}
	gateChecks, err := meter.Int64Counter("residence_compliance_gate_checks_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		consumptionRecords:    consumptionRecords,
		notifications:         notifications,
		regulationActivations: regulationActivations,
		gateChecks:            gateChecks,
	}, nil
}

// NewNoop returns instruments backed by the noop provider.
func NewNoop() *Metrics {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		return nil
	}
	return m
}

// RecordConsumption counts a stored reading.
func (m *Metrics) RecordConsumption(ctx context.Context, exceeded bool) {
	if m == nil {
		return
	}
	m.consumptionRecords.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("exceeds_limit", exceeded),
	))
}

// RecordNotification counts a send attempt; outcome is sent, failed or already_sent.
func (m *Metrics) RecordNotification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordRegulationActivation(ctx context.Context) {
	if m == nil {
		return
	}
	m.regulationActivations.Add(ctx, 1)
}

// RecordGateCheck counts compliance checks; outcome is open, accepted or blocked.
func (m *Metrics) RecordGateCheck(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.gateChecks.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":       {},
	"exceeds_limit": {},
	"route":         {},
	"status_code":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
