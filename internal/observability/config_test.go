package observability

import (
	"testing"

	"github.com/smallbiznis/wastebill/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		AppVersion:  "1.2.0",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			OtelEnabled:   true,
			OTLPEndpoint:  "collector:4317",
			OTLPProtocol:  "thrift",
			SamplingRatio: 4,
		},
	})

	assert.Equal(t, "wastebill", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{OtelEnabled: true}})
	assert.False(t, cfg.OtelEnabled)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
