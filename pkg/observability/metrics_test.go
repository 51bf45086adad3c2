package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewServerMetrics(registry, MetricsConfig{})
	require.NoError(t, err)

	m.ConnectionAccepted()
	m.ConnectionRefused()
	m.ExchangeCompleted("ok", 25*time.Millisecond)
	m.ErrorObserved("timeout")
	m.BytesRead(128)
	m.BytesWritten(256)
	m.ConnectionClosed()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"mcp_server_connections_accepted_total",
		"mcp_server_connections_refused_total",
		"mcp_server_active_connections",
		"mcp_server_exchanges_total",
		"mcp_server_exchange_duration_seconds",
		"mcp_server_errors_total",
		"mcp_server_bytes_read_total",
		"mcp_server_bytes_written_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}

	// a second registration on the same registry collides
	_, err = NewServerMetrics(registry, MetricsConfig{})
	require.Error(t, err)
}

func TestNewServerMetricsCustomNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewServerMetrics(registry, MetricsConfig{
		Namespace: "crew",
		Subsystem: "exchange",
	})
	require.NoError(t, err)
	m.ConnectionAccepted()

	families, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "crew_exchange_connections_accepted_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *ServerMetrics
	m.ConnectionAccepted()
	m.ConnectionRefused()
	m.ConnectionClosed()
	m.ExchangeCompleted("ok", time.Millisecond)
	m.ErrorObserved("internal")
	m.BytesRead(1)
	m.BytesWritten(1)
}
