package command

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
)

// countingProvider hands out meters whose callback registrations count
// Unregister calls.
type countingProvider struct {
	noop.MeterProvider
	registered   atomic.Int32
	unregistered atomic.Int32
}

func (p *countingProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return countingMeter{p: p}
}

type countingMeter struct {
	noop.Meter
	p *countingProvider
}

func (m countingMeter) RegisterCallback(metric.Callback, ...metric.Observable) (metric.Registration, error) {
	m.p.registered.Add(1)
	return countingRegistration{p: m.p}, nil
}

type countingRegistration struct {
	embedded.Registration
	p *countingProvider
}

func (r countingRegistration) Unregister() error {
	r.p.unregistered.Add(1)
	return nil
}

func TestClose_UnregistersHistoryCallback(t *testing.T) {
	prev := otel.GetMeterProvider()
	p := &countingProvider{}
	otel.SetMeterProvider(p)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, err := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.registered.Load())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.EqualValues(t, 1, p.unregistered.Load())
}
