package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDelivery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDelivery("2xx", 20*time.Millisecond)
	m.ObserveDelivery("2xx", 30*time.Millisecond)
	m.ObserveDelivery("error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeliveryRequests.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryRequests.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DeliveryDuration))
}

func TestObserveTick(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTick(true)
	m.ObserveTick(false)
	m.ObserveTick(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FirehoseTicks.WithLabelValues(TickOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FirehoseTicks.WithLabelValues(TickFailed)))
}

func TestSetRunning(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FirehoseRunning))
	m.SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FirehoseRunning))
}

func TestObserveSynth(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSynth("Create")
	m.ObserveSynth("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Synthesized.WithLabelValues("Create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Synthesized.WithLabelValues("unknown")))
}

type fakeMinter struct{ err error }

func (f fakeMinter) Mint(context.Context, map[string]any, string) (string, error) {
	return "https://fuzz.example/m/1", f.err
}

func TestInstrumentMinter(t *testing.T) {
	m := New(prometheus.NewRegistry())

	ok := m.InstrumentMinter(fakeMinter{})
	id, err := ok.Mint(context.Background(), map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://fuzz.example/m/1", id)

	failing := m.InstrumentMinter(fakeMinter{err: errors.New("disk full")})
	_, err = failing.Mint(context.Background(), map[string]any{}, "")
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MintedObjects))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
