package dispatcher

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
)

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.add("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.add("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.add("ERROR", msg, keysAndValues) }

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestParseLine(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	e, ok := ParseLine(`:CHAIN:APPEND: lane-1 "1, 2, 0"`, now)
	require.True(t, ok)
	assert.Equal(t, ":CHAIN:APPEND:", e.Command)
	assert.Equal(t, []string{"lane-1", "1, 2, 0"}, e.Args)
	assert.Equal(t, now, e.Timestamp)

	_, ok = ParseLine("   ", now)
	assert.False(t, ok)
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":UNDO:", func(e Event) (any, error) {
		got = e
		return "ok", nil
	})

	result, err := d.Dispatch(Event{Command: ":UNDO:", Args: []string{"2"}})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, []string{"2"}, got.Args)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":NOPE:"})

	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), ":NOPE:")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	d.Register(":METRIC:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: ":METRIC:"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}
	wg.Wait()

	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{}, 1)
	d.Register(":FULL:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: ":FULL:"})
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Command: ":FULL:"})
	assert.Error(t, err)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":BLOCKING:", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Command: ":BLOCKING:"})
	<-started
	d.Dispatch(Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":SAVE:", func(e Event) (any, error) { return "ok", nil }, Logged())
	_, err := d.Dispatch(Event{Command: ":SAVE:", Args: []string{"a", "b"}})
	require.NoError(t, err)

	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0], "DEBUG: handling command"))
	assert.True(t, strings.HasPrefix(msgs[1], "DEBUG: command complete"))
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, fmt.Errorf("boom")
	}, Logged())

	_, err := d.Dispatch(Event{Command: ":ERROR:"})
	require.Error(t, err)

	var hasError bool
	for _, msg := range logger.snapshot() {
		if strings.HasPrefix(msg, "ERROR: command failed") {
			hasError = true
		}
	}
	assert.True(t, hasError, "expected error log message")
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":REDO:", func(e Event) (any, error) { return nil, nil })
	d.Register(":BOX:", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(":REDO:"))
	assert.False(t, d.HasHandler(":NOT_EXISTS:"))
	assert.Equal(t, []string{":BOX:", ":REDO:"}, d.Commands())
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Register(":COMBINED:", func(e Event) (any, error) {
		defer wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":COMBINED:"})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)
	wg.Wait()

	assert.GreaterOrEqual(t, len(logger.snapshot()), 2)
}

type regCounter struct {
	noop.MeterProvider
	unregistered atomic.Int32
}

func (p *regCounter) Meter(string, ...metric.MeterOption) metric.Meter {
	return regCounterMeter{p: p}
}

type regCounterMeter struct {
	noop.Meter
	p *regCounter
}

func (m regCounterMeter) RegisterCallback(metric.Callback, ...metric.Observable) (metric.Registration, error) {
	return regCounterRegistration{p: m.p}, nil
}

type regCounterRegistration struct {
	embedded.Registration
	p *regCounter
}

func (r regCounterRegistration) Unregister() error {
	r.p.unregistered.Add(1)
	return nil
}

func TestClose_UnregistersQueueCallback(t *testing.T) {
	prev := otel.GetMeterProvider()
	p := &regCounter{}
	otel.SetMeterProvider(p)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	d, err := New(&testLogger{})
	require.NoError(t, err)
	d.Register(":PING:", func(Event) (any, error) { return "pong", nil })

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.EqualValues(t, 1, p.unregistered.Load())

	res, err := d.Dispatch(Event{Command: ":PING:"})
	require.NoError(t, err)
	assert.Equal(t, "pong", res)
}
