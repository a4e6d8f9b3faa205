package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLoydHD/eShop/internal/masking"
)

func newTestRegistry(t *testing.T, capacity int) (*Registry, *MemoryExporter) {
	t.Helper()
	exporter := NewMemoryExporter()
	registry, err := New(Config{
		Sanitizer:      masking.NewSanitizer(masking.DefaultPolicy()),
		Exporter:       exporter,
		Pipeline:       NewPipelineMetrics(prometheus.NewRegistry()),
		BufferCapacity: capacity,
		BatchSize:      8,
		FlushInterval:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	return registry, exporter
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Exporter: NewMemoryExporter()})
	require.Error(t, err)

	_, err = New(Config{Sanitizer: masking.NewSanitizer(masking.DefaultPolicy())})
	require.Error(t, err)
}

func TestSpanLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("attributes sanitized exactly once at end", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		_, span := registry.StartSpan(ctx, "orders.create", KindInternal)
		span.SetAttribute("cardNumber", "4111111111111111")
		span.SetAttribute("note", "card ending in 4111111111111111 for alice@example.com")
		span.SetAttribute("order.items", 3)
		span.End(StatusOK)

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 1)

		rec := records[0]
		assert.Equal(t, "orders.create", rec.Name)
		assert.Equal(t, StatusOK, rec.Status)

		byKey := map[string]any{}
		for _, attr := range rec.Attributes {
			byKey[attr.Key] = attr.Value
		}
		assert.Equal(t, masking.FullMask, byKey["cardNumber"])
		assert.Equal(t, "card ending in 4111********1111 for a***@example.com", byKey["note"])
		assert.Equal(t, 3, byKey["order.items"])
	})

	t.Run("set attribute after end has no observable effect", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		_, span := registry.StartSpan(ctx, "op", KindInternal)
		span.SetAttribute("before", "yes")
		span.End(StatusOK)
		span.SetAttribute("after", "leaked")

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 1)
		for _, attr := range records[0].Attributes {
			assert.NotEqual(t, "after", attr.Key)
		}
	})

	t.Run("second end is a no-op", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		_, span := registry.StartSpan(ctx, "op", KindInternal)
		span.End(StatusOK)
		span.End(StatusError)
		span.EndError(assert.AnError)

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 1)
		assert.Equal(t, StatusOK, records[0].Status)
	})

	t.Run("repeated key overwrites in place", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		_, span := registry.StartSpan(ctx, "op", KindInternal)
		span.SetAttribute("k", "first")
		span.SetAttribute("k", "second")
		span.End(StatusOK)

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 1)
		require.Len(t, records[0].Attributes, 1)
		assert.Equal(t, "second", records[0].Attributes[0].Value)
	})

	t.Run("child span links to parent", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		parentCtx, parent := registry.StartSpan(ctx, "parent", KindServer)
		_, child := registry.StartSpan(parentCtx, "child", KindInternal)
		child.End(StatusOK)
		parent.End(StatusOK)

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 2)

		var childRec, parentRec SpanRecord
		for _, rec := range records {
			switch rec.Name {
			case "child":
				childRec = rec
			case "parent":
				parentRec = rec
			}
		}
		assert.Equal(t, parentRec.SpanID, childRec.ParentID)
		assert.Equal(t, parentRec.TraceID, childRec.TraceID)
	})

	t.Run("error status message is scanned", func(t *testing.T) {
		registry, exporter := newTestRegistry(t, 16)

		_, span := registry.StartSpan(ctx, "op", KindInternal)
		span.EndError(errContaining("lookup failed for alice@example.com"))

		require.NoError(t, registry.Flush(ctx))
		records := exporter.Records()
		require.Len(t, records, 1)
		assert.Equal(t, StatusError, records[0].Status)
		assert.Contains(t, records[0].StatusMessage, "a***@example.com")
		assert.NotContains(t, records[0].StatusMessage, "alice@")
	})
}

type errContaining string

func (e errContaining) Error() string { return string(e) }

func TestBufferDropOldest(t *testing.T) {
	registry, exporter := newTestRegistry(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, span := registry.StartSpan(ctx, "span", KindInternal)
		span.SetAttribute("n", i)
		span.End(StatusOK)
	}

	assert.Equal(t, int64(3), registry.DroppedSpans())
	assert.Equal(t, 2, registry.BufferedSpans())

	require.NoError(t, registry.Flush(ctx))
	records := exporter.Records()
	require.Len(t, records, 2)
	// The two newest survive.
	assert.Equal(t, 3, records[0].Attributes[0].Value)
	assert.Equal(t, 4, records[1].Attributes[0].Value)
}

func TestRunFlushesInBackground(t *testing.T) {
	registry, exporter := newTestRegistry(t, 64)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = registry.Run(runCtx)
		close(done)
	}()

	_, span := registry.StartSpan(context.Background(), "background", KindInternal)
	span.End(StatusOK)

	assert.Eventually(t, func() bool {
		return len(exporter.Records()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestConcurrentSpans(t *testing.T) {
	registry, exporter := newTestRegistry(t, 1024)
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			_, span := registry.StartSpan(ctx, "concurrent", KindInternal)
			span.SetAttribute("n", n)
			span.SetAttribute("email", "alice@example.com")
			span.End(StatusOK)
		}(i)
	}
	wg.Wait()

	require.NoError(t, registry.Flush(ctx))
	records := exporter.Records()
	require.Len(t, records, goroutines)
	for _, rec := range records {
		for _, attr := range rec.Attributes {
			if attr.Key == "email" {
				assert.Equal(t, masking.FullMask, attr.Value)
			}
		}
	}
}

type captureBackend struct {
	mu        sync.Mutex
	counts    map[string]int64
	durations map[string][]time.Duration
	values    map[string][]float64
}

func newCaptureBackend() *captureBackend {
	return &captureBackend{
		counts:    make(map[string]int64),
		durations: make(map[string][]time.Duration),
		values:    make(map[string][]float64),
	}
}

func (b *captureBackend) IncrementCounter(_ context.Context, name string, delta int64, _ map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[name] += delta
}

func (b *captureBackend) RecordDuration(_ context.Context, name string, d time.Duration, _ map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.durations[name] = append(b.durations[name], d)
}

func (b *captureBackend) RecordValue(_ context.Context, name string, v float64, _ map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = append(b.values[name], v)
}

func TestInstrumentsValidateInput(t *testing.T) {
	backend := newCaptureBackend()
	registry, err := New(Config{
		Sanitizer:      masking.NewSanitizer(masking.DefaultPolicy()),
		Exporter:       NewMemoryExporter(),
		MetricsBackend: backend,
	})
	require.NoError(t, err)
	ctx := context.Background()

	counter := registry.Counter("orders.created")
	counter.Add(ctx, 1, nil)
	counter.Add(ctx, 0, nil)
	counter.Add(ctx, -5, nil)
	assert.Equal(t, int64(1), backend.counts["orders.created"])

	histogram := registry.Histogram("orders.create.duration")
	histogram.RecordDuration(ctx, 10*time.Millisecond, nil)
	histogram.RecordDuration(ctx, -time.Second, nil)
	assert.Len(t, backend.durations["orders.create.duration"], 1)

	totals := registry.Histogram("orders.total.value")
	totals.RecordValue(ctx, 99.9, nil)
	totals.RecordValue(ctx, -1, nil)
	assert.Len(t, backend.values["orders.total.value"], 1)
}
