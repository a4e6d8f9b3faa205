package ordering_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLoydHD/eShop/internal/masking"
	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/internal/telemetry"
	"github.com/MrLoydHD/eShop/pkg/errs"
)

func newTestService(t *testing.T) (*ordering.Service, *ordering.MemoryOrderStore, *telemetry.Registry, *telemetry.MemoryExporter) {
	t.Helper()
	exporter := telemetry.NewMemoryExporter()
	registry, err := telemetry.New(telemetry.Config{
		Sanitizer: masking.NewSanitizer(masking.DefaultPolicy()),
		Exporter:  exporter,
		Pipeline:  telemetry.NewPipelineMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	store := ordering.NewMemoryOrderStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ordering.NewService(store, registry, logger), store, registry, exporter
}

func validCommand() ordering.CreateOrderCommand {
	return ordering.CreateOrderCommand{
		BuyerName:  "Alice Smith",
		Street:     "1 Main St",
		City:       "Lisbon",
		ZipCode:    "1000-001",
		Country:    "PT",
		CardNumber: "4111111111111111",
		CardBrand:  "Visa",
		Items: []ordering.OrderItem{
			{ProductID: 1, ProductName: ".NET Mug", UnitPrice: 8.5, Quantity: 2},
			{ProductID: 2, ProductName: "Sticker", UnitPrice: 1.0, Quantity: 3},
		},
	}
}

func TestHandleCreatesOrder(t *testing.T) {
	ctx := context.Background()
	service, store, _, _ := newTestService(t)

	result, err := service.Handle(ctx, validCommand())
	require.NoError(t, err)
	assert.Equal(t, 20.0, result.Total)
	assert.Equal(t, 1, store.Count())

	order, err := service.Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", order.BuyerName)
	assert.Equal(t, "Visa", order.CardBrand)
	assert.Equal(t, "1111", order.CardLast4)
}

func TestHandleValidation(t *testing.T) {
	ctx := context.Background()

	cases := map[string]func(*ordering.CreateOrderCommand){
		"missing buyer":      func(c *ordering.CreateOrderCommand) { c.BuyerName = "" },
		"no items":           func(c *ordering.CreateOrderCommand) { c.Items = nil },
		"zero quantity":      func(c *ordering.CreateOrderCommand) { c.Items[0].Quantity = 0 },
		"negative quantity":  func(c *ordering.CreateOrderCommand) { c.Items[0].Quantity = -1 },
		"negative unit cost": func(c *ordering.CreateOrderCommand) { c.Items[0].UnitPrice = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			service, store, _, _ := newTestService(t)
			cmd := validCommand()
			mutate(&cmd)

			_, err := service.Handle(ctx, cmd)
			require.Error(t, err)
			assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
			assert.Equal(t, 0, store.Count())
		})
	}
}

func TestHandleSpanNeverLeaksRawPaymentData(t *testing.T) {
	ctx := context.Background()
	service, _, registry, exporter := newTestService(t)

	cmd := validCommand()
	cmd.BuyerName = "alice@example.com"

	_, err := service.Handle(ctx, cmd)
	require.NoError(t, err)
	require.NoError(t, registry.Flush(ctx))

	records := exporter.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "orders.create", rec.Name)
	assert.Equal(t, telemetry.StatusOK, rec.Status)

	for _, attr := range rec.Attributes {
		if s, ok := attr.Value.(string); ok {
			assert.NotContains(t, s, "4111111111111111")
			assert.NotContains(t, s, "alice@example.com")
		}
		if attr.Key == "order.buyer" {
			assert.Equal(t, "a***@example.com", attr.Value)
		}
	}
}

func TestHandleStoreFailureEndsSpanWithError(t *testing.T) {
	ctx := context.Background()

	exporter := telemetry.NewMemoryExporter()
	registry, err := telemetry.New(telemetry.Config{
		Sanitizer: masking.NewSanitizer(masking.DefaultPolicy()),
		Exporter:  exporter,
		Pipeline:  telemetry.NewPipelineMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := ordering.NewService(failingStore{}, registry, logger)

	_, err = service.Handle(ctx, validCommand())
	require.Error(t, err)
	assert.Equal(t, errs.CodeInternal, errs.CodeOf(err))

	require.NoError(t, registry.Flush(ctx))
	records := exporter.Records()
	require.Len(t, records, 1)
	assert.Equal(t, telemetry.StatusError, records[0].Status)
	assert.True(t, strings.Contains(records[0].StatusMessage, "save order"))
}

type failingStore struct{}

func (failingStore) Save(context.Context, ordering.Order) error {
	return errors.New("connection reset")
}

func (failingStore) FindByID(context.Context, uuid.UUID) (ordering.Order, error) {
	return ordering.Order{}, errors.New("connection reset")
}
