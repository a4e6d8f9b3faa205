package ordering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrLoydHD/eShop/internal/telemetry"
	"github.com/MrLoydHD/eShop/pkg/errs"
	"github.com/MrLoydHD/eShop/pkg/requestcontext"
)

// Service creates orders. It is the "real" business handler wrapped by the
// identified-command handler; it never sees duplicate submissions.
//
// Every operation is instrumented: the span attributes pass through the
// sanitizer when the span ends, so handing raw values (buyer name, error
// text) to the span here is safe by construction.
type Service struct {
	store     OrderStore
	registry  *telemetry.Registry
	logger    *slog.Logger
	created   *telemetry.Counter
	duration  *telemetry.Histogram
	orderEuro *telemetry.Histogram
}

func NewService(store OrderStore, registry *telemetry.Registry, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		logger:    logger,
		created:   registry.Counter("orders.created"),
		duration:  registry.Histogram("orders.create.duration"),
		orderEuro: registry.Histogram("orders.total.value"),
	}
}

// Handle validates the command, persists the order, and records telemetry.
// The signature matches commands.Handler so it can be wrapped directly.
func (s *Service) Handle(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	started := time.Now()
	ctx, span := s.registry.StartSpan(ctx, "orders.create", telemetry.KindInternal)

	if err := cmd.Validate(); err != nil {
		span.EndError(err)
		return CreateOrderResult{}, err
	}

	order := Order{
		ID:        uuid.New(),
		BuyerName: cmd.BuyerName,
		Street:    cmd.Street,
		City:      cmd.City,
		ZipCode:   cmd.ZipCode,
		Country:   cmd.Country,
		CardBrand: cmd.CardBrand,
		CardLast4: cardLast4(cmd.CardNumber),
		Items:     cmd.Items,
		Total:     cmd.Total(),
		CreatedAt: requestcontext.Now(ctx),
	}

	span.SetAttribute("order.id", order.ID.String())
	span.SetAttribute("order.buyer", order.BuyerName)
	span.SetAttribute("order.items", len(order.Items))
	span.SetAttribute("order.total", order.Total)

	if err := s.store.Save(ctx, order); err != nil {
		wrapped := errs.Wrap(errs.CodeInternal, "save order", err)
		span.EndError(wrapped)
		return CreateOrderResult{}, wrapped
	}

	s.created.Add(ctx, 1, nil)
	s.duration.RecordDuration(ctx, time.Since(started), nil)
	s.orderEuro.RecordValue(ctx, order.Total, nil)

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID.String(),
		"items", len(order.Items),
		"total", order.Total,
	)

	span.End(telemetry.StatusOK)
	return CreateOrderResult{OrderID: order.ID, Total: order.Total}, nil
}

// Get returns a stored order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	return order, nil
}
