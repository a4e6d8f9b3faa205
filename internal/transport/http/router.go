// Package httptransport is the thin HTTP layer in front of the command
// pipeline. Handlers bind requests and translate coded errors; business logic
// stays in the services.
package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/internal/ordering/commands"
	"github.com/MrLoydHD/eShop/pkg/errs"
)

// Handler carries the wired dependencies for all routes.
type Handler struct {
	createOrder *commands.IdentifiedHandler[ordering.CreateOrderCommand, ordering.CreateOrderResult]
	orders      *ordering.Service
	logger      *slog.Logger
}

func NewHandler(
	createOrder *commands.IdentifiedHandler[ordering.CreateOrderCommand, ordering.CreateOrderResult],
	orders *ordering.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{createOrder: createOrder, orders: orders, logger: logger}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler, metrics prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestTime)

	r.Post("/api/orders", h.handleCreateOrder)
	r.Get("/api/orders/{id}", h.handleGetOrder)
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError centralizes coded-error translation to HTTP responses so every
// handler returns the same JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	message := "internal error"
	var coded *errs.Error
	if errors.As(err, &coded) {
		message = coded.Message
	}
	writeJSON(w, errs.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
