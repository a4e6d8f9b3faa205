package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/pkg/errs"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
	"github.com/MrLoydHD/eShop/pkg/requestcontext"
)

// RequestIDHeader correlates retried submissions of the same logical command.
const RequestIDHeader = "x-request-id"

type createOrderRequest struct {
	BuyerName  string               `json:"buyerName"`
	Street     string               `json:"street"`
	City       string               `json:"city"`
	ZipCode    string               `json:"zipCode"`
	Country    string               `json:"country"`
	CardNumber string               `json:"cardNumber"`
	CardBrand  string               `json:"cardBrand"`
	Items      []ordering.OrderItem `json:"items"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseRequestID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.CodeValidation, "malformed order payload"))
		return
	}

	ctx := requestcontext.WithRequestID(r.Context(), requestID)
	result, err := h.createOrder.Handle(ctx, ordering.CreateOrderCommand{
		BuyerName:  req.BuyerName,
		Street:     req.Street,
		City:       req.City,
		ZipCode:    req.ZipCode,
		Country:    req.Country,
		CardNumber: req.CardNumber,
		CardBrand:  req.CardBrand,
		Items:      req.Items,
	}, requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	// A duplicate of a completed creation is indistinguishable from a fresh
	// success by design, so both paths answer 200.
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.New(errs.CodeValidation, "malformed order id"))
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// parseRequestID enforces the command submission contract: an absent or
// malformed request ID is rejected before anything reaches the guard.
func parseRequestID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(RequestIDHeader)
	if raw == "" {
		return uuid.Nil, errs.ErrRequestIDMissing
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrRequestIDMissing
	}
	return id, nil
}
