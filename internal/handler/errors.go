package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/model"
	"github.com/mmeshcher/orderflow/internal/repository"
	"github.com/mmeshcher/orderflow/internal/service"
	"github.com/mmeshcher/orderflow/internal/workflow"
)

type errorPayload struct {
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Allowed []model.OrderStatus `json:"allowed,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

type errorKind struct {
	target  error
	kind    string
	status  int
	message string
}

var errorKinds = []errorKind{
	{workflow.ErrTerminalState, "terminal_state", http.StatusConflict, "this order can no longer be modified"},
	{workflow.ErrInvalidTransition, "invalid_transition", http.StatusUnprocessableEntity, "requested status is not the next step for this order"},
	{workflow.ErrMissingShippingInfo, "missing_shipping_info", http.StatusBadRequest, "carrier and tracking number are required to ship an order"},
	{repository.ErrOrderNotFound, "not_found", http.StatusNotFound, "order not found"},
	{repository.ErrConflict, "conflict", http.StatusPreconditionFailed, "order was changed by someone else, reload and try again"},
	{service.ErrInvalidOrder, "bad_request", http.StatusBadRequest, "invalid order data"},
	{service.ErrInvalidStatus, "bad_request", http.StatusBadRequest, "unknown order status"},
}

func classify(err error) (errorPayload, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			p := errorPayload{Kind: k.kind, Message: k.message}
			var te *workflow.TransitionError
			if errors.As(err, &te) {
				p.Allowed = te.Allowed
			}
			return p, k.status
		}
	}
	return errorPayload{Kind: "internal", Message: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fields ...zap.Field) {
	payload, status := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", append(fields, zap.Error(err))...)
	}
	writeJSON(w, status, errorResponse{Error: payload})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
