// Package handler содержит HTTP-обработчики API управления заказами.
package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/carrier"
	"github.com/mmeshcher/orderflow/internal/middleware"
	"github.com/mmeshcher/orderflow/internal/model"
	"github.com/mmeshcher/orderflow/internal/repository"
	"github.com/mmeshcher/orderflow/internal/service"
	"github.com/mmeshcher/orderflow/internal/workflow"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	TransitionOrder(ctx context.Context, orderID int64, target model.OrderStatus, in *workflow.ShippingInput, operator string) (*model.Order, error)
	AllowedTransitions(ctx context.Context, orderID int64) (*model.Order, []model.OrderStatus, error)
	CreateOrder(ctx context.Context, items []model.LineItem, notes string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	UpdateAdminNotes(ctx context.Context, orderID int64, notes string) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API управления заказами.
type Handler struct {
	service        Service
	carriers       *carrier.Registry
	adminKey       string
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// Пустой adminKey отключает вход операторов.
func NewHandler(s Service, carriers *carrier.Registry, adminKey string, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		carriers:       carriers,
		adminKey:       adminKey,
		logger:         logger,
		authMiddleware: auth,
	}
}

type loginRequest struct {
	Operator string `json:"operator"`
	APIKey   string `json:"apiKey"`
}

type loginResponse struct {
	Operator string `json:"operator"`
	Token    string `json:"token"`
}

// Login проверяет ключ администратора и выдаёт токен оператора.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	operator := strings.TrimSpace(req.Operator)
	if operator == "" || req.APIKey == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if h.adminKey == "" || !hmac.Equal([]byte(req.APIKey), []byte(h.adminKey)) {
		h.logger.Warn("operator login rejected", zap.String("operator", operator))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token := h.authMiddleware.SetAuthCookie(w, operator)
	writeJSON(w, http.StatusOK, loginResponse{Operator: operator, Token: token})
}

type lineItemDTO struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	ProductType string `json:"productType"`
}

type createOrderRequest struct {
	Items      []lineItemDTO `json:"items"`
	AdminNotes string        `json:"adminNotes"`
}

// CreateOrder создаёт новый заказ в статусе PENDING.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]model.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.LineItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			ProductType: model.ProductType(it.ProductType),
		})
	}

	o, err := h.service.CreateOrder(r.Context(), items, req.AdminNotes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.orderView(o))
}

// ListOrders возвращает заказы с необязательным фильтром по статусу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}

	orders, err := h.service.ListOrders(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, h.orderView(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("orderId", id))
		return
	}

	writeJSON(w, http.StatusOK, h.orderView(o))
}

type transitionRequest struct {
	Status            string `json:"status"`
	Carrier           string `json:"carrier"`
	TrackingNumber    string `json:"trackingNumber"`
	TrackingURL       string `json:"trackingUrl"`
	ShippingNotes     string `json:"shippingNotes"`
	EstimatedDelivery string `json:"estimatedDelivery"`
}

// UpdateStatus переводит заказ в новый статус от имени текущего оператора.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	operator, ok := middleware.GetOperatorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	target := model.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !target.IsKnown() {
		h.writeError(w, service.ErrInvalidStatus)
		return
	}

	var in *workflow.ShippingInput
	if req.Carrier != "" || req.TrackingNumber != "" || req.TrackingURL != "" || req.ShippingNotes != "" || req.EstimatedDelivery != "" {
		eta, err := parseEstimatedDelivery(req.EstimatedDelivery)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		in = &workflow.ShippingInput{
			Carrier:           req.Carrier,
			TrackingNumber:    req.TrackingNumber,
			TrackingURL:       req.TrackingURL,
			Notes:             req.ShippingNotes,
			EstimatedDelivery: eta,
		}
	}

	o, err := h.service.TransitionOrder(r.Context(), id, target, in, operator)
	if err != nil {
		h.writeError(w, err, zap.Int64("orderId", id), zap.String("target", string(target)))
		return
	}

	writeJSON(w, http.StatusOK, h.orderView(o))
}

// parseEstimatedDelivery принимает дату в формате 2006-01-02 или RFC3339.
func parseEstimatedDelivery(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type transitionOption struct {
	Status      model.OrderStatus `json:"status"`
	StatusLabel string            `json:"statusLabel"`
	StatusColor string            `json:"statusColor"`
}

type transitionsResponse struct {
	OrderID  int64               `json:"orderId"`
	Status   model.OrderStatus   `json:"status"`
	Flow     []model.OrderStatus `json:"flow"`
	Terminal bool                `json:"terminal"`
	Allowed  []transitionOption  `json:"allowed"`
}

// GetTransitions возвращает статусы, доступные заказу из текущего.
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, allowed, err := h.service.AllowedTransitions(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("orderId", id))
		return
	}

	resp := transitionsResponse{
		OrderID:  o.ID,
		Status:   o.Status,
		Flow:     workflow.FlowFor(o).Steps(),
		Terminal: o.Status.IsTerminal(),
		Allowed:  make([]transitionOption, 0, len(allowed)),
	}
	for _, s := range allowed {
		p := presentStatus(s)
		resp.Allowed = append(resp.Allowed, transitionOption{Status: s, StatusLabel: p.Label, StatusColor: p.Color})
	}
	writeJSON(w, http.StatusOK, resp)
}

type notesRequest struct {
	AdminNotes string `json:"adminNotes"`
}

// UpdateNotes заменяет заметки администратора к заказу.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.UpdateAdminNotes(r.Context(), id, req.AdminNotes)
	if err != nil {
		h.writeError(w, err, zap.Int64("orderId", id))
		return
	}

	writeJSON(w, http.StatusOK, h.orderView(o))
}

// ListCarriers возвращает справочник перевозчиков.
func (h *Handler) ListCarriers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.carriers.List())
}

// TrackOrder возвращает публичные сведения о заказе по его номеру.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(chi.URLParam(r, "number"))

	o, err := h.service.GetOrderByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrder) {
			err = repository.ErrOrderNotFound
		}
		h.writeError(w, err, zap.String("number", number))
		return
	}

	writeJSON(w, http.StatusOK, trackingView(o))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
