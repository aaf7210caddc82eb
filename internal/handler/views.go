package handler

import (
	"time"

	"github.com/mmeshcher/orderflow/internal/model"
)

type orderResponse struct {
	ID                int64             `json:"id"`
	Number            string            `json:"number"`
	Status            model.OrderStatus `json:"status"`
	StatusLabel       string            `json:"statusLabel"`
	StatusColor       string            `json:"statusColor"`
	OnlyDigital       bool              `json:"isOnlyDigital"`
	Items             []lineItemDTO     `json:"items"`
	ShippingCarrier   string            `json:"shippingCarrier,omitempty"`
	CarrierName       string            `json:"carrierName,omitempty"`
	TrackingNumber    string            `json:"trackingNumber,omitempty"`
	TrackingURL       string            `json:"trackingUrl,omitempty"`
	ShippingNotes     string            `json:"shippingNotes,omitempty"`
	EstimatedDelivery *string           `json:"estimatedDelivery,omitempty"`
	ConfirmedAt       *string           `json:"confirmedAt,omitempty"`
	PaidAt            *string           `json:"paidAt,omitempty"`
	ProcessingAt      *string           `json:"processingAt,omitempty"`
	ShippedAt         *string           `json:"shippedAt,omitempty"`
	DeliveredAt       *string           `json:"deliveredAt,omitempty"`
	CancelledAt       *string           `json:"cancelledAt,omitempty"`
	AdminNotes        string            `json:"adminNotes"`
	Revision          int64             `json:"revision"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
}

func (h *Handler) orderView(o *model.Order) orderResponse {
	p := presentStatus(o.Status)
	resp := orderResponse{
		ID:           o.ID,
		Number:       o.Number,
		Status:       o.Status,
		StatusLabel:  p.Label,
		StatusColor:  p.Color,
		OnlyDigital:  o.IsOnlyDigital(),
		Items:        make([]lineItemDTO, 0, len(o.Items)),
		ConfirmedAt:  formatTime(o.ConfirmedAt),
		PaidAt:       formatTime(o.PaidAt),
		ProcessingAt: formatTime(o.ProcessingAt),
		ShippedAt:    formatTime(o.ShippedAt),
		DeliveredAt:  formatTime(o.DeliveredAt),
		CancelledAt:  formatTime(o.CancelledAt),
		AdminNotes:   o.AdminNotes,
		Revision:     o.Revision,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, lineItemDTO{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			ProductType: string(it.ProductType),
		})
	}
	if s := o.Shipping; s != nil {
		resp.ShippingCarrier = s.Carrier
		resp.CarrierName = s.CarrierName
		resp.TrackingNumber = s.TrackingNumber
		resp.TrackingURL = s.TrackingURL
		resp.ShippingNotes = s.Notes
		resp.EstimatedDelivery = formatDate(s.EstimatedDelivery)
	}
	return resp
}

type trackingResponse struct {
	Number            string            `json:"number"`
	Status            model.OrderStatus `json:"status"`
	StatusLabel       string            `json:"statusLabel"`
	StatusColor       string            `json:"statusColor"`
	OnlyDigital       bool              `json:"isOnlyDigital"`
	CarrierName       string            `json:"carrierName,omitempty"`
	TrackingNumber    string            `json:"trackingNumber,omitempty"`
	TrackingURL       string            `json:"trackingUrl,omitempty"`
	EstimatedDelivery *string           `json:"estimatedDelivery,omitempty"`
	ShippedAt         *string           `json:"shippedAt,omitempty"`
	DeliveredAt       *string           `json:"deliveredAt,omitempty"`
	UpdatedAt         string            `json:"updatedAt"`
}

// trackingView не раскрывает заметки, позиции и внутренний идентификатор заказа.
func trackingView(o *model.Order) trackingResponse {
	p := presentStatus(o.Status)
	resp := trackingResponse{
		Number:      o.Number,
		Status:      o.Status,
		StatusLabel: p.Label,
		StatusColor: p.Color,
		OnlyDigital: o.IsOnlyDigital(),
		ShippedAt:   formatTime(o.ShippedAt),
		DeliveredAt: formatTime(o.DeliveredAt),
		UpdatedAt:   o.UpdatedAt.Format(time.RFC3339),
	}
	if s := o.Shipping; s != nil {
		resp.CarrierName = s.CarrierName
		resp.TrackingNumber = s.TrackingNumber
		resp.TrackingURL = s.TrackingURL
		resp.EstimatedDelivery = formatDate(s.EstimatedDelivery)
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
