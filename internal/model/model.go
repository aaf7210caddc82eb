// Package model содержит доменные сущности сервиса обработки заказов.
package model

import "time"

// OrderStatus описывает статус заказа в жизненном цикле исполнения.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	// OrderStatusRefunded выставляется внешней системой возвратов и недостижим через переходы.
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// IsTerminal сообщает, запрещены ли любые переходы из данного статуса.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusDelivered, OrderStatusRefunded:
		return true
	}
	return false
}

// IsKnown сообщает, является ли значение одним из известных статусов.
func (s OrderStatus) IsKnown() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// ProductType различает цифровые и физические товары.
type ProductType string

const (
	ProductTypeDigital  ProductType = "DIGITAL"
	ProductTypePhysical ProductType = "PHYSICAL"
)

// LineItem описывает позицию заказа.
type LineItem struct {
	ProductID   string
	Name        string
	Quantity    int
	ProductType ProductType
}

// Shipping содержит данные об отправке, присоединяемые при переходе в SHIPPED.
type Shipping struct {
	Carrier           string
	CarrierName       string
	TrackingNumber    string
	TrackingURL       string
	Notes             string
	EstimatedDelivery *time.Time
}

// Order описывает заказ покупателя.
type Order struct {
	ID     int64
	Number string
	Status OrderStatus
	Items  []LineItem

	Shipping *Shipping

	ConfirmedAt  *time.Time
	PaidAt       *time.Time
	ProcessingAt *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time

	AdminNotes string

	// Revision увеличивается при каждом сохранении и служит ключом оптимистичной блокировки.
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOnlyDigital возвращает true, если заказ непуст и все позиции цифровые.
func (o *Order) IsOnlyDigital() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.ProductType != ProductTypeDigital {
			return false
		}
	}
	return true
}

// StatusTime возвращает отметку времени, связанную со статусом, если она есть.
func (o *Order) StatusTime(s OrderStatus) *time.Time {
	switch s {
	case OrderStatusConfirmed:
		return o.ConfirmedAt
	case OrderStatusPaid:
		return o.PaidAt
	case OrderStatusProcessing:
		return o.ProcessingAt
	case OrderStatusShipped:
		return o.ShippedAt
	case OrderStatusDelivered:
		return o.DeliveredAt
	case OrderStatusCancelled:
		return o.CancelledAt
	}
	return nil
}

// SetStatusTime выставляет отметку времени статуса, только если она ещё не выставлена.
func (o *Order) SetStatusTime(s OrderStatus, t time.Time) {
	var field **time.Time
	switch s {
	case OrderStatusConfirmed:
		field = &o.ConfirmedAt
	case OrderStatusPaid:
		field = &o.PaidAt
	case OrderStatusProcessing:
		field = &o.ProcessingAt
	case OrderStatusShipped:
		field = &o.ShippedAt
	case OrderStatusDelivered:
		field = &o.DeliveredAt
	case OrderStatusCancelled:
		field = &o.CancelledAt
	default:
		return
	}
	if *field == nil {
		v := t
		*field = &v
	}
}

// OrderPatch содержит изменения, сохраняемые одной записью после перехода.
type OrderPatch struct {
	Status   OrderStatus
	Shipping *Shipping

	ConfirmedAt  *time.Time
	PaidAt       *time.Time
	ProcessingAt *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
}

// PatchFrom собирает изменения для сохранения из заказа после перехода.
func PatchFrom(o Order) OrderPatch {
	return OrderPatch{
		Status:       o.Status,
		Shipping:     o.Shipping,
		ConfirmedAt:  o.ConfirmedAt,
		PaidAt:       o.PaidAt,
		ProcessingAt: o.ProcessingAt,
		ShippedAt:    o.ShippedAt,
		DeliveredAt:  o.DeliveredAt,
		CancelledAt:  o.CancelledAt,
	}
}

// OrderFilter ограничивает выборку списка заказов.
type OrderFilter struct {
	Status OrderStatus
	Limit  int
}

// StatusChangedEvent публикуется после успешного перехода заказа.
type StatusChangedEvent struct {
	EventID        string      `json:"eventId"`
	OrderID        int64       `json:"orderId"`
	OrderNumber    string      `json:"orderNumber"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	NewStatus      OrderStatus `json:"newStatus"`
	Timestamp      time.Time   `json:"timestamp"`
	ChangedBy      string      `json:"changedBy,omitempty"`
	Carrier        string      `json:"carrier,omitempty"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	TrackingURL    string      `json:"trackingUrl,omitempty"`
}
