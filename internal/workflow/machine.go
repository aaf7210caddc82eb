package workflow

import (
	"strings"
	"time"

	"github.com/mmeshcher/orderflow/internal/carrier"
	"github.com/mmeshcher/orderflow/internal/model"
)

// ShippingInput содержит данные об отправке, переданные оператором.
type ShippingInput struct {
	Carrier           string
	TrackingNumber    string
	TrackingURL       string
	Notes             string
	EstimatedDelivery *time.Time
}

// Machine проверяет и применяет переходы статусов заказа. Не выполняет ввод-вывод.
type Machine struct {
	carriers *carrier.Registry
	now      func() time.Time
}

// NewMachine создаёт автомат со справочником служб доставки.
func NewMachine(carriers *carrier.Registry) *Machine {
	if carriers == nil {
		carriers = carrier.Default()
	}
	return &Machine{
		carriers: carriers,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// AllowedTargets возвращает статусы, в которые заказ может перейти из текущего.
func (m *Machine) AllowedTargets(o *model.Order) []model.OrderStatus {
	if o.Status.IsTerminal() {
		return nil
	}
	var res []model.OrderStatus
	if next, ok := FlowFor(o).Next(o.Status); ok {
		res = append(res, next)
	}
	return append(res, model.OrderStatusCancelled)
}

// Apply проверяет переход заказа в целевой статус и возвращает изменённую копию заказа.
func (m *Machine) Apply(o model.Order, target model.OrderStatus, in *ShippingInput) (model.Order, error) {
	if o.Status.IsTerminal() {
		return o, &TransitionError{Kind: ErrTerminalState, From: o.Status, To: target}
	}

	now := m.now()

	if target == model.OrderStatusCancelled {
		o.Status = target
		o.SetStatusTime(target, now)
		o.UpdatedAt = now
		return o, nil
	}

	flow := FlowFor(&o)
	cur, next := flow.Index(o.Status), flow.Index(target)
	if cur < 0 || next < 0 || next != cur+1 {
		return o, &TransitionError{
			Kind:    ErrInvalidTransition,
			From:    o.Status,
			To:      target,
			Allowed: m.AllowedTargets(&o),
		}
	}

	if target == model.OrderStatusShipped {
		shipping, err := m.shipping(in)
		if err != nil {
			return o, &TransitionError{Kind: err, From: o.Status, To: target}
		}
		o.Shipping = shipping
	}

	o.Status = target
	o.SetStatusTime(target, now)
	o.UpdatedAt = now
	return o, nil
}

func (m *Machine) shipping(in *ShippingInput) (*model.Shipping, error) {
	if in == nil {
		return nil, ErrMissingShippingInfo
	}

	carrierID := strings.TrimSpace(in.Carrier)
	tracking := strings.TrimSpace(in.TrackingNumber)
	if carrierID == "" || tracking == "" {
		return nil, ErrMissingShippingInfo
	}

	trackingURL := strings.TrimSpace(in.TrackingURL)
	if trackingURL == "" {
		trackingURL = m.carriers.BuildTrackingURL(carrierID, tracking)
	}

	if c, err := m.carriers.Resolve(carrierID); err == nil {
		carrierID = c.ID
	}

	return &model.Shipping{
		Carrier:           carrierID,
		CarrierName:       m.carriers.DisplayName(carrierID),
		TrackingNumber:    tracking,
		TrackingURL:       trackingURL,
		Notes:             strings.TrimSpace(in.Notes),
		EstimatedDelivery: in.EstimatedDelivery,
	}, nil
}
