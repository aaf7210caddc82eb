// Package workflow реализует конечный автомат статусов заказа.
package workflow

import "github.com/mmeshcher/orderflow/internal/model"

// FlowKind различает последовательности статусов для разных видов заказов.
type FlowKind string

const (
	FlowPhysical FlowKind = "PHYSICAL"
	FlowDigital  FlowKind = "DIGITAL"
)

// Flow описывает упорядоченную последовательность статусов, через которую проходит заказ.
type Flow struct {
	Kind  FlowKind
	steps []model.OrderStatus
}

var (
	// PhysicalFlow применяется к заказам, содержащим хотя бы один физический товар.
	PhysicalFlow = Flow{
		Kind: FlowPhysical,
		steps: []model.OrderStatus{
			model.OrderStatusPending,
			model.OrderStatusConfirmed,
			model.OrderStatusPaid,
			model.OrderStatusProcessing,
			model.OrderStatusShipped,
			model.OrderStatusDelivered,
		},
	}

	// DigitalFlow применяется к заказам только из цифровых товаров и не содержит SHIPPED.
	DigitalFlow = Flow{
		Kind: FlowDigital,
		steps: []model.OrderStatus{
			model.OrderStatusPending,
			model.OrderStatusConfirmed,
			model.OrderStatusPaid,
			model.OrderStatusProcessing,
			model.OrderStatusDelivered,
		},
	}
)

// FlowFor выбирает последовательность статусов по составу заказа.
func FlowFor(o *model.Order) Flow {
	if o.IsOnlyDigital() {
		return DigitalFlow
	}
	return PhysicalFlow
}

// Steps возвращает копию последовательности статусов.
func (f Flow) Steps() []model.OrderStatus {
	res := make([]model.OrderStatus, len(f.steps))
	copy(res, f.steps)
	return res
}

// Index возвращает позицию статуса в последовательности или -1.
func (f Flow) Index(s model.OrderStatus) int {
	for i, step := range f.steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Contains сообщает, входит ли статус в последовательность.
func (f Flow) Contains(s model.OrderStatus) bool {
	return f.Index(s) >= 0
}

// Next возвращает следующий статус последовательности.
func (f Flow) Next(s model.OrderStatus) (model.OrderStatus, bool) {
	i := f.Index(s)
	if i < 0 || i+1 >= len(f.steps) {
		return "", false
	}
	return f.steps[i+1], true
}
