package handler

import "github.com/mmeshcher/orderflow/internal/model"

type statusPresentation struct {
	Label string
	Color string
}

// statusLabels содержит подписи и цвета бейджей статусов для интерфейса магазина.
var statusLabels = map[model.OrderStatus]statusPresentation{
	model.OrderStatusPending:    {Label: "Pendiente", Color: "yellow"},
	model.OrderStatusConfirmed:  {Label: "Confirmado", Color: "blue"},
	model.OrderStatusPaid:       {Label: "Pagado", Color: "green"},
	model.OrderStatusProcessing: {Label: "En proceso", Color: "purple"},
	model.OrderStatusShipped:    {Label: "Enviado", Color: "indigo"},
	model.OrderStatusDelivered:  {Label: "Entregado", Color: "emerald"},
	model.OrderStatusCancelled:  {Label: "Cancelado", Color: "red"},
	model.OrderStatusRefunded:   {Label: "Reembolsado", Color: "gray"},
}

func presentStatus(s model.OrderStatus) statusPresentation {
	if p, ok := statusLabels[s]; ok {
		return p
	}
	return statusPresentation{Label: string(s), Color: "gray"}
}
