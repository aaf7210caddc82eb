package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_IsOnlyDigital(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  bool
	}{
		{name: "empty", items: nil, want: false},
		{name: "single digital", items: []LineItem{{ProductType: ProductTypeDigital}}, want: true},
		{name: "single physical", items: []LineItem{{ProductType: ProductTypePhysical}}, want: false},
		{
			name: "mixed",
			items: []LineItem{
				{ProductType: ProductTypeDigital},
				{ProductType: ProductTypePhysical},
			},
			want: false,
		},
		{
			name: "all digital",
			items: []LineItem{
				{ProductType: ProductTypeDigital},
				{ProductType: ProductTypeDigital},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{Items: tt.items}
			assert.Equal(t, tt.want, o.IsOnlyDigital())
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestOrder_SetStatusTimeOnce(t *testing.T) {
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	second := first.Add(time.Hour)

	var o Order
	o.SetStatusTime(OrderStatusPaid, first)
	o.SetStatusTime(OrderStatusPaid, second)

	require.NotNil(t, o.PaidAt)
	assert.Equal(t, first, *o.PaidAt)
	assert.Equal(t, o.PaidAt, o.StatusTime(OrderStatusPaid))

	o.SetStatusTime(OrderStatusPending, first)
	assert.Nil(t, o.StatusTime(OrderStatusPending))
}
