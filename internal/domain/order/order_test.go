package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentMethodValid(t *testing.T) {
	valid := []PaymentMethod{
		PaymentCashOnDelivery,
		PaymentBkash,
		PaymentRocket,
		PaymentNagad,
	}
	for _, pm := range valid {
		assert.True(t, pm.Valid(), "%s", pm)
	}
	assert.False(t, PaymentMethod("").Valid())
	assert.False(t, PaymentMethod("paypal").Valid())
}

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusConfirmed, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
