package enums

import "fmt"

// PaymentMethod identifies how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodManualTransfer PaymentMethod = "manual_transfer"
	PaymentMethodGateway        PaymentMethod = "gateway"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCashOnDelivery,
	PaymentMethodManualTransfer,
	PaymentMethodGateway,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// InitialOrderStatus returns the status an order carries right after
// checkout for this method. Cash on delivery commits stock up front, the
// other methods wait for a payment signal.
func (p PaymentMethod) InitialOrderStatus() OrderStatus {
	if p == PaymentMethodCashOnDelivery {
		return OrderStatusConfirmed
	}
	return OrderStatusPending
}

// DecrementsOnCreate reports whether checkout decrements stock immediately.
func (p PaymentMethod) DecrementsOnCreate() bool {
	return p == PaymentMethodCashOnDelivery
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
