package enums

import "fmt"

// OrderStatus is the delivery lifecycle of an order as owned by the orders domain.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusVoided     OrderStatus = "voided"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusVoided,
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the order still consumes credit.
func (s OrderStatus) IsOpen() bool {
	return s != OrderStatusCancelled && s != OrderStatusVoided
}

// ClosedOrderStatuses lists statuses that no longer count against credit.
func ClosedOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusCancelled, OrderStatusVoided}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OrderPaymentMethod describes how a customer intends to settle an order.
type OrderPaymentMethod string

const (
	OrderPaymentMethodCash         OrderPaymentMethod = "cash"
	OrderPaymentMethodCredit       OrderPaymentMethod = "credit"
	OrderPaymentMethodOnline       OrderPaymentMethod = "online"
	OrderPaymentMethodRazorpay     OrderPaymentMethod = "razorpay"
	OrderPaymentMethodCard         OrderPaymentMethod = "card"
	OrderPaymentMethodUPI          OrderPaymentMethod = "upi"
	OrderPaymentMethodBankTransfer OrderPaymentMethod = "bank_transfer"
	OrderPaymentMethodWallet       OrderPaymentMethod = "wallet"
)

var validOrderPaymentMethods = []OrderPaymentMethod{
	OrderPaymentMethodCash,
	OrderPaymentMethodCredit,
	OrderPaymentMethodOnline,
	OrderPaymentMethodRazorpay,
	OrderPaymentMethodCard,
	OrderPaymentMethodUPI,
	OrderPaymentMethodBankTransfer,
	OrderPaymentMethodWallet,
}

// String implements fmt.Stringer.
func (m OrderPaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known OrderPaymentMethod.
func (m OrderPaymentMethod) IsValid() bool {
	for _, candidate := range validOrderPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseOrderPaymentMethod converts raw input into an OrderPaymentMethod.
func ParseOrderPaymentMethod(value string) (OrderPaymentMethod, error) {
	for _, candidate := range validOrderPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order payment method %q", value)
}

// ConfirmationStatus is the gateway payment confirmation state on an order.
type ConfirmationStatus string

const (
	ConfirmationStatusPending   ConfirmationStatus = "pending"
	ConfirmationStatusCompleted ConfirmationStatus = "completed"
	ConfirmationStatusFailed    ConfirmationStatus = "failed"
)

func (s ConfirmationStatus) IsValid() bool {
	switch s {
	case ConfirmationStatusPending, ConfirmationStatusCompleted, ConfirmationStatusFailed:
		return true
	}
	return false
}
