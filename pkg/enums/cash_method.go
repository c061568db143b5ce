package enums

import "fmt"

// CashMethod identifies how a driver captured payment at the point of delivery.
type CashMethod string

const (
	CashMethodCash CashMethod = "cash"
	CashMethodQR   CashMethod = "qr"
)

func (m CashMethod) IsValid() bool {
	return m == CashMethodCash || m == CashMethodQR
}

// ParseCashMethod converts raw input into a CashMethod, defaulting to cash.
func ParseCashMethod(value string) (CashMethod, error) {
	switch value {
	case "":
		return CashMethodCash, nil
	case string(CashMethodCash), string(CashMethodQR):
		return CashMethod(value), nil
	}
	return "", fmt.Errorf("invalid cash method %q", value)
}
