package enums

import "fmt"

// PaymentChannel is the settlement rail recorded on a ledger entry.
type PaymentChannel string

const (
	PaymentChannelGateway      PaymentChannel = "gateway"
	PaymentChannelCash         PaymentChannel = "cash"
	PaymentChannelLedger       PaymentChannel = "ledger"
	PaymentChannelBankTransfer PaymentChannel = "bank_transfer"
	PaymentChannelWallet       PaymentChannel = "wallet"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelGateway,
	PaymentChannelCash,
	PaymentChannelLedger,
	PaymentChannelBankTransfer,
	PaymentChannelWallet,
}

// String implements fmt.Stringer.
func (c PaymentChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known PaymentChannel.
func (c PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}

// ChannelForOrderMethod maps an order payment method onto the ledger channel.
// Every gateway-style method collapses to PaymentChannelGateway.
func ChannelForOrderMethod(method OrderPaymentMethod) PaymentChannel {
	switch method {
	case OrderPaymentMethodCash:
		return PaymentChannelCash
	case OrderPaymentMethodCredit:
		return PaymentChannelLedger
	case OrderPaymentMethodBankTransfer:
		return PaymentChannelBankTransfer
	case OrderPaymentMethodWallet:
		return PaymentChannelWallet
	default:
		return PaymentChannelGateway
	}
}
