package enums

import "fmt"

// InvoiceStatus is the lifecycle of a settlement document.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
	InvoiceStatusFinalised InvoiceStatus = "finalised"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusIssued,
	InvoiceStatusConfirmed,
	InvoiceStatusFinalised,
	InvoiceStatusCancelled,
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusIssued, InvoiceStatusCancelled},
	InvoiceStatusIssued:    {InvoiceStatusConfirmed, InvoiceStatusFinalised, InvoiceStatusCancelled},
	InvoiceStatusConfirmed: {InvoiceStatusFinalised, InvoiceStatusCancelled},
}

// IsValid reports whether the value is a known InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusFinalised || s == InvoiceStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, candidate := range invoiceTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus. The American
// spelling "finalized" is accepted as an alias.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	if value == "finalized" {
		return InvoiceStatusFinalised, nil
	}
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
