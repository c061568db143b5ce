package enums

import "fmt"

// EntryPaymentStatus tracks the settlement state attached to a ledger entry.
type EntryPaymentStatus string

const (
	EntryPaymentStatusPending    EntryPaymentStatus = "pending"
	EntryPaymentStatusProcessing EntryPaymentStatus = "processing"
	EntryPaymentStatusCompleted  EntryPaymentStatus = "completed"
	EntryPaymentStatusFailed     EntryPaymentStatus = "failed"
	EntryPaymentStatusCancelled  EntryPaymentStatus = "cancelled"
)

var validEntryPaymentStatuses = []EntryPaymentStatus{
	EntryPaymentStatusPending,
	EntryPaymentStatusProcessing,
	EntryPaymentStatusCompleted,
	EntryPaymentStatusFailed,
	EntryPaymentStatusCancelled,
}

// IsValid reports whether the value is a known EntryPaymentStatus.
func (s EntryPaymentStatus) IsValid() bool {
	for _, candidate := range validEntryPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntryPaymentStatus converts raw input into an EntryPaymentStatus.
func ParseEntryPaymentStatus(value string) (EntryPaymentStatus, error) {
	for _, candidate := range validEntryPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
