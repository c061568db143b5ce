package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/fuelops-backend/pkg/enums"
)

// deriveStatus keeps suspended accounts suspended and flags an account as
// overdue when it owes money and has not paid inside the window. Accounts
// that never paid are measured from their creation time.
func deriveStatus(current enums.AccountStatus, outstanding decimal.Decimal, lastPaymentAt *time.Time, createdAt, now time.Time, window time.Duration) enums.AccountStatus {
	if current == enums.AccountStatusSuspended {
		return current
	}
	if isOverdue(outstanding, lastPaymentAt, createdAt, now, window) {
		return enums.AccountStatusOverdue
	}
	return enums.AccountStatusActive
}

func isOverdue(outstanding decimal.Decimal, lastPaymentAt *time.Time, createdAt, now time.Time, window time.Duration) bool {
	if window <= 0 || !outstanding.IsNegative() {
		return false
	}
	ref := createdAt
	if lastPaymentAt != nil {
		ref = *lastPaymentAt
	}
	if ref.IsZero() {
		return false
	}
	return now.Sub(ref) >= window
}
