package enums

import "fmt"

// EntryCategory sub-classifies ledger entries. Credit repayments are the only
// credits that release consumed credit limit.
type EntryCategory string

const (
	EntryCategoryCollection      EntryCategory = "collection"
	EntryCategoryCreditRepayment EntryCategory = "credit_repayment"
	EntryCategoryObligation      EntryCategory = "obligation"
)

var validEntryCategories = []EntryCategory{
	EntryCategoryCollection,
	EntryCategoryCreditRepayment,
	EntryCategoryObligation,
}

// IsValid reports whether the value is a known EntryCategory.
func (c EntryCategory) IsValid() bool {
	for _, candidate := range validEntryCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Direction returns the entry direction a category is allowed to carry.
func (c EntryCategory) Direction() EntryDirection {
	if c == EntryCategoryObligation {
		return EntryDirectionDebit
	}
	return EntryDirectionCredit
}

// ParseEntryCategory converts raw input into an EntryCategory.
func ParseEntryCategory(value string) (EntryCategory, error) {
	for _, candidate := range validEntryCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry category %q", value)
}
