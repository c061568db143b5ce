package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAccount OutboxAggregateType = "account"
	AggregateInvoice OutboxAggregateType = "invoice"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateAccount || a == AggregateInvoice
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLedgerEntryRecorded  OutboxEventType = "ledger_entry_recorded"
	EventAccountRecalculated  OutboxEventType = "account_recalculated"
	EventInvoiceStatusChanged OutboxEventType = "invoice_status_changed"
	EventInvoiceFinalised     OutboxEventType = "invoice_finalised"
)

// eventAggregates fixes the aggregate each event type is keyed by.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventLedgerEntryRecorded:  AggregateAccount,
	EventAccountRecalculated:  AggregateAccount,
	EventInvoiceStatusChanged: AggregateInvoice,
	EventInvoiceFinalised:     AggregateInvoice,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event belongs to, or "" for
// unknown event types.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

// OutboxEventTypes lists every known event type.
func OutboxEventTypes() []OutboxEventType {
	return []OutboxEventType{
		EventLedgerEntryRecorded,
		EventAccountRecalculated,
		EventInvoiceStatusChanged,
		EventInvoiceFinalised,
	}
}
