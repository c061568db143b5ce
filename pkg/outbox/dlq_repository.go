package outbox

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
)

const (
	maxDLQErrorLen  = 1024
	defaultDLQLimit = 50
	maxDLQListLimit = 500
)

// DLQRepository stores outbox rows the publisher gave up on. Parked
// ledger events are replayed by operators, never by the publisher.
type DLQRepository struct {
	db *gorm.DB
}

// DLQFilter narrows List; zero values match everything.
type DLQFilter struct {
	EventType   enums.OutboxEventType
	AggregateID *uuid.UUID
	Limit       int
}

func (f DLQFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultDLQLimit
	case f.Limit > maxDLQListLimit:
		return maxDLQListLimit
	default:
		return f.Limit
	}
}

func (f DLQFilter) apply(query *gorm.DB) *gorm.DB {
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.AggregateID != nil {
		query = query.Where("aggregate_id = ?", *f.AggregateID)
	}
	return query.Order("failed_at DESC").Limit(f.limit())
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// ParkTx writes entry in the caller's transaction, next to the update that
// marks the outbox row terminal.
func (r *DLQRepository) ParkTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("outbox: dlq reason %q not recognised", entry.ErrorReason)
	}
	if entry.ErrorMessage != nil {
		trimmed := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &trimmed
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("park event %s: %w", entry.EventID, err)
	}
	return nil
}

// FindByEventID returns nil without error when the event was never parked.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var rows []models.OutboxDLQ
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// List returns parked events newest first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	var rows []models.OutboxDLQ
	err := filter.apply(r.db.WithContext(ctx).Model(&models.OutboxDLQ{})).Find(&rows).Error
	return rows, err
}

// truncateDLQError cuts on a rune boundary so the column stays valid UTF-8.
func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	cut := maxDLQErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
