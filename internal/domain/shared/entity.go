package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps shared by bids and auctions.
// Timestamps are UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a random ID and stamps both times with SystemClock
func NewBaseEntity() BaseEntity {
	now := SystemClock.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a modification at the given time
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}
