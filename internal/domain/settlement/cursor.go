package settlement

import (
	"context"
	"errors"
)

// CursorKey is the state row holding the last processed settle index
const CursorKey = "LAST_SETTLE_INDEX"

// ErrCursorRegression is returned when a write would move the cursor backwards
var ErrCursorRegression = errors.New("settlement: cursor cannot decrease")

// CursorRepository persists the settlement cursor
type CursorRepository interface {
	// Get returns the stored cursor; a missing row reads as 0.
	Get(ctx context.Context) (uint64, error)
	// Advance stores index. It fails with ErrCursorRegression if index is
	// below the stored value.
	Advance(ctx context.Context, index uint64) error
}
