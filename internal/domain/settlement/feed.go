package settlement

import (
	"context"
	"errors"
)

// ErrFeedClosed is sent on the error channel when the upstream stream ends
var ErrFeedClosed = errors.New("settlement: feed closed")

// Feed is a resumable stream of invoice settlements.
//
// Subscribe delivers events with settle index greater than fromIndex in
// ascending order. Delivery is at-least-once. Both channels are closed when
// ctx is cancelled or the stream ends; a terminal error is sent on errs first.
type Feed interface {
	Subscribe(ctx context.Context, fromIndex uint64) (events <-chan Event, errs <-chan error, err error)
}
