package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// ErrStatusTimeout is returned when a receipt does not reach the
// processed status within the attempt budget.
var ErrStatusTimeout = fmt.Errorf("receipt still processing: %w", ErrExhausted)

// ErrExtractionFailed is returned by a fail-fast watcher when the record
// transitions to the error status.
var ErrExtractionFailed = errors.New("extraction reported an error")

// Watcher re-fetches a RawReceipt until its status becomes processed.
//
// FailFastOnError selects how an error status is handled. The historical
// behavior treats it like "still processing" and keeps retrying until
// the budget runs out; with the flag set the watcher stops immediately
// and reports ErrExtractionFailed. Both are kept because the observed
// behavior was inconsistent between variants of the app.
type Watcher struct {
	store           docstore.Store
	interval        time.Duration
	maxAttempts     int
	FailFastOnError bool
}

// NewWatcher creates a Watcher with the historical retry-through-error
// behavior.
func NewWatcher(store docstore.Store, interval time.Duration, maxAttempts int) *Watcher {
	return &Watcher{
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Await polls the record until it is processed and returns it.
func (w *Watcher) Await(ctx context.Context, id string) (*RawReceipt, error) {
	var processed *RawReceipt
	err := Poll(ctx, w.interval, w.maxAttempts, func(ctx context.Context) (bool, error) {
		doc, err := w.store.GetDocument(ctx, docstore.ReceiptsCollection, id)
		if err != nil {
			// The record can lag behind the listing that located it.
			slog.Warn("Fetching receipt failed", "id", id, "error", err)
			return false, nil
		}

		r := ReceiptFromDocument(doc)
		switch r.Status {
		case StatusProcessed:
			processed = r
			return true, nil
		case StatusError:
			if w.FailFastOnError {
				return false, fmt.Errorf("receipt %s: %w", id, ErrExtractionFailed)
			}
			return false, nil
		default:
			return false, nil
		}
	})
	if errors.Is(err, ErrExhausted) {
		return nil, ErrStatusTimeout
	}
	if err != nil {
		return nil, err
	}
	return processed, nil
}
