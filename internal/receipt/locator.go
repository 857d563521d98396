package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// ErrLocatorTimeout is returned when no record matching the uploaded
// filename appears within the attempt budget.
var ErrLocatorTimeout = fmt.Errorf("receipt record not found: %w", ErrExhausted)

// Locator discovers the store-assigned ID of a just-uploaded receipt. The
// ID is not known at upload time; the extraction trigger generates it, so
// the locator polls recent records for one whose original filename
// matches.
type Locator struct {
	store       docstore.Store
	interval    time.Duration
	maxAttempts int
	pageSize    int
}

// NewLocator creates a Locator polling with the given cadence and budget.
func NewLocator(store docstore.Store, interval time.Duration, maxAttempts int) *Locator {
	return &Locator{
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
		pageSize:    20,
	}
}

// Locate polls until a RawReceipt whose originalFile.name equals filename
// appears, returning its ID. Records are listed newest first, so a
// re-uploaded filename matches its most recent record. Duplicate uploads
// in quick succession can still match the wrong generated ID; the store
// offers no ordering guarantee that closes that race.
func (l *Locator) Locate(ctx context.Context, filename string) (string, error) {
	var found string
	err := Poll(ctx, l.interval, l.maxAttempts, func(ctx context.Context) (bool, error) {
		docs, err := l.store.ListDocuments(ctx, docstore.ReceiptsCollection, docstore.ListOptions{
			OrderBy:    "metadata.updatedAt",
			Descending: true,
			PageSize:   l.pageSize,
		})
		if err != nil {
			// Transient store failures count as "not found yet".
			slog.Warn("Listing receipts failed", "filename", filename, "error", err)
			return false, nil
		}

		for _, doc := range docs {
			r := ReceiptFromDocument(doc)
			if r.OriginalFile.Name == filename {
				found = r.ID
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, ErrExhausted) {
		return "", ErrLocatorTimeout
	}
	if err != nil {
		return "", err
	}
	return found, nil
}
