package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// ErrUnclassifiedItem is returned when a receipt is finalized while some
// line item is still unclassified.
var ErrUnclassifiedItem = errors.New("every item must be categorized as expense or personal")

// Categorizer turns a fully reviewed line item list into an immutable
// ProcessedReceipt. The UI is supposed to enforce that every item is
// classified before saving; the categorizer re-validates anyway.
type Categorizer struct {
	store      docstore.Store
	timeSource TimeSource
}

// NewCategorizer creates a Categorizer. The record ID is assigned by the
// store on create.
func NewCategorizer(store docstore.Store, timeSrc TimeSource) *Categorizer {
	return &Categorizer{
		store:      store,
		timeSource: timeSrc,
	}
}

// Totals sums item prices per category. The two totals always add up to
// the sum over all classified items; they are recomputed from the items,
// never edited independently.
func Totals(items []LineItem) (expense, personal int) {
	for _, item := range items {
		switch item.Category {
		case CategoryExpense:
			expense += item.Price
		case CategoryPersonal:
			personal += item.Price
		}
	}
	return expense, personal
}

// Finalize validates the reviewed items, computes the per-category
// totals, and persists the derived record in a single create. On a write
// failure nothing local changes, so the caller can retry.
func (c *Categorizer) Finalize(ctx context.Context, parsed *ParsedReceipt, originalID string, items []LineItem) (*ProcessedReceipt, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	for _, item := range items {
		if item.Category != CategoryExpense && item.Category != CategoryPersonal {
			return nil, fmt.Errorf("item %s (%s): %w", item.ID, item.Name, ErrUnclassifiedItem)
		}
	}

	expense, personal := Totals(items)
	processed := &ProcessedReceipt{
		OriginalReceiptID: originalID,
		StoreName:         parsed.StoreName,
		TransactionDate:   parsed.TransactionDate,
		Items:             items,
		TotalExpense:      expense,
		TotalPersonal:     personal,
		ProcessedAt:       c.timeSource.Now(),
	}

	doc, err := c.store.CreateDocument(ctx, docstore.ProcessedReceiptsCollection, ProcessedFields(processed))
	if err != nil {
		return nil, fmt.Errorf("saving processed receipt: %w", err)
	}
	processed.ID = doc.ID
	return processed, nil
}
