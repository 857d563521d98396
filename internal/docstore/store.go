package docstore

import (
	"context"
	"errors"
	"time"
)

// Collection names used by the application.
const (
	ReceiptsCollection          = "receipts"
	ProcessedReceiptsCollection = "processed_receipts"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a single record in a collection. Fields hold plain Go values
// (string, int64, float64, bool, time.Time, []any, map[string]any); the
// wire-level typed-value envelope is confined to the Firestore client.
type Document struct {
	ID         string
	Fields     map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// ListOptions controls ordering and page size for ListDocuments.
type ListOptions struct {
	OrderBy    string
	Descending bool
	PageSize   int
}

// Store defines the document operations the receipt pipeline needs. The
// pipeline only ever reads and creates; RawReceipt mutation belongs to the
// extraction trigger.
type Store interface {
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, collection, id string) (*Document, error)

	// ListDocuments returns documents from a collection.
	ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]*Document, error)

	// CreateDocument creates a document and returns it with its assigned ID.
	CreateDocument(ctx context.Context, collection string, fields map[string]any) (*Document, error)
}

// TriggerStore extends Store with the update operation the extraction
// trigger uses for RawReceipt status transitions.
type TriggerStore interface {
	Store

	// UpdateDocument replaces the given fields on an existing document.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)
}
