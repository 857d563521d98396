package receipt

import "time"

// Status of a RawReceipt. Progression is monotonic: processing moves to
// processed or error and never reverts.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusError      = "error"
)

// Line item categories.
const (
	CategoryExpense      = "expense"
	CategoryPersonal     = "personal"
	CategoryUnclassified = "unclassified"
)

// OriginalFile is the back-reference from a RawReceipt to its source blob.
// Set once at creation, never mutated.
type OriginalFile struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

// Entity is one item the extraction service classified in the document.
type Entity struct {
	Type        string `json:"type"`
	MentionText string `json:"mention_text"`
}

// RawReceipt is one uploaded-and-extracted document, owned by the
// extraction trigger. The pipeline only ever reads it.
type RawReceipt struct {
	ID           string       `json:"id"`
	RawText      string       `json:"raw_text"`
	Status       string       `json:"status"`
	OriginalFile OriginalFile `json:"original_file"`
	Entities     []Entity     `json:"entities,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LineItem is one parsed product/price pair. Price is in whole yen. The ID
// is position-based within one parse, not globally unique.
type LineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Category string `json:"category"`
}

// ParsedReceipt is the parser's output: a pure projection of a
// RawReceipt's text, recomputed on demand and never persisted.
type ParsedReceipt struct {
	StoreName       string     `json:"store_name"`
	TransactionDate string     `json:"transaction_date"`
	Items           []LineItem `json:"items"`
	TotalAmount     int        `json:"total_amount"`
}

// ProcessedReceipt is a human-reviewed receipt with per-category totals.
// Immutable after creation; there is no update path.
type ProcessedReceipt struct {
	ID                string     `json:"id"`
	OriginalReceiptID string     `json:"original_receipt_id"`
	StoreName         string     `json:"store_name"`
	TransactionDate   string     `json:"transaction_date"`
	Items             []LineItem `json:"items"`
	TotalExpense      int        `json:"total_expense"`
	TotalPersonal     int        `json:"total_personal"`
	ProcessedAt       time.Time  `json:"processed_at"`
}
