package extraction

// Entity is one classified span the extraction service found.
type Entity struct {
	Type        string `json:"type"`
	MentionText string `json:"mentionText"`
}

// Result holds the extracted document text and any classified entities.
type Result struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Extractor defines the OCR boundary: raw image bytes in, extracted text
// and entities out.
type Extractor interface {
	// Extract runs text extraction on a document image.
	Extract(imageData []byte, contentType string) (*Result, error)
	// Close releases any resources held by the extractor.
	Close() error
}
