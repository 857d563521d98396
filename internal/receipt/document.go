package receipt

import (
	"time"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// Mapping between domain types and document fields. Documents carry plain
// values; the store client owns the wire envelope.

// ReceiptFromDocument reads a RawReceipt out of a receipts document.
// Missing or mistyped fields degrade to zero values; remote records are
// written by the extraction trigger and may be mid-transition.
func ReceiptFromDocument(doc *docstore.Document) *RawReceipt {
	r := &RawReceipt{
		ID:      doc.ID,
		RawText: stringField(doc.Fields, "rawText"),
		Status:  stringField(doc.Fields, "status"),
	}

	if original, ok := doc.Fields["originalFile"].(map[string]any); ok {
		r.OriginalFile = OriginalFile{
			Bucket: stringField(original, "bucket"),
			Name:   stringField(original, "name"),
			Path:   stringField(original, "path"),
		}
	}

	if entities, ok := doc.Fields["entities"].([]any); ok {
		for _, e := range entities {
			fields, ok := e.(map[string]any)
			if !ok {
				continue
			}
			r.Entities = append(r.Entities, Entity{
				Type:        stringField(fields, "type"),
				MentionText: stringField(fields, "mentionText"),
			})
		}
	}

	if metadata, ok := doc.Fields["metadata"].(map[string]any); ok {
		r.UpdatedAt = timeField(metadata, "updatedAt")
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = doc.UpdateTime
	}
	return r
}

// ReceiptFields builds the receipts document for a RawReceipt. Used by
// the extraction trigger, which owns these records.
func ReceiptFields(r *RawReceipt) map[string]any {
	entities := make([]any, 0, len(r.Entities))
	for _, e := range r.Entities {
		entities = append(entities, map[string]any{
			"type":        e.Type,
			"mentionText": e.MentionText,
		})
	}

	return map[string]any{
		"rawText":  r.RawText,
		"status":   r.Status,
		"entities": entities,
		"originalFile": map[string]any{
			"bucket": r.OriginalFile.Bucket,
			"name":   r.OriginalFile.Name,
			"path":   r.OriginalFile.Path,
		},
		"metadata": map[string]any{
			"updatedAt": r.UpdatedAt,
		},
	}
}

// ProcessedFromDocument reads a ProcessedReceipt out of a
// processed_receipts document.
func ProcessedFromDocument(doc *docstore.Document) *ProcessedReceipt {
	p := &ProcessedReceipt{
		ID:                doc.ID,
		OriginalReceiptID: stringField(doc.Fields, "originalReceiptId"),
		StoreName:         stringField(doc.Fields, "storeName"),
		TransactionDate:   stringField(doc.Fields, "transactionDate"),
		TotalExpense:      intField(doc.Fields, "totalExpense"),
		TotalPersonal:     intField(doc.Fields, "totalPersonal"),
		ProcessedAt:       timeField(doc.Fields, "processedAt"),
	}

	if items, ok := doc.Fields["items"].([]any); ok {
		p.Items = make([]LineItem, 0, len(items))
		for _, item := range items {
			fields, ok := item.(map[string]any)
			if !ok {
				continue
			}
			p.Items = append(p.Items, LineItem{
				ID:       stringField(fields, "id"),
				Name:     stringField(fields, "name"),
				Price:    intField(fields, "price"),
				Category: stringField(fields, "category"),
			})
		}
	}
	return p
}

// ProcessedFields builds the processed_receipts document for a
// ProcessedReceipt.
func ProcessedFields(p *ProcessedReceipt) map[string]any {
	items := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, map[string]any{
			"id":       item.ID,
			"name":     item.Name,
			"price":    item.Price,
			"category": item.Category,
		})
	}

	return map[string]any{
		"originalReceiptId": p.OriginalReceiptID,
		"storeName":         p.StoreName,
		"transactionDate":   p.TransactionDate,
		"items":             items,
		"totalExpense":      p.TotalExpense,
		"totalPersonal":     p.TotalPersonal,
		"processedAt":       p.ProcessedAt,
	}
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func intField(fields map[string]any, name string) int {
	switch n := fields[name].(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func timeField(fields map[string]any, name string) time.Time {
	t, _ := fields[name].(time.Time)
	return t
}
