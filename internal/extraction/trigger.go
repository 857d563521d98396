package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zubora/receipt-pon/internal/docstore"
	"github.com/zubora/receipt-pon/internal/receipt"
)

// Trigger is the extraction side of the pipeline: it watches blob storage
// for uploads, runs OCR on each new one, and owns the resulting
// RawReceipt records. A record starts in processing and moves exactly
// once to processed or error.
type Trigger struct {
	storage   receipt.Storage
	store     docstore.TriggerStore
	extractor Extractor
	interval  time.Duration
}

// NewTrigger creates a Trigger sweeping at the given interval.
func NewTrigger(storage receipt.Storage, store docstore.TriggerStore, extractor Extractor, interval time.Duration) *Trigger {
	return &Trigger{
		storage:   storage,
		store:     store,
		extractor: extractor,
		interval:  interval,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) error {
	if err := t.Sweep(ctx); err != nil {
		slog.Error("Sweep failed", "error", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.Sweep(ctx); err != nil {
				slog.Error("Sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep processes every stored blob that has no receipt record yet.
// Notifications can be duplicated or missed, so discovery works from the
// full listing each time; the record created on a previous sweep is what
// marks a blob as seen.
func (t *Trigger) Sweep(ctx context.Context) error {
	blobs, err := t.storage.List(ctx)
	if err != nil {
		return fmt.Errorf("listing blobs: %w", err)
	}

	recorded, err := t.recordedFilenames(ctx)
	if err != nil {
		return fmt.Errorf("listing receipt records: %w", err)
	}

	for _, blob := range blobs {
		if recorded[blob.Name] {
			continue
		}
		if err := t.processBlob(ctx, blob); err != nil {
			slog.Error("Processing blob failed", "name", blob.Name, "error", err)
		}
	}
	return nil
}

// recordedFilenames collects the original filenames of every existing
// receipt record.
func (t *Trigger) recordedFilenames(ctx context.Context) (map[string]bool, error) {
	docs, err := t.store.ListDocuments(ctx, docstore.ReceiptsCollection, docstore.ListOptions{})
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]bool, len(docs))
	for _, doc := range docs {
		recorded[receipt.ReceiptFromDocument(doc).OriginalFile.Name] = true
	}
	return recorded, nil
}

// processBlob creates the processing record for one upload, runs
// extraction, and transitions the record to processed or error.
func (t *Trigger) processBlob(ctx context.Context, blob receipt.BlobInfo) error {
	raw := &receipt.RawReceipt{
		Status: receipt.StatusProcessing,
		OriginalFile: receipt.OriginalFile{
			Bucket: blob.Bucket,
			Name:   blob.Name,
			Path:   blob.Path,
		},
		UpdatedAt: time.Now().UTC(),
	}

	doc, err := t.store.CreateDocument(ctx, docstore.ReceiptsCollection, receipt.ReceiptFields(raw))
	if err != nil {
		return fmt.Errorf("creating receipt record: %w", err)
	}
	slog.Info("Extracting receipt", "id", doc.ID, "name", blob.Name)

	result, err := t.extract(ctx, blob)
	if err != nil {
		slog.Error("Extraction failed", "id", doc.ID, "name", blob.Name, "error", err)
		return t.transition(ctx, doc.ID, raw, "", nil, receipt.StatusError)
	}

	return t.transition(ctx, doc.ID, raw, result.Text, result.Entities, receipt.StatusProcessed)
}

// extract downloads the blob, normalizes it to PNG, and runs the
// extractor.
func (t *Trigger) extract(ctx context.Context, blob receipt.BlobInfo) (*Result, error) {
	data, contentType, err := t.storage.Get(ctx, blob.Name)
	if err != nil {
		return nil, fmt.Errorf("downloading blob: %w", err)
	}

	normalized, err := NormalizeImage(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("normalizing image: %w", err)
	}

	result, err := t.extractor.Extract(normalized, "image/png")
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	return result, nil
}

// transition performs the record's single status move.
func (t *Trigger) transition(ctx context.Context, id string, raw *receipt.RawReceipt, text string, entities []Entity, status string) error {
	raw.RawText = text
	raw.Status = status
	raw.UpdatedAt = time.Now().UTC()
	raw.Entities = raw.Entities[:0]
	for _, e := range entities {
		raw.Entities = append(raw.Entities, receipt.Entity{Type: e.Type, MentionText: e.MentionText})
	}

	if _, err := t.store.UpdateDocument(ctx, docstore.ReceiptsCollection, id, receipt.ReceiptFields(raw)); err != nil {
		return fmt.Errorf("updating receipt record: %w", err)
	}
	return nil
}
