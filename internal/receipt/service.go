package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// pipelineKey is the supervisor key for the upload pipeline. One logical
// pipeline exists at a time; a new upload supersedes the previous one.
const pipelineKey = "upload-pipeline"

// Pipeline states exposed to the UI.
const (
	StateIdle       = "idle"
	StateLocating   = "locating"
	StateProcessing = "processing"
	StateProcessed  = "processed"
	StateFailed     = "error"
)

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Snapshot is the current upload pipeline state. Local state is a cache
// over the document store; it can be discarded and refetched at any time.
type Snapshot struct {
	State     string         `json:"state"`
	Filename  string         `json:"filename,omitempty"`
	ReceiptID string         `json:"receipt_id,omitempty"`
	Parsed    *ParsedReceipt `json:"parsed,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Analysis pairs a raw receipt with its parsed projection.
type Analysis struct {
	Receipt *RawReceipt   `json:"receipt"`
	Parsed  ParsedReceipt `json:"parsed"`
}

// History is the processed-receipt listing with aggregate totals.
type History struct {
	Receipts      []*ProcessedReceipt `json:"receipts"`
	TotalExpense  int                 `json:"total_expense"`
	TotalPersonal int                 `json:"total_personal"`
}

// Service drives the receipt pipeline: upload, locate, await extraction,
// parse, categorize, and read history.
type Service struct {
	store       docstore.Store
	storage     Storage
	locator     *Locator
	watcher     *Watcher
	categorizer *Categorizer
	supervisor  *Supervisor
	timeSource  TimeSource

	mu      sync.Mutex
	current Snapshot
}

// NewService creates a Service with the wall-clock time source.
func NewService(store docstore.Store, storage Storage, locator *Locator, watcher *Watcher) *Service {
	return NewServiceWithDeps(store, storage, locator, watcher, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(store docstore.Store, storage Storage, locator *Locator, watcher *Watcher, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		storage:     storage,
		locator:     locator,
		watcher:     watcher,
		categorizer: NewCategorizer(store, timeSrc),
		supervisor:  NewSupervisor(),
		timeSource:  timeSrc,
		current:     Snapshot{State: StateIdle},
	}
}

// Upload writes the image to blob storage and starts the locate-and-await
// pipeline in the background. A pipeline still running from a previous
// upload is cancelled first; its results are ignored, not queued.
func (s *Service) Upload(ctx context.Context, filename string, data []byte, contentType string) (Snapshot, error) {
	ref, err := s.storage.Save(ctx, filename, data, contentType)
	if err != nil {
		s.setSnapshot(Snapshot{State: StateIdle})
		return Snapshot{}, fmt.Errorf("saving upload: %w", err)
	}
	slog.Info("Receipt uploaded", "filename", ref.Name, "bucket", ref.Bucket)

	snapshot := Snapshot{State: StateLocating, Filename: ref.Name}
	s.setSnapshot(snapshot)

	s.supervisor.Go(pipelineKey, func(ctx context.Context) {
		s.runPipeline(ctx, ref.Name)
	})
	return snapshot, nil
}

// runPipeline locates the generated record for the upload, waits for
// extraction to finish, and parses the text. Every failure lands the
// snapshot in a terminal error state; nothing stays "processing" forever.
func (s *Service) runPipeline(ctx context.Context, filename string) {
	id, err := s.locator.Locate(ctx, filename)
	if err != nil {
		s.failPipeline(filename, "locating receipt record", err)
		return
	}
	s.setSnapshot(Snapshot{State: StateProcessing, Filename: filename, ReceiptID: id})

	raw, err := s.watcher.Await(ctx, id)
	if err != nil {
		s.failPipeline(filename, "awaiting extraction", err)
		return
	}

	parsed := Parse(raw.RawText, s.timeSource.Now())
	s.setSnapshot(Snapshot{
		State:     StateProcessed,
		Filename:  filename,
		ReceiptID: id,
		Parsed:    &parsed,
	})
	slog.Info("Receipt ready for review", "id", id, "items", len(parsed.Items))
}

func (s *Service) failPipeline(filename, stage string, err error) {
	if errors.Is(err, context.Canceled) {
		// Superseded by a newer upload; the new pipeline owns the snapshot.
		return
	}
	slog.Error("Receipt pipeline failed", "filename", filename, "stage", stage, "error", err)
	s.setSnapshot(Snapshot{State: StateFailed, Filename: filename, Error: err.Error()})
}

func (s *Service) setSnapshot(snapshot Snapshot) {
	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()
}

// Current returns the pipeline snapshot for the most recent upload.
func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GetAnalysis fetches one RawReceipt and parses its text.
func (s *Service) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	doc, err := s.store.GetDocument(ctx, docstore.ReceiptsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	raw := ReceiptFromDocument(doc)
	return &Analysis{
		Receipt: raw,
		Parsed:  Parse(raw.RawText, s.timeSource.Now()),
	}, nil
}

// Process finalizes a reviewed receipt: every item categorized, totals
// computed, derived record created. On failure nothing is persisted and
// the caller can retry with the same items.
func (s *Service) Process(ctx context.Context, id string, items []LineItem) (*ProcessedReceipt, error) {
	analysis, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.categorizer.Finalize(ctx, &analysis.Parsed, id, items)
}

// GetHistory lists processed receipts, newest first, with aggregate
// per-category totals.
func (s *Service) GetHistory(ctx context.Context) (*History, error) {
	docs, err := s.store.ListDocuments(ctx, docstore.ProcessedReceiptsCollection, docstore.ListOptions{
		OrderBy:    "processedAt",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing processed receipts: %w", err)
	}

	history := &History{Receipts: make([]*ProcessedReceipt, 0, len(docs))}
	for _, doc := range docs {
		p := ProcessedFromDocument(doc)
		history.Receipts = append(history.Receipts, p)
		history.TotalExpense += p.TotalExpense
		history.TotalPersonal += p.TotalPersonal
	}
	return history, nil
}

// Close cancels any running pipeline.
func (s *Service) Close() {
	s.supervisor.CancelAll()
}
