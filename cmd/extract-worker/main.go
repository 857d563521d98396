package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zubora/receipt-pon/internal/docstore"
	"github.com/zubora/receipt-pon/internal/extraction"
	"github.com/zubora/receipt-pon/internal/receipt"
)

func main() {
	godotenv.Load()

	fs := ff.NewFlagSet("extract-worker")
	var (
		storeType      = fs.StringLong("store", "bolt", "Document store: 'firestore' or 'bolt'")
		firestoreURL   = fs.StringLong("firestore-url", "", "Firestore documents endpoint URL")
		firestoreToken = fs.StringLong("firestore-token", "", "Bearer token for the document store")
		dbPath         = fs.StringLong("db", "receipt-pon.db", "Bolt database file path (store=bolt)")
		storageType    = fs.StringLong("storage", "local", "Blob storage: 'gcs' or 'local'")
		bucket         = fs.StringLong("bucket", "", "GCS bucket name (storage=gcs)")
		storagePath    = fs.StringLong("storage-path", "./uploads", "Local storage directory (storage=local)")
		extractorType  = fs.StringLong("extractor", "documentai", "Extractor: 'documentai' or 'gemini'")
		processorURL   = fs.StringLong("processor-url", "", "Document AI processor resource URL")
		processorToken = fs.StringLong("processor-token", "", "Bearer token for the processor")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		sweepInterval  = fs.DurationLong("sweep-interval", 5*time.Second, "Delay between storage sweeps")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PON"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Document store
	var store docstore.TriggerStore
	switch *storeType {
	case "firestore":
		if *firestoreURL == "" || *firestoreToken == "" {
			slog.Error("firestore-url and firestore-token are required with store=firestore")
			os.Exit(1)
		}
		store = docstore.NewFirestoreClient(*firestoreURL, *firestoreToken)
	case "bolt":
		boltStore, err := docstore.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer boltStore.Close()
		store = boltStore
	default:
		slog.Error("Invalid store type", "type", *storeType, "valid", "firestore or bolt")
		os.Exit(1)
	}

	// Blob storage
	var storage receipt.Storage
	switch *storageType {
	case "gcs":
		if *bucket == "" {
			slog.Error("bucket is required with storage=gcs")
			os.Exit(1)
		}
		gcs, err := receipt.NewGCSStorage(context.Background(), *bucket)
		if err != nil {
			slog.Error("Failed to initialize GCS storage", "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		storage = gcs
	case "local":
		local, err := receipt.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		storage = local
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "gcs or local")
		os.Exit(1)
	}

	// Extractor
	var extractor extraction.Extractor
	switch *extractorType {
	case "documentai":
		if *processorURL == "" || *processorToken == "" {
			slog.Error("processor-url and processor-token are required with extractor=documentai")
			os.Exit(1)
		}
		slog.Info("Using Document AI extractor", "processor", *processorURL)
		extractor = extraction.NewDocumentAI(*processorURL, *processorToken)
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Using Gemini extractor", "model", *geminiModel)
		var err error
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "documentai or gemini")
		os.Exit(1)
	}
	defer extractor.Close()

	trigger := extraction.NewTrigger(storage, store, extractor, *sweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutting down...")
		cancel()
	}()

	slog.Info("Extraction worker started", "sweep_interval", (*sweepInterval).String())
	if err := trigger.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
