package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zubora/receipt-pon/internal/docstore"
	"github.com/zubora/receipt-pon/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// A .env file is optional; real environment variables win.
	godotenv.Load()

	fs := ff.NewFlagSet("receipt-pon")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		storeType      = fs.StringLong("store", "bolt", "Document store: 'firestore' or 'bolt'")
		firestoreURL   = fs.StringLong("firestore-url", "", "Firestore documents endpoint URL")
		firestoreToken = fs.StringLong("firestore-token", "", "Bearer token for the document store (or set RECEIPT_PON_FIRESTORE_TOKEN)")
		dbPath         = fs.StringLong("db", "receipt-pon.db", "Bolt database file path (store=bolt)")
		storageType    = fs.StringLong("storage", "local", "Blob storage: 'gcs' or 'local'")
		bucket         = fs.StringLong("bucket", "", "GCS bucket name (storage=gcs)")
		storagePath    = fs.StringLong("storage-path", "./uploads", "Local storage directory (storage=local)")
		pollInterval   = fs.DurationLong("poll-interval", 2*time.Second, "Delay between polling attempts")
		pollAttempts   = fs.IntLong("poll-attempts", 30, "Maximum polling attempts per stage")
		failFast       = fs.BoolLong("fail-fast", "Stop waiting as soon as extraction reports an error instead of retrying until timeout")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PON"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Document store
	var store docstore.Store
	switch *storeType {
	case "firestore":
		if *firestoreURL == "" || *firestoreToken == "" {
			slog.Error("firestore-url and firestore-token are required with store=firestore")
			os.Exit(1)
		}
		slog.Info("Using remote document store", "url", *firestoreURL)
		store = docstore.NewFirestoreClient(*firestoreURL, *firestoreToken)
	case "bolt":
		slog.Info("Using local document store", "path", *dbPath)
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
		slog.Info("Using GCS blob storage", "bucket", *bucket)
		gcs, err := receipt.NewGCSStorage(context.Background(), *bucket)
		if err != nil {
			slog.Error("Failed to initialize GCS storage", "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		storage = gcs
	case "local":
		slog.Info("Using local blob storage", "path", *storagePath)
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

	locator := receipt.NewLocator(store, *pollInterval, *pollAttempts)
	watcher := receipt.NewWatcher(store, *pollInterval, *pollAttempts)
	watcher.FailFastOnError = *failFast

	service := receipt.NewService(store, storage, locator, watcher)
	defer service.Close()

	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
