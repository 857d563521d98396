package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zubora/receipt-pon/internal/docstore"
)

// setCORSHeaders sets CORS headers on a response.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleUploadReceipt accepts a multipart upload and starts the pipeline.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// 50MB covers high-resolution phone photos.
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" {
		contentType = contentTypeForName(header.Filename)
	}

	snapshot, err := s.service.Upload(r.Context(), filepath.Base(header.Filename), data, contentType)
	if err != nil {
		slog.Error("Error uploading receipt", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadGateway, "Upload failed. Please try again.")
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot)
}

// handleCurrent returns the pipeline snapshot for the latest upload.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Current())
}

// handleGetReceipt returns one raw receipt with its parse result.
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Receipt ID required")
		return
	}

	analysis, err := s.service.GetAnalysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		slog.Error("Error getting receipt", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// handleProcessReceipt finalizes a reviewed receipt.
func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Receipt ID required")
		return
	}

	var req struct {
		Items []LineItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	processed, err := s.service.Process(r.Context(), id, req.Items)
	if err != nil {
		if errors.Is(err, ErrUnclassifiedItem) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Receipt not found")
			return
		}
		slog.Error("Error processing receipt", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Saving failed. Your review is unchanged; please retry.")
		return
	}

	writeJSON(w, http.StatusCreated, processed)
}

// handleHistory returns processed receipts with aggregate totals.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.service.GetHistory(r.Context())
	if err != nil {
		slog.Error("Error listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, history)
}
