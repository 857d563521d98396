package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DocumentAI implements Extractor against a Document AI-style REST
// processor endpoint. Authentication is a pre-provisioned bearer token.
type DocumentAI struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewDocumentAI creates an extractor for a processor resource, e.g.
// "https://us-documentai.googleapis.com/v1/projects/p/locations/us/processors/id".
func NewDocumentAI(endpoint, token string) *DocumentAI {
	return NewDocumentAIWithHTTP(endpoint, token, &http.Client{Timeout: 60 * time.Second})
}

// NewDocumentAIWithHTTP creates an extractor with a custom HTTP client for testing.
func NewDocumentAIWithHTTP(endpoint, token string, client *http.Client) *DocumentAI {
	return &DocumentAI{
		endpoint: endpoint,
		token:    token,
		client:   client,
	}
}

type processRequest struct {
	RawDocument rawDocument `json:"rawDocument"`
}

type rawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

type processResponse struct {
	Document struct {
		Text     string   `json:"text"`
		Entities []Entity `json:"entities"`
	} `json:"document"`
}

// Extract sends the image to the processor and returns the extracted text
// and entities.
func (d *DocumentAI) Extract(imageData []byte, contentType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	body, err := json.Marshal(processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(imageData),
			MimeType: contentType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+":process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling processor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("processor returned %d: %s", resp.StatusCode, data)
	}

	var decoded processResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &Result{
		Text:     decoded.Document.Text,
		Entities: decoded.Document.Entities,
	}, nil
}

// Close implements Extractor; the HTTP client holds no resources.
func (d *DocumentAI) Close() error {
	return nil
}
