package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// wireDocument is a document as the store returns it: a fully qualified
// resource name plus enveloped fields.
type wireDocument struct {
	Name       string               `json:"name,omitempty"`
	Fields     map[string]wireValue `json:"fields,omitempty"`
	CreateTime time.Time            `json:"createTime,omitempty"`
	UpdateTime time.Time            `json:"updateTime,omitempty"`
}

type wireDocumentList struct {
	Documents []wireDocument `json:"documents,omitempty"`
}

// FirestoreClient implements TriggerStore against a Firestore-style REST
// document store. Authentication is a pre-provisioned static bearer token.
type FirestoreClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewFirestoreClient creates a client for the documents endpoint of a
// database, e.g. "https://firestore.googleapis.com/v1/projects/p/databases/(default)/documents".
func NewFirestoreClient(baseURL, token string) *FirestoreClient {
	return NewFirestoreClientWithHTTP(baseURL, token, &http.Client{Timeout: 30 * time.Second})
}

// NewFirestoreClientWithHTTP creates a client with a custom HTTP client for testing.
func NewFirestoreClientWithHTTP(baseURL, token string, client *http.Client) *FirestoreClient {
	return &FirestoreClient{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

// GetDocument retrieves a single document by ID.
func (c *FirestoreClient) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var wd wireDocument
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, collection, id), nil, &wd); err != nil {
		return nil, fmt.Errorf("getting document %s/%s: %w", collection, id, err)
	}
	return decodeDocument(wd)
}

// ListDocuments lists documents in a collection with optional ordering and
// page size.
func (c *FirestoreClient) ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]*Document, error) {
	query := url.Values{}
	if opts.OrderBy != "" {
		order := opts.OrderBy
		if opts.Descending {
			order += " desc"
		}
		query.Set("orderBy", order)
	}
	if opts.PageSize > 0 {
		query.Set("pageSize", fmt.Sprintf("%d", opts.PageSize))
	}

	target := fmt.Sprintf("%s/%s", c.baseURL, collection)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var list wireDocumentList
	if err := c.do(ctx, http.MethodGet, target, nil, &list); err != nil {
		return nil, fmt.Errorf("listing documents in %s: %w", collection, err)
	}

	docs := make([]*Document, 0, len(list.Documents))
	for _, wd := range list.Documents {
		doc, err := decodeDocument(wd)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// CreateDocument creates a document with a store-assigned ID.
func (c *FirestoreClient) CreateDocument(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	var wd wireDocument
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, collection), &wireDocument{Fields: encoded}, &wd); err != nil {
		return nil, fmt.Errorf("creating document in %s: %w", collection, err)
	}
	return decodeDocument(wd)
}

// UpdateDocument replaces the given fields on an existing document.
func (c *FirestoreClient) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	query := url.Values{}
	for name := range fields {
		query.Add("updateMask.fieldPaths", name)
	}

	target := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, collection, id, query.Encode())
	var wd wireDocument
	if err := c.do(ctx, http.MethodPatch, target, &wireDocument{Fields: encoded}, &wd); err != nil {
		return nil, fmt.Errorf("updating document %s/%s: %w", collection, id, err)
	}
	return decodeDocument(wd)
}

// do executes one request and decodes the JSON response into out.
func (c *FirestoreClient) do(ctx context.Context, method, target string, body *wireDocument, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeDocument converts a wire document into a plain one, extracting the
// ID from the trailing segment of the resource name.
func decodeDocument(wd wireDocument) (*Document, error) {
	fields, err := decodeFields(wd.Fields)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:         path.Base(wd.Name),
		Fields:     fields,
		CreateTime: wd.CreateTime,
		UpdateTime: wd.UpdateTime,
	}, nil
}
