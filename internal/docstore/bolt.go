package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// storedDocument is the bbolt value format. Fields stay in the typed-value
// envelope so that timestamps and integers survive the JSON round trip.
type storedDocument struct {
	Fields     map[string]wireValue `json:"fields"`
	CreateTime time.Time            `json:"create_time"`
	UpdateTime time.Time            `json:"update_time"`
}

// BoltStore implements TriggerStore on a local bbolt file, one bucket per
// collection. It backs the offline/dev mode and the integration tests.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file and its buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{ReceiptsCollection, ProcessedReceiptsCollection} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// GetDocument retrieves a document by ID.
func (b *BoltStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("unknown collection: %s", collection)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var err error
		doc, err = unmarshalDocument(id, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents from a collection, sorted and truncated
// in memory according to opts.
func (b *BoltStore) ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("unknown collection: %s", collection)
		}
		return bucket.ForEach(func(k, v []byte) error {
			doc, err := unmarshalDocument(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if opts.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareFieldValues(fieldAtPath(docs[i], opts.OrderBy), fieldAtPath(docs[j], opts.OrderBy))
			if opts.Descending {
				return !less
			}
			return less
		})
	}
	if opts.PageSize > 0 && len(docs) > opts.PageSize {
		docs = docs[:opts.PageSize]
	}
	return docs, nil
}

// CreateDocument stores a new document under a generated ID.
func (b *BoltStore) CreateDocument(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	stored := storedDocument{Fields: encoded, CreateTime: now, UpdateTime: now}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("unknown collection: %s", collection)
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}

	decoded, err := decodeFields(encoded)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: decoded, CreateTime: now, UpdateTime: now}, nil
}

// UpdateDocument merges the given fields into an existing document.
func (b *BoltStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	var doc *Document
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("unknown collection: %s", collection)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var stored storedDocument
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("unmarshaling document: %w", err)
		}
		for name, wv := range encoded {
			stored.Fields[name] = wv
		}
		stored.UpdateTime = time.Now().UTC()

		updated, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		if err := bucket.Put([]byte(id), updated); err != nil {
			return err
		}

		decoded, err := decodeFields(stored.Fields)
		if err != nil {
			return err
		}
		doc = &Document{ID: id, Fields: decoded, CreateTime: stored.CreateTime, UpdateTime: stored.UpdateTime}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Close closes the underlying database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func unmarshalDocument(id string, data []byte) (*Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	fields, err := decodeFields(stored.Fields)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields, CreateTime: stored.CreateTime, UpdateTime: stored.UpdateTime}, nil
}

// fieldAtPath resolves a dotted field path ("metadata.updatedAt") against
// a document's fields.
func fieldAtPath(doc *Document, fieldPath string) any {
	var current any = doc.Fields
	for _, segment := range strings.Split(fieldPath, ".") {
		fields, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = fields[segment]
	}
	return current
}

// compareFieldValues orders two field values of the same kind. Unset or
// mixed-type values sort first.
func compareFieldValues(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return a == nil && b != nil
}
