package driven

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// RecordStore is a document store addressed by "collection/id" paths.
//
// BatchSet must be atomic: either every write in the batch is visible to
// readers afterwards or none is.
type RecordStore interface {
	// Get returns the JSON document at path or domain.ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// BatchSet writes every record in one atomic transaction.
	BatchSet(ctx context.Context, writes []RecordWrite) error

	// Query returns records of one collection matching all equality filters.
	Query(ctx context.Context, q RecordQuery) ([]Record, error)

	// Delete removes the records at the given paths. Missing paths are ignored.
	Delete(ctx context.Context, paths ...string) error

	// Close releases resources.
	Close() error
}

// RecordWrite is one write within a batch.
type RecordWrite struct {
	// Path is "collection/id".
	Path string

	// Data is a JSON object.
	Data []byte

	// Merge overlays the top-level fields of Data onto any existing record
	// instead of replacing it.
	Merge bool
}

// RecordQuery filters a flat collection.
type RecordQuery struct {
	Collection string

	// Equals maps top-level field names to required values.
	Equals map[string]any

	// OrderBy is a top-level field name. Empty means insertion order.
	OrderBy string
	Desc    bool

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

// Record is a stored document.
type Record struct {
	Path string
	Data []byte
}

// SplitPath splits "collection/id" into its parts.
// ok is false if path is not of that shape.
func SplitPath(path string) (collection, id string, ok bool) {
	collection, id, ok = strings.Cut(path, "/")
	if !ok || collection == "" || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return collection, id, true
}

// MergeJSON overlays the top-level fields of patch onto base. An empty base
// is treated as an empty object.
func MergeJSON(base, patch []byte) ([]byte, error) {
	merged := make(map[string]json.RawMessage)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("decode existing record: %w", err)
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("%w: patch is not a JSON object: %v", domain.ErrInvalidInput, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
