package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// Batches are validated in full before any record is written.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	seq     int64

	// failOn makes BatchSet fail when a batch touches the given path.
	failOn map[string]error
}

type storedRecord struct {
	data []byte
	seq  int64
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]storedRecord),
		failOn:  make(map[string]error),
	}
}

// FailWritesTo makes every batch that writes path fail with err, leaving the
// store untouched. A nil err clears the failure.
func (s *RecordStore) FailWritesTo(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, path)
		return
	}
	s.failOn[path] = err
}

// Get returns the record at path.
func (s *RecordStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), rec.data...), nil
}

// BatchSet applies every write or none.
func (s *RecordStore) BatchSet(_ context.Context, writes []driven.RecordWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Validate and resolve every write before touching the map
	staged := make(map[string][]byte, len(writes))
	for _, w := range writes {
		if _, _, ok := driven.SplitPath(w.Path); !ok {
			return fmt.Errorf("%w: bad record path %q", domain.ErrInvalidInput, w.Path)
		}
		if err, ok := s.failOn[w.Path]; ok {
			return fmt.Errorf("write %s: %w", w.Path, err)
		}
		data := w.Data
		if w.Merge {
			base, ok := staged[w.Path]
			if !ok {
				if rec, exists := s.records[w.Path]; exists {
					base = rec.data
				}
			}
			merged, err := driven.MergeJSON(base, data)
			if err != nil {
				return fmt.Errorf("merge %s: %w", w.Path, err)
			}
			data = merged
		} else if !json.Valid(data) {
			return fmt.Errorf("%w: record %s is not valid JSON", domain.ErrInvalidInput, w.Path)
		}
		staged[w.Path] = data
	}

	// 2. Apply
	for _, w := range writes {
		data, ok := staged[w.Path]
		if !ok {
			continue
		}
		delete(staged, w.Path)
		s.seq++
		seq := s.seq
		if rec, exists := s.records[w.Path]; exists {
			seq = rec.seq
		}
		s.records[w.Path] = storedRecord{data: append([]byte(nil), data...), seq: seq}
	}
	return nil
}

// Query returns the records of one collection matching all filters.
func (s *RecordStore) Query(_ context.Context, q driven.RecordQuery) ([]driven.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type candidate struct {
		rec    driven.Record
		fields map[string]any
		seq    int64
	}
	var matches []candidate
	for path, rec := range s.records {
		collection, _, ok := driven.SplitPath(path)
		if !ok || collection != q.Collection {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(rec.data, &fields); err != nil {
			continue
		}
		if !matchesAll(fields, q.Equals) {
			continue
		}
		matches = append(matches, candidate{
			rec:    driven.Record{Path: path, Data: append([]byte(nil), rec.data...)},
			fields: fields,
			seq:    rec.seq,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if q.OrderBy == "" {
			return matches[i].seq < matches[j].seq
		}
		a := fmt.Sprint(matches[i].fields[q.OrderBy])
		b := fmt.Sprint(matches[j].fields[q.OrderBy])
		if q.Desc {
			return a > b
		}
		return a < b
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	records := make([]driven.Record, len(matches))
	for i, m := range matches {
		records[i] = m.rec
	}
	return records, nil
}

// Delete removes the records at paths.
func (s *RecordStore) Delete(_ context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.records, p)
	}
	return nil
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesAll(fields, equals map[string]any) bool {
	for k, want := range equals {
		got, ok := fields[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
