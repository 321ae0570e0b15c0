package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure the corpus types implement their interfaces.
var (
	_ driving.CorpusService = (*CorpusService)(nil)
	_ driven.LegalIndex     = (*PersistentIndex)(nil)
)

// Record collections holding the legal corpus.
const (
	collectionLegalChunks  = "legal_chunks"
	collectionLegalSources = "legal_sources"
)

// replayBatchSize bounds the chunks handed to the wrapped index per call
// when the stored corpus is replayed.
const replayBatchSize = 256

// chunkRecord is the stored form of an indexed legal chunk.
type chunkRecord struct {
	SourceID string       `json:"source_id,omitempty"`
	Chunk    domain.Chunk `json:"chunk"`
}

// PersistentIndex writes every indexed chunk to a RecordStore before
// handing it to the wrapped index. With replay set, the stored corpus is
// loaded into the wrapped index on first use, which keeps an in-process
// index populated across runs.
type PersistentIndex struct {
	inner   driven.LegalIndex
	records driven.RecordStore
	replay  bool
	log     *logger.Logger

	once    sync.Once
	loadErr error
}

// NewPersistentIndex wraps inner. replay should be set for indexes that
// lose their contents when the process exits.
func NewPersistentIndex(inner driven.LegalIndex, records driven.RecordStore, replay bool, log *logger.Logger) *PersistentIndex {
	return &PersistentIndex{inner: inner, records: records, replay: replay, log: log}
}

// load replays the stored corpus once. Undecodable records are skipped.
func (x *PersistentIndex) load(ctx context.Context) error {
	x.once.Do(func() {
		if !x.replay {
			return
		}
		recs, err := x.records.Query(ctx, driven.RecordQuery{Collection: collectionLegalChunks})
		if err != nil {
			x.loadErr = fmt.Errorf("load legal corpus: %w", err)
			x.log.Warn("%v", x.loadErr)
			return
		}

		chunks := make([]domain.Chunk, 0, len(recs))
		for _, r := range recs {
			var rec chunkRecord
			if err := json.Unmarshal(r.Data, &rec); err != nil {
				x.log.Warn("skipping legal chunk %s: %v", r.Path, err)
				continue
			}
			chunks = append(chunks, rec.Chunk)
		}
		for start := 0; start < len(chunks); start += replayBatchSize {
			end := min(start+replayBatchSize, len(chunks))
			if err := x.inner.Index(ctx, chunks[start:end]); err != nil {
				x.loadErr = fmt.Errorf("replay legal corpus: %w", err)
				x.log.Warn("%v", x.loadErr)
				return
			}
		}
		x.log.Debug("restored %d legal chunks", len(chunks))
	})
	return x.loadErr
}

// Index stores the chunks in one atomic batch, then indexes them.
// Chunks without an ID are assigned one.
func (x *PersistentIndex) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := x.load(ctx); err != nil {
		return err
	}

	writes := make([]driven.RecordWrite, len(chunks))
	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		sourceID, _ := c.Metadata[driven.MetaSourceID].(string)
		data, err := json.Marshal(chunkRecord{SourceID: sourceID, Chunk: c})
		if err != nil {
			return fmt.Errorf("encode legal chunk %s: %w", c.ID, err)
		}
		writes[i] = driven.RecordWrite{Path: collectionLegalChunks + "/" + c.ID, Data: data}
		stored[i] = c
	}
	if err := x.records.BatchSet(ctx, writes); err != nil {
		return fmt.Errorf("%w: store legal chunks: %w", domain.ErrPersistenceWrite, err)
	}
	return x.inner.Index(ctx, stored)
}

// Remove deletes chunks from the store and the wrapped index.
func (x *PersistentIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.load(ctx); err != nil {
		return err
	}
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = collectionLegalChunks + "/" + id
	}
	if err := x.records.Delete(ctx, paths...); err != nil {
		return fmt.Errorf("%w: delete legal chunks: %w", domain.ErrPersistenceWrite, err)
	}
	return x.inner.Remove(ctx, ids)
}

// Search queries the wrapped index. A failed replay is logged once and
// the search runs on whatever was loaded.
func (x *PersistentIndex) Search(ctx context.Context, q driven.LegalSearchQuery) (driven.LegalSearchResult, error) {
	_ = x.load(ctx)
	return x.inner.Search(ctx, q)
}

// Close closes the wrapped index.
func (x *PersistentIndex) Close() error {
	return x.inner.Close()
}

// CorpusDeps are the collaborators of a CorpusService. Index is required.
type CorpusDeps struct {
	Extractor driven.TextExtractor
	Chunking  driving.ChunkingService
	Index     driven.LegalIndex

	// Records tracks indexed sources. Without it sources are not listed and
	// re-indexing a shorter text leaves its old trailing chunks indexed.
	Records driven.RecordStore

	// IndexID is stamped on chunks when a request names none.
	IndexID string

	Logger *logger.Logger
}

// CorpusService adds legal texts to the legal-context index.
type CorpusService struct {
	deps CorpusDeps
	log  *logger.Logger
	now  func() time.Time
}

// NewCorpusService creates a corpus service.
func NewCorpusService(deps CorpusDeps) *CorpusService {
	return &CorpusService{deps: deps, log: deps.Logger, now: time.Now}
}

// Index extracts, chunks and indexes a legal text. Every chunk carries the
// source's legal area, jurisdiction and index id as search metadata and a
// stable id derived from the source id, so re-indexing replaces chunks.
func (s *CorpusService) Index(ctx context.Context, req domain.IndexRequest) (*domain.LegalSource, error) {
	if s.deps.Index == nil || s.deps.Chunking == nil || s.deps.Extractor == nil {
		return nil, fmt.Errorf("%w: legal index is not configured", domain.ErrSearchUnavailable)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty legal text", domain.ErrInvalidInput)
	}
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = domain.SourceIDFromFilename(req.Filename)
	}
	if err := domain.ValidateSourceID(sourceID); err != nil {
		return nil, err
	}

	text, err := s.deps.Extractor.Extract(ctx, req.Data, req.ContentType, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", req.Filename, err)
	}

	title := req.Title
	if title == "" {
		title = req.Filename
	}
	doc := &domain.Document{ID: sourceID, Title: title, Content: text, Hints: req.Hints}
	profile := s.deps.Chunking.Profile(doc)
	chunks, err := s.deps.Chunking.Chunk(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s has no indexable text", domain.ErrInvalidInput, req.Filename)
	}

	source := domain.LegalSource{
		ID:           sourceID,
		Title:        title,
		Filename:     req.Filename,
		LegalArea:    req.LegalArea,
		Jurisdiction: req.Jurisdiction,
		IndexID:      req.IndexID,
		Language:     profile.Language,
		Kind:         profile.Kind,
		Chunks:       len(chunks),
		IndexedAt:    s.now().UTC(),
	}
	if source.IndexID == "" {
		source.IndexID = s.deps.IndexID
	}

	refs := make(map[string]bool)
	for i := range chunks {
		c := &chunks[i]
		c.ID = domain.SourceChunkID(sourceID, i)
		c.DocumentID = sourceID
		c.Metadata = sourceMetadata(c.Metadata, source)
		for _, r := range c.LegalReferences {
			refs[r] = true
		}
	}
	source.References = len(refs)

	previous, err := s.source(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Index.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index %s: %w", sourceID, err)
	}
	if previous != nil && previous.Chunks > len(chunks) {
		stale := make([]string, 0, previous.Chunks-len(chunks))
		for n := len(chunks); n < previous.Chunks; n++ {
			stale = append(stale, domain.SourceChunkID(sourceID, n))
		}
		if err := s.deps.Index.Remove(ctx, stale); err != nil {
			s.log.Warn("could not remove %d stale chunks of %s: %v", len(stale), sourceID, err)
		}
	}
	if err := s.saveSource(ctx, source); err != nil {
		return nil, err
	}

	s.log.Info("indexed %s: %d chunks, %d references", sourceID, source.Chunks, source.References)
	return &source, nil
}

// Sources lists the indexed sources, most recently indexed first.
func (s *CorpusService) Sources(ctx context.Context) ([]domain.LegalSource, error) {
	if s.deps.Records == nil {
		return nil, nil
	}
	recs, err := s.deps.Records.Query(ctx, driven.RecordQuery{
		Collection: collectionLegalSources,
		OrderBy:    "indexed_at",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("list legal sources: %w", err)
	}
	sources := make([]domain.LegalSource, 0, len(recs))
	for _, r := range recs {
		var src domain.LegalSource
		if err := json.Unmarshal(r.Data, &src); err != nil {
			s.log.Warn("skipping legal source %s: %v", r.Path, err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (s *CorpusService) source(ctx context.Context, id string) (*domain.LegalSource, error) {
	if s.deps.Records == nil {
		return nil, nil
	}
	data, err := s.deps.Records.Get(ctx, collectionLegalSources+"/"+id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load legal source %s: %w", id, err)
	}
	var src domain.LegalSource
	if err := json.Unmarshal(data, &src); err != nil {
		s.log.Warn("ignoring undecodable legal source %s: %v", id, err)
		return nil, nil
	}
	return &src, nil
}

func (s *CorpusService) saveSource(ctx context.Context, src domain.LegalSource) error {
	if s.deps.Records == nil {
		return nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode legal source %s: %w", src.ID, err)
	}
	err = s.deps.Records.BatchSet(ctx, []driven.RecordWrite{{Path: collectionLegalSources + "/" + src.ID, Data: data}})
	if err != nil {
		return fmt.Errorf("%w: store legal source %s: %w", domain.ErrPersistenceWrite, src.ID, err)
	}
	return nil
}

// sourceMetadata copies meta and adds the source's search fields.
func sourceMetadata(meta map[string]any, src domain.LegalSource) map[string]any {
	out := make(map[string]any, len(meta)+5)
	for k, v := range meta {
		out[k] = v
	}
	out[driven.MetaSourceID] = src.ID
	out[driven.MetaSourceTitle] = src.Title
	for key, value := range map[string]string{
		driven.MetaLegalArea:    src.LegalArea,
		driven.MetaJurisdiction: src.Jurisdiction,
		driven.MetaIndexID:      src.IndexID,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}
