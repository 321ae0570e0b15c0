package mcp

import (
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Ports aggregates the collaborators required by the MCP server.
type Ports struct {
	// Analysis runs and serves compliance analyses.
	Analysis driving.AnalysisService

	// Chunking and Extractor back the chunk_document tool. Both are optional.
	Chunking  driving.ChunkingService
	Extractor driven.TextExtractor

	// Corpus backs index_legal_source and list_legal_sources. Optional.
	Corpus driving.CorpusService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Analysis == nil {
		return ErrMissingAnalysisService
	}
	return nil
}
