// Package mcp provides an MCP (Model Context Protocol) server adapter for lexcheck.
// It lets AI assistants run compliance analyses and read stored results.
package mcp

import "errors"

// ErrMissingAnalysisService is returned when the analysis service is not provided.
var ErrMissingAnalysisService = errors.New("mcp: analysis service is required")

// ErrChunkingUnavailable is returned by chunk_document when no chunker is wired.
var ErrChunkingUnavailable = errors.New("mcp: chunking is not available")

// ErrCorpusUnavailable is returned by the legal source tools when no legal index is wired.
var ErrCorpusUnavailable = errors.New("mcp: legal index is not available")
