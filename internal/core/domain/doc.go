// Package domain defines the core business entities for lexcheck.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded legal document and its extracted text
//   - Chunk: A structural piece of a document (chapter, section, clause, table)
//   - AnalysisUnit: A section judged on its own by the reasoning model
//   - AnalysisResult: Per-section verdicts and the aggregated compliance
//   - Job: An asynchronous analysis run and its progress
//   - LegalSource: A body of law indexed as legal context
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
