package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or content type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the reasoning service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrSearchUnavailable indicates the legal-context search backend is not configured.
	ErrSearchUnavailable = errors.New("legal search unavailable")

	// ErrRateLimited indicates the reasoning service rejected a request for rate reasons.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrExtraction indicates the input document could not be read. Fatal to a job.
	ErrExtraction = errors.New("text extraction failed")

	// ErrResponseParse indicates a reasoning-service response could not be parsed.
	// Always absorbed at the call site and replaced with a documented default.
	ErrResponseParse = errors.New("response parse failed")

	// ErrTokenEstimation indicates a token budget estimate could not be computed.
	// Absorbed by the batch orchestrator, which substitutes a conservative batch size.
	ErrTokenEstimation = errors.New("token budget estimation failed")

	// ErrUnitAnalysis indicates one analysis unit failed.
	// Absorbed per unit and replaced with the fallback verdict.
	ErrUnitAnalysis = errors.New("unit analysis failed")

	// ErrPersistenceWrite indicates the analysis result could not be stored. Fatal to a job.
	ErrPersistenceWrite = errors.New("persistence write failed")

	// ErrRecordTooLarge indicates a record exceeds the store's per-record size ceiling.
	ErrRecordTooLarge = errors.New("record too large")

	// Job Errors.

	// ErrJobInProgress indicates an analysis with the same id is already running.
	ErrJobInProgress = errors.New("analysis already in progress")

	// ErrCancelled indicates a job stopped at a cancellation checkpoint.
	// Cancellation is a terminal status, not a failure.
	ErrCancelled = errors.New("analysis cancelled")
)
