// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - LLMService: Reasoning service for segmentation and compliance judgments
//   - Tokenizer: Model-specific token counting for budget estimation
//   - LegalIndex: Legal-context search over the body of law
//   - RecordStore: Atomic multi-record persistence of analysis results
//   - TextExtractor: Turns uploaded bytes into text
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Only needed by vector-backed LegalIndex implementations.
//   - Notifier: Without it, job events are only logged.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
