// Package services implements the driving port interfaces.
//
// The analysis pipeline lives here: semantic segmentation, token-budgeted
// batching, per-unit compliance analysis, aggregation and the compact result
// store. Services depend only on driven ports, never on concrete adapters.
package services
