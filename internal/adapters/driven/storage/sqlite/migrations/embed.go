// Package migrations holds the versioned schema of the analysis record store.
package migrations

import "embed"

// FS holds the NNN_name.up.sql and NNN_name.down.sql files in version order.
//
//go:embed *.sql
var FS embed.FS
