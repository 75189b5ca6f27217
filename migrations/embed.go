// Package migrations holds the SQL schema migrations applied at startup.
package migrations

import "embed"

// FS contains every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
