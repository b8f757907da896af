// Package migrations embeds the SQL schema migrations so the server and the
// migrate command can apply them without a checkout on disk.
package migrations

import "embed"

// FS holds the versioned up/down migration files.
//
//go:embed *.sql
var FS embed.FS
