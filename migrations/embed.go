// Package migrations embeds the SQL migration files so the server, the
// migrate command and integration tests can run them through goose without
// a filesystem path at runtime.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
