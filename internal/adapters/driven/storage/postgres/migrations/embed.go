// Package migrations embeds SQL migration files for the Postgres store.
package migrations

import "embed"

// Files contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var Files embed.FS
