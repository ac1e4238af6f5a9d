// Package migrations holds the journal schema as embedded SQL files.
package migrations

import "embed"

// FS contains every *.sql migration, named <version>_<title>.<up|down>.sql.
//
//go:embed *.sql
var FS embed.FS
