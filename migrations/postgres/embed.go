// Package migrations embeds SQL migration files.
package migrations

import "embed"

// KeysFS contains the migrations of the signing key store.
//
//go:embed keys/*.sql
var KeysFS embed.FS

// KeysDir is the directory within KeysFS where migrations live.
const KeysDir = "keys"
