// Package migrations embeds the SQL schema for every supported database driver.
package migrations

import "embed"

// FS holds one directory of up/down migrations per driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
