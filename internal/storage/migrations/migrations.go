// Package migrations embeds the MySQL/TiDB schema applied by goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
