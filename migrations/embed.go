// Package migrations embeds the tenant schema SQL migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
