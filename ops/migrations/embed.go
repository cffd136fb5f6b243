// Package migrations embeds the PostgreSQL schema and development seeds.
package migrations

import "embed"

//go:embed sql/*.sql
var SQL embed.FS

//go:embed seeds/*.sql
var Seeds embed.FS
