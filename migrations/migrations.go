// Package migrations embeds the policy schema for each supported driver.
package migrations

import "embed"

// Applied by db.MigrateUp in filename order.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
