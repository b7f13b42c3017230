// Package migrations embeds the settings database schema.
//
// Importing it for side effects registers the files with the database
// package, so the binary needs no SQL on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/attrcycle/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
