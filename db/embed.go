// Package db embeds the SQL migrations for each supported backend.
package db

import "embed"

//go:embed pg/*.sql sqlite/*.sql
var Migrations embed.FS

// Folder returns the migration folder for a database driver.
func Folder(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "pg"
}
