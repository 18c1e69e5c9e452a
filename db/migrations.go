// Package db holds the SQL schema migrations applied at startup.
package db

import "embed"

// Migrations contains the goose migration files under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
