// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for the catalog, cart, order, and loyalty tables.
// Statements are idempotent (CREATE ... IF NOT EXISTS).
//
//go:embed migrations/001_schema.sql
var Schema string
