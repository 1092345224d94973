// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema creates the catalog, banner and order tables. Every statement is
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
