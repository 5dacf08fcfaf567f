// Package db provides the embedded database schema for the Postgres-backed
// state store.
package db

import _ "embed"

// Schema contains the DDL statements for the kv_entries table.
//
//go:embed migrations/001_schema.sql
var Schema string
