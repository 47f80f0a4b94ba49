package postgrest

import _ "embed"

// Schema is the DDL for the tables this client reads and writes. It is
// applied by cmd/schema-init and never automatically.
//
//go:embed schema.sql
var Schema string
