// Package migrations embeds the tenant catalog DDL for PostgreSQL.
package migrations

import "embed"

// CatalogFS contains the DDL of the tenant catalog table.
//
//go:embed catalog/*.sql
var CatalogFS embed.FS

// CatalogDir is the directory within CatalogFS where the DDL lives.
const CatalogDir = "catalog"
