package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/veloxdb/dialect"
	"github.com/syssam/veloxdb/dialect/sql"
)

// CatalogEntry describes one view that exists in the database.
type CatalogEntry struct {
	Name         string // schema-qualified
	SQL          string // stored definition as rendered by the database
	Materialized bool
}

// Catalog maps schema-qualified view names to their live definitions.
type Catalog map[string]CatalogEntry

// Contains reports whether a view with the given (optionally qualified)
// name exists.
func (c Catalog) Contains(name string) bool {
	_, ok := c[qualify(name)]
	return ok
}

const (
	viewsQuery = "SELECT table_schema, table_name, view_definition FROM information_schema.views " +
		"WHERE table_schema NOT IN ('pg_catalog', 'information_schema')"
	matviewsQuery = "SELECT schemaname, matviewname, definition FROM pg_matviews"
)

// ReadCatalog loads the live views and materialized views from the
// PostgreSQL catalog.
func ReadCatalog(ctx context.Context, conn dialect.ExecQuerier) (Catalog, error) {
	cat := make(Catalog)
	if err := readCatalogQuery(ctx, conn, viewsQuery, false, cat); err != nil {
		return nil, err
	}
	if err := readCatalogQuery(ctx, conn, matviewsQuery, true, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func readCatalogQuery(ctx context.Context, conn dialect.ExecQuerier, query string, materialized bool, cat Catalog) error {
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, []any{}, rows); err != nil {
		return fmt.Errorf("view: reading catalog: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var schema, name string
		var def sql.NullString
		if err := rows.Scan(&schema, &name, &def); err != nil {
			return fmt.Errorf("view: scanning catalog row: %w", err)
		}
		qname := schema + "." + name
		cat[qname] = CatalogEntry{
			Name:         qname,
			SQL:          def.String,
			Materialized: materialized,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("view: reading catalog: %w", err)
	}
	return nil
}

// normalizeSQL reduces a view body to a whitespace-insensitive form for
// comparing a declared definition against the catalog's stored one. Runs of
// whitespace collapse to a single space and a trailing terminator is
// dropped. The comparison is textual only; it does not parse SQL.
func normalizeSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.Join(strings.Fields(s), " ")
}
