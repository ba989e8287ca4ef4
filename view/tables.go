package view

import (
	"regexp"
	"sort"
	"strings"
)

// tableRefRe extracts table references from FROM and JOIN clauses. It
// handles optional schema prefixes and quoted identifiers.
var tableRefRe = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+(?:(?:"\w+"|\w+)\.)?(?:"([^"]+)"|([A-Za-z_]\w+))`)

// sqlFalsePositives are keywords and set-returning functions that follow
// FROM/JOIN without naming a table.
var sqlFalsePositives = map[string]struct{}{
	"lateral":              {},
	"ts_stat":              {},
	"generate_series":      {},
	"unnest":               {},
	"json_each":            {},
	"jsonb_each":           {},
	"json_array_elements":  {},
	"jsonb_array_elements": {},
	"information_schema":   {},
	"pg_catalog":           {},
	"select":               {},
	"where":                {},
	"group":                {},
	"order":                {},
	"having":               {},
	"limit":                {},
	"offset":               {},
	"union":                {},
	"intersect":            {},
	"except":               {},
	"values":               {},
	"dual":                 {},
}

// DependencyTables extracts the table names a view's SQL selects from,
// sorted and de-duplicated. The extraction is regex-based and best-effort:
// CTEs and complex subqueries may confuse it, which is why DropAffected
// offers a conservative mode as a safety net.
func DependencyTables(sql string) []string {
	seen := make(map[string]struct{})
	for _, m := range tableRefRe.FindAllStringSubmatch(sql, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if _, ok := sqlFalsePositives[strings.ToLower(name)]; ok {
			continue
		}
		seen[name] = struct{}{}
	}
	tables := make([]string, 0, len(seen))
	for name := range seen {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables
}
