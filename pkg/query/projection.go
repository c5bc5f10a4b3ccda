// Package query builds parameterized SELECT statements over a projection of
// view names onto table columns.
package query

import "strings"

// ProjectionMap maps view names to alias-qualified columns. Projected
// columns are selected in the order they were added; expressions resolve
// by name for filtering and ordering but are never selected.
type ProjectionMap struct {
	from     string
	alias    string
	byName   map[string]string
	selected []string
}

// NewProjectionMap starts a projection over schema.table aliased as alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		from:   schema + "." + table + " " + alias,
		alias:  alias,
		byName: map[string]string{},
	}
}

// Project selects column under viewName.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.byName[viewName] = qualified
	p.selected = append(p.selected, qualified)
	return p
}

// Expression names an alias-qualified expression such as origin->>'url'.
func (p *ProjectionMap) Expression(expr, viewName string) *ProjectionMap {
	p.byName[viewName] = p.alias + "." + expr
	return p
}

// From returns "schema.table alias".
func (p *ProjectionMap) From() string {
	return p.from
}

// Column resolves viewName, returning it unchanged when unmapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.byName[viewName]; ok {
		return col
	}
	return viewName
}

// Columns returns the selected columns joined for a SELECT list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.selected, ", ")
}
