package query

import (
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term, named by its projected view name.
type SortField struct {
	Field      string
	Descending bool
}

// Builder accumulates AND-ed conditions over a projection and numbers
// their placeholders in the order they are added.
type Builder struct {
	projection *ProjectionMap
	where      []string
	args       []any
	sort       []SortField
}

// NewBuilder starts a query over projection ordered by sort.
func NewBuilder(projection *ProjectionMap, sort ...SortField) *Builder {
	return &Builder{projection: projection, sort: sort}
}

// Build renders the SELECT with its conditions and ordering.
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	b.selectFrom(&sb)

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}

	for i, f := range b.sort {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(b.projection.Column(f.Field))
		if f.Descending {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	return sb.String(), b.args
}

// BuildSingle renders a SELECT of the row whose idField equals id.
// Conditions and ordering on the builder are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	var sb strings.Builder
	b.selectFrom(&sb)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.projection.Column(idField))
	sb.WriteString(" = $1")
	return sb.String(), []any{id}
}

// WhereEquals matches field exactly. A nil value adds nothing; a non-nil
// pointer is dereferenced.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return b
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return b
		}
		value = v.Elem().Interface()
	case reflect.Map, reflect.Slice, reflect.Interface:
		if v.IsNil() {
			return b
		}
	}

	b.where = append(b.where, b.projection.Column(field)+" = "+b.bind(value))
	return b
}

// WhereContains matches field case-insensitively as a substring.
// A nil or empty value adds nothing.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" ILIKE "+b.bind("%"+*value+"%"))
	return b
}

// WhereSearch matches when any of fields contains search.
// A nil or empty search adds nothing.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	terms := make([]string, len(fields))
	for i, field := range fields {
		terms[i] = b.projection.Column(field) + " ILIKE " + b.bind("%"+*search+"%")
	}
	b.where = append(b.where, "("+strings.Join(terms, " OR ")+")")
	return b
}

func (b *Builder) bind(arg any) string {
	b.args = append(b.args, arg)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *Builder) selectFrom(sb *strings.Builder) {
	sb.WriteString("SELECT ")
	sb.WriteString(b.projection.Columns())
	sb.WriteString(" FROM ")
	sb.WriteString(b.projection.From())
}
