package sources

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/curator/pkg/query"
	"github.com/JaimeStill/curator/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "sources", "s").
	Project("id", "ID").
	Project("name", "Name").
	Project("origin", "Origin").
	Project("format", "Format").
	Project("automation", "Automation").
	Project("notification_recipients", "NotificationRecipients").
	Project("date_filter", "DateFilter").
	Project("uploads", "Uploads").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Expression("origin->>'url'", "URL")

const returning = `id, name, origin, format, automation, notification_recipients, date_filter, uploads, created_at, updated_at`

var defaultSort = query.SortField{Field: "Name"}

// Filters contains optional filtering criteria for source queries.
// URL uses exact matching against origin.url; Name uses case-insensitive
// contains matching; Search matches name or url.
type Filters struct {
	URL    *string `json:"url,omitempty"`
	Name   *string `json:"name,omitempty"`
	Search *string `json:"search,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("URL", f.URL).
		WhereContains("Name", f.Name).
		WhereSearch(f.Search, "Name", "URL")
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if u := values.Get("url"); u != "" {
		f.URL = &u
	}
	if n := values.Get("name"); n != "" {
		f.Name = &n
	}
	if s := values.Get("search"); s != "" {
		f.Search = &s
	}

	return f
}

func scanSource(s repository.Scanner) (Source, error) {
	var (
		src                                        Source
		origin, automation, recipients, dateFilter []byte
		uploads                                    []byte
	)

	err := s.Scan(
		&src.ID,
		&src.Name,
		&origin,
		&src.Format,
		&automation,
		&recipients,
		&dateFilter,
		&uploads,
		&src.CreatedAt,
		&src.UpdatedAt,
	)
	if err != nil {
		return src, err
	}

	columns := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"origin", origin, &src.Origin},
		{"automation", automation, &src.Automation},
		{"notification_recipients", recipients, &src.NotificationRecipients},
		{"date_filter", dateFilter, &src.DateFilter},
		{"uploads", uploads, &src.Uploads},
	}
	for _, c := range columns {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return src, fmt.Errorf("decode %s: %w", c.name, err)
		}
	}

	src.normalize()
	return src, nil
}

// sourceArgs returns the column values of s in insert order, starting at id.
// JSONB columns are passed as text and cast in SQL.
func sourceArgs(s *Source) ([]any, error) {
	values := []any{s.Origin, s.Automation, s.NotificationRecipients, s.DateFilter, s.Uploads}
	encoded := make([]any, len(values))

	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode source: %w", err)
		}
		if string(raw) == "null" {
			encoded[i] = nil
			continue
		}
		encoded[i] = string(raw)
	}

	return append([]any{s.ID, s.Name, encoded[0], s.Format, encoded[1]}, encoded[2:]...), nil
}
