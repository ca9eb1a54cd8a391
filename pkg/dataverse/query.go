package dataverse

import (
	"fmt"
	"strings"
)

// Expand inlines selected columns of a related record.
type Expand struct {
	Navigation string
	Select     []string
}

func (e Expand) String() string {
	if len(e.Select) == 0 {
		return e.Navigation
	}
	return fmt.Sprintf("%s($select=%s)", e.Navigation, strings.Join(e.Select, ","))
}

// Query is an OData system-query-option set. The zero value is an empty query.
type Query struct {
	Select  []string
	OrderBy []string
	Expand  []Expand
}

// String renders the query with a leading "?", or "" when empty. Options are
// emitted in $select, $orderby, $expand order.
func (q Query) String() string {
	var parts []string
	if len(q.Select) > 0 {
		parts = append(parts, "$select="+strings.Join(q.Select, ","))
	}
	if len(q.OrderBy) > 0 {
		parts = append(parts, "$orderby="+strings.Join(q.OrderBy, ","))
	}
	if len(q.Expand) > 0 {
		expands := make([]string, len(q.Expand))
		for i, e := range q.Expand {
			expands[i] = e.String()
		}
		parts = append(parts, "$expand="+strings.Join(expands, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// Asc is an ascending $orderby term.
func Asc(column string) string {
	return column + " asc"
}
