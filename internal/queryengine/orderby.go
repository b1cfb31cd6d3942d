package queryengine

import (
	"fmt"
	"sort"
	"strings"
)

// ParseOrderBy parses a comma-separated orderBy clause list, each of the
// form "field [asc|desc]" or "search.score() [asc|desc]".
// An empty string yields no clauses (meaning: order by search.score()
// desc, the query engine's default).
func ParseOrderBy(orderBy string) ([]OrderClause, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return nil, nil
	}
	var clauses []OrderClause
	for _, part := range strings.Split(orderBy, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("invalid orderby clause %q", part)
		}
		desc := false
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
				desc = false
			case "desc":
				desc = true
			default:
				return nil, fmt.Errorf("invalid orderby direction %q", fields[1])
			}
		}
		field := fields[0]
		if strings.EqualFold(field, "search.score()") {
			clauses = append(clauses, OrderClause{Field: "", Descending: desc})
			continue
		}
		clauses = append(clauses, OrderClause{Field: field, Descending: desc})
	}
	return clauses, nil
}

// SortHits orders hits in place per clauses; with no clauses it sorts by
// descending score. Hits that tie on every clause keep their original
// (insertion) order, which sort.SliceStable gives directly as long as the
// input order is the original rank order.
func SortHits(hits []Hit, clauses []OrderClause) {
	if len(clauses) == 0 {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, c := range clauses {
			var less, greater bool
			if c.Field == "" {
				less = hits[i].Score < hits[j].Score
				greater = hits[i].Score > hits[j].Score
			} else {
				cmp, ok := compareValues(hits[i].Fields[c.Field], hits[j].Fields[c.Field])
				if !ok {
					continue
				}
				less = cmp < 0
				greater = cmp > 0
			}
			if c.Descending {
				less, greater = greater, less
			}
			if less {
				return true
			}
			if greater {
				return false
			}
		}
		return false
	})
}
