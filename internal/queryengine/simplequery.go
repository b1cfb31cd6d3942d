package queryengine

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// buildSimpleQuery translates the simple-mode grammar
// into a bleve query: quoted phrases become phrase queries, a trailing
// `*` becomes a prefix query, `field:term` scopes a term to one field
// (no boost is applied), and bare terms combine with implicit AND (searchMode=all) or OR
// (searchMode=any, the default).
func buildSimpleQuery(search string, searchFields []string, mode SearchMode) (bleve.Query, error) {
	clauses := splitSimpleClauses(search)
	if len(clauses) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	var queries []bleve.Query
	for _, clause := range clauses {
		q, err := buildClauseQuery(clause, searchFields)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	if len(queries) == 1 {
		return queries[0], nil
	}
	if mode == SearchModeAll {
		conj := bleve.NewConjunctionQuery(queries...)
		return conj, nil
	}
	disj := bleve.NewDisjunctionQuery(queries...)
	return disj, nil
}

// splitSimpleClauses tokenizes on whitespace while keeping double-quoted
// phrases intact.
func splitSimpleClauses(search string) []string {
	var clauses []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			clauses = append(clauses, cur.String())
			cur.Reset()
		}
	}
	for _, r := range search {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return clauses
}

func buildClauseQuery(clause string, defaultFields []string) (bleve.Query, error) {
	field := ""
	term := clause
	if idx := strings.Index(clause, ":"); idx > 0 && !strings.HasPrefix(clause, "\"") {
		field = clause[:idx]
		term = clause[idx+1:]
	}

	if strings.HasPrefix(term, "\"") && strings.HasSuffix(term, "\"") && len(term) >= 2 {
		phrase := strings.Trim(term, "\"")
		q := bleve.NewMatchPhraseQuery(phrase)
		if field != "" {
			q.SetField(field)
		} else if len(defaultFields) == 1 {
			q.SetField(defaultFields[0])
		}
		return q, nil
	}

	if strings.HasSuffix(term, "*") {
		prefix := strings.TrimSuffix(term, "*")
		q := bleve.NewPrefixQuery(strings.ToLower(prefix))
		if field != "" {
			q.SetField(field)
		} else if len(defaultFields) == 1 {
			q.SetField(defaultFields[0])
		} else if len(defaultFields) > 1 {
			return disjunctOverFields(func(f string) bleve.Query {
				pq := bleve.NewPrefixQuery(strings.ToLower(prefix))
				pq.SetField(f)
				return pq
			}, defaultFields), nil
		}
		return q, nil
	}

	if field != "" {
		q := bleve.NewMatchQuery(term)
		q.SetField(field)
		return q, nil
	}
	if len(defaultFields) == 0 {
		return bleve.NewMatchQuery(term), nil
	}
	if len(defaultFields) == 1 {
		q := bleve.NewMatchQuery(term)
		q.SetField(defaultFields[0])
		return q, nil
	}
	return disjunctOverFields(func(f string) bleve.Query {
		q := bleve.NewMatchQuery(term)
		q.SetField(f)
		return q
	}, defaultFields), nil
}

func disjunctOverFields(build func(field string) bleve.Query, fields []string) bleve.Query {
	qs := make([]bleve.Query, 0, len(fields))
	for _, f := range fields {
		qs = append(qs, build(f))
	}
	return bleve.NewDisjunctionQuery(qs...)
}
