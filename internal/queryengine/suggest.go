package queryengine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/searchemu/searchemu/internal/schema"
)

// SuggestRequest is one /docs/suggest call.
type SuggestRequest struct {
	Search        string
	SuggesterName string
	Top           int
	Fuzzy         bool
	Select        []string
}

// Suggestion is one candidate completion: the owning document's key plus
// the text of the source field it matched.
type Suggestion struct {
	Key  string
	Text string
}

// Suggest runs a prefix/fuzzy match over a named suggester's source fields
// and returns up to req.Top candidate documents.
// Unlike Autocomplete, a suggestion is a whole matched field value paired
// with its document key, not a completed term.
func (e *Engine) Suggest(idxSchema *schema.Index, req SuggestRequest) ([]Suggestion, error) {
	suggester, err := findSuggester(idxSchema, req.SuggesterName)
	if err != nil {
		return nil, err
	}

	top := req.Top
	if top <= 0 {
		top = 5
	}

	var fieldQueries []bleve.Query
	for _, f := range suggester.SourceFields {
		var q bleve.Query
		if req.Fuzzy {
			fq := bleve.NewFuzzyQuery(req.Search)
			fq.SetField(f)
			q = fq
		} else {
			pq := bleve.NewMatchPhrasePrefixQuery(req.Search)
			pq.SetField(f)
			q = pq
		}
		fieldQueries = append(fieldQueries, q)
	}
	disj := bleve.NewDisjunctionQuery(fieldQueries...)

	searchReq := bleve.NewSearchRequest(disj)
	searchReq.Size = top
	searchReq.Fields = suggester.SourceFields

	result, err := e.reader.Bleve().Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(result.Hits))
	for _, hit := range result.Hits {
		text := firstNonEmptyField(hit.Fields, suggester.SourceFields)
		suggestions = append(suggestions, Suggestion{Key: hit.ID, Text: text})
	}
	return suggestions, nil
}

// AutocompleteRequest is one /docs/autocomplete call.
type AutocompleteRequest struct {
	Search        string
	SuggesterName string
	Top           int
}

// Completion is one completed term and the full query text it completes
// to. The document count used to rank candidates is not carried here.
type Completion struct {
	Text       string
	QueryPlusText string
}

// Autocomplete enumerates indexed terms beginning with the last word of
// req.Search across a suggester's source fields (oneTerm mode; upstream's
// twoTerm/threeTerm modes are left unimplemented; multi-term completion
// is left implementation-defined). Grounded on bleve's
// FieldDictPrefix term-dictionary iterator.
func (e *Engine) Autocomplete(idxSchema *schema.Index, req AutocompleteRequest) ([]Completion, error) {
	suggester, err := findSuggester(idxSchema, req.SuggesterName)
	if err != nil {
		return nil, err
	}

	top := req.Top
	if top <= 0 {
		top = 5
	}

	words := strings.Fields(req.Search)
	prefix := ""
	prior := req.Search
	if len(words) > 0 {
		prefix = strings.ToLower(words[len(words)-1])
		prior = strings.TrimSuffix(req.Search, words[len(words)-1])
	}

	seen := make(map[string]uint64)
	for _, f := range suggester.SourceFields {
		dict, err := e.reader.Bleve().FieldDictPrefix(f, []byte(prefix))
		if err != nil {
			return nil, fmt.Errorf("autocomplete: field dict for %q: %w", f, err)
		}
		for entry, err := dict.Next(); entry != nil && err == nil; entry, err = dict.Next() {
			if count, ok := seen[entry.Term]; !ok || entry.Count > count {
				seen[entry.Term] = entry.Count
			}
		}
		_ = dict.Close()
	}

	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if seen[terms[i]] != seen[terms[j]] {
			return seen[terms[i]] > seen[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > top {
		terms = terms[:top]
	}

	completions := make([]Completion, len(terms))
	for i, t := range terms {
		completions[i] = Completion{Text: t, QueryPlusText: prior + t}
	}
	return completions, nil
}

func findSuggester(idxSchema *schema.Index, name string) (*schema.Suggester, error) {
	for i := range idxSchema.Suggesters {
		if idxSchema.Suggesters[i].Name == name {
			return &idxSchema.Suggesters[i], nil
		}
	}
	return nil, fmt.Errorf("index %q has no suggester named %q", idxSchema.Name, name)
}

func firstNonEmptyField(fields map[string]interface{}, names []string) string {
	for _, n := range names {
		if v, ok := fields[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
