package queryengine

import (
	"strings"

	"github.com/searchemu/searchemu/internal/schema"
)

// SynonymExpander expands query terms per a set of loaded synonym maps.
// Equivalence rules ("a,b,c") add every other term in
// the class as an alternative; explicit mapping rules ("a=>b,c") replace
// occurrences of a left-hand term with every right-hand term.
type SynonymExpander struct {
	equivalence map[string][]string
	mapping     map[string][]string
}

// NewSynonymExpander compiles one or more parsed synonym maps into a
// single lookup table.
func NewSynonymExpander(maps ...*schema.SynonymMap) (*SynonymExpander, error) {
	e := &SynonymExpander{
		equivalence: make(map[string][]string),
		mapping:     make(map[string][]string),
	}
	for _, m := range maps {
		rules, err := schema.ParseRules(m.Synonyms)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			if r.Mapped == nil {
				for _, term := range r.Terms {
					for _, other := range r.Terms {
						if other == term {
							continue
						}
						e.equivalence[term] = append(e.equivalence[term], other)
					}
				}
				continue
			}
			for _, term := range r.Terms {
				e.mapping[term] = append(e.mapping[term], r.Mapped...)
			}
		}
	}
	return e, nil
}

// Expand returns every alternative term for term (not including term
// itself), combining equivalence classes and explicit mappings.
func (e *SynonymExpander) Expand(term string) []string {
	term = strings.ToLower(term)
	var out []string
	out = append(out, e.equivalence[term]...)
	out = append(out, e.mapping[term]...)
	return out
}
