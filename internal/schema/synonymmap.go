package schema

import (
	"fmt"
	"strings"
)

// SynonymMap holds Solr-format synonym rules: either
// equivalence lines ("a,b,c") or explicit-mapping lines ("a=>b,c").
type SynonymMap struct {
	Name string `json:"name"`
	// Format is always "solr" today; kept for forward compatibility with
	// the wire shape that names a format explicitly.
	Format    string `json:"format"`
	Synonyms  string `json:"synonyms"`
}

func (sm *SynonymMap) Validate() error {
	if !ValidName(sm.Name) {
		return fmt.Errorf("invalid synonym map name %q", sm.Name)
	}
	if strings.TrimSpace(sm.Synonyms) == "" {
		return fmt.Errorf("synonym map %q has no rules", sm.Name)
	}
	return nil
}

// Rule is one parsed line of a SynonymMap: either an equivalence class
// (Mapped == nil, Terms are mutually interchangeable) or an explicit
// mapping (every term in Terms expands to every term in Mapped).
type Rule struct {
	Terms  []string
	Mapped []string
}

// ParseRules parses the Solr-format synonym text into Rules, skipping
// blank lines and lines starting with '#'.
func ParseRules(synonyms string) ([]Rule, error) {
	var rules []Rule
	for _, line := range strings.Split(synonyms, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "=>"); idx >= 0 {
			left := splitTerms(line[:idx])
			right := splitTerms(line[idx+2:])
			if len(left) == 0 || len(right) == 0 {
				return nil, fmt.Errorf("invalid synonym mapping rule: %q", line)
			}
			rules = append(rules, Rule{Terms: left, Mapped: right})
			continue
		}
		terms := splitTerms(line)
		if len(terms) < 2 {
			return nil, fmt.Errorf("invalid synonym equivalence rule: %q", line)
		}
		rules = append(rules, Rule{Terms: terms})
	}
	return rules, nil
}

func splitTerms(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
