package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRulesEquivalenceAndMapping(t *testing.T) {
	rules, err := ParseRules("USA,United States,US\nfoo=>bar,baz\n# a comment\n\n")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.ElementsMatch(t, []string{"usa", "united states", "us"}, rules[0].Terms)
	assert.Nil(t, rules[0].Mapped)

	assert.Equal(t, []string{"foo"}, rules[1].Terms)
	assert.Equal(t, []string{"bar", "baz"}, rules[1].Mapped)
}

func TestParseRulesRejectsMalformed(t *testing.T) {
	_, err := ParseRules("onlyoneterm")
	assert.Error(t, err)

	_, err = ParseRules("a=>")
	assert.Error(t, err)
}

func TestSynonymMapValidate(t *testing.T) {
	sm := &SynonymMap{Name: "us-synonyms", Format: "solr", Synonyms: "USA,US"}
	require.NoError(t, sm.Validate())

	sm.Synonyms = ""
	assert.Error(t, sm.Validate())

	sm.Synonyms = "USA,US"
	sm.Name = "Bad Name"
	assert.Error(t, sm.Validate())
}
