package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchemu/searchemu/internal/schema"
)

func TestRunTextSplitProducesChunks(t *testing.T) {
	root := NewDocument(map[string]interface{}{"content": "one two three four five six seven"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "split",
				Type:    schema.SkillTextSplit,
				Context: "/document",
				Inputs:  []schema.InputMapping{{Name: "text", Source: "/document/content"}},
				Outputs: []schema.OutputMapping{{Name: "textItems", TargetName: "pages"}},
				TextSplit: &schema.TextSplitParams{
					TextSplitMode:     "pages",
					MaximumPageLength: 10,
					PageOverlapLength: 0,
				},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)

	pages := Get(root, "/document/pages")
	require.Equal(t, KindArray, pages.Kind)
	assert.Greater(t, len(pages.Array), 1)
}

func TestRunShaperBuildsObjectFromInputs(t *testing.T) {
	root := NewDocument(map[string]interface{}{"title": "T", "author": "A"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "shape",
				Type:    schema.SkillShaper,
				Context: "/document",
				Inputs: []schema.InputMapping{
					{Name: "title", Source: "/document/title"},
					{Name: "author", Source: "/document/author"},
				},
				Outputs: []schema.OutputMapping{{Name: "output", TargetName: "meta"}},
				Shaper:  &schema.ShaperParams{},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)

	meta := Get(root, "/document/meta")
	require.Equal(t, KindObject, meta.Kind)
	assert.Equal(t, "T", meta.Object["title"].StringValue())
	assert.Equal(t, "A", meta.Object["author"].StringValue())
}

func TestRunConditionalPropagatesWhenTrueOnMatch(t *testing.T) {
	root := NewDocument(map[string]interface{}{
		"language": "en",
		"english":  "Hello",
		"fallback": "N/A",
	})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "cond",
				Type:    schema.SkillConditional,
				Context: "/document",
				Inputs: []schema.InputMapping{
					{Name: "language", Source: "/document/language"},
					{Name: "whenTrue", Source: "/document/english"},
					{Name: "whenFalse", Source: "/document/fallback"},
				},
				Outputs:     []schema.OutputMapping{{Name: "output", TargetName: "greeting"}},
				Conditional: &schema.ConditionalParams{Condition: "language eq 'en'"},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)
	assert.Equal(t, "Hello", Get(root, "/document/greeting").StringValue())
}

func TestRunConditionalPropagatesWhenFalseOnMismatch(t *testing.T) {
	root := NewDocument(map[string]interface{}{
		"language": "fr",
		"english":  "Hello",
		"fallback": "N/A",
	})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "cond",
				Type:    schema.SkillConditional,
				Context: "/document",
				Inputs: []schema.InputMapping{
					{Name: "language", Source: "/document/language"},
					{Name: "whenTrue", Source: "/document/english"},
					{Name: "whenFalse", Source: "/document/fallback"},
				},
				Outputs:     []schema.OutputMapping{{Name: "output", TargetName: "greeting"}},
				Conditional: &schema.ConditionalParams{Condition: "language eq 'en'"},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)
	assert.Equal(t, "N/A", Get(root, "/document/greeting").StringValue())
}

func TestRunAzureOpenAIEmbeddingProducesVectorOfRequestedDimensions(t *testing.T) {
	root := NewDocument(map[string]interface{}{"content": "hello world"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:             "embed",
				Type:             schema.SkillAzureOpenAIEmbed,
				Context:          "/document",
				Inputs:           []schema.InputMapping{{Name: "text", Source: "/document/content"}},
				Outputs:          []schema.OutputMapping{{Name: "embedding", TargetName: "vector"}},
				AzureOpenAIEmbed: &schema.AzureOpenAIEmbeddingParams{Dimensions: 16},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)

	vec := Get(root, "/document/vector")
	require.Equal(t, KindArray, vec.Kind)
	assert.Len(t, vec.Array, 16)
}

func TestRunAzureOpenAIEmbeddingIsDeterministic(t *testing.T) {
	root1 := NewDocument(map[string]interface{}{"content": "same text"})
	root2 := NewDocument(map[string]interface{}{"content": "same text"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:             "embed",
				Type:             schema.SkillAzureOpenAIEmbed,
				Context:          "/document",
				Inputs:           []schema.InputMapping{{Name: "text", Source: "/document/content"}},
				Outputs:          []schema.OutputMapping{{Name: "embedding", TargetName: "vector"}},
				AzureOpenAIEmbed: &schema.AzureOpenAIEmbeddingParams{Dimensions: 8},
			},
		},
	}
	exec := NewExecutor()
	exec.Run(context.Background(), ss, root1)
	exec.Run(context.Background(), ss, root2)
	assert.Equal(t, Get(root1, "/document/vector").ToGo(), Get(root2, "/document/vector").ToGo())
}

func TestRunWildcardContextExecutesPerBinding(t *testing.T) {
	root := NewDocument(map[string]interface{}{
		"pages": []interface{}{
			map[string]interface{}{"text": "aa"},
			map[string]interface{}{"text": "bbbb"},
		},
	})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{
				Name:    "count",
				Type:    schema.SkillShaper,
				Context: "/document/pages/*",
				Inputs:  []schema.InputMapping{{Name: "text", Source: "/document/pages/*/text"}},
				Outputs: []schema.OutputMapping{{Name: "output", TargetName: "meta"}},
				Shaper:  &schema.ShaperParams{},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	assert.Empty(t, warnings)

	assert.Equal(t, "aa", Get(root, "/document/pages/0/meta").Object["text"].StringValue())
	assert.Equal(t, "bbbb", Get(root, "/document/pages/1/meta").Object["text"].StringValue())
}

func TestRunUnknownSkillTypeProducesWarningNotAbort(t *testing.T) {
	root := NewDocument(map[string]interface{}{"content": "hi"})
	ss := &schema.Skillset{
		Name: "ss",
		Skills: []schema.Skill{
			{Name: "bogus", Type: schema.SkillType("nope"), Context: "/document", Outputs: []schema.OutputMapping{{Name: "x"}}},
			{
				Name:    "shape",
				Type:    schema.SkillShaper,
				Context: "/document",
				Inputs:  []schema.InputMapping{{Name: "content", Source: "/document/content"}},
				Outputs: []schema.OutputMapping{{Name: "output", TargetName: "meta"}},
				Shaper:  &schema.ShaperParams{},
			},
		},
	}
	exec := NewExecutor()
	warnings := exec.Run(context.Background(), ss, root)
	require.Len(t, warnings, 1)
	assert.Equal(t, "hi", Get(root, "/document/meta").Object["content"].StringValue())
}
