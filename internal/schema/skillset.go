package schema

import "fmt"

// SkillType is the discriminator of the Skill tagged union.
type SkillType string

const (
	SkillTextSplit       SkillType = "text.split"
	SkillTextMerge       SkillType = "text.merge"
	SkillShaper          SkillType = "shaper"
	SkillConditional     SkillType = "conditional"
	SkillCustomWebAPI    SkillType = "custom.webapi"
	SkillAzureOpenAIEmbed SkillType = "azure.openai.embedding"
)

// InputMapping binds a skill's named input to a source path, which may be
// a /document/... path or another skill's /document/<context>/<output>
// path.
type InputMapping struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// OutputMapping names a skill output and the path it is published under.
type OutputMapping struct {
	Name       string `json:"name"`
	TargetName string `json:"targetName"`
}

// TextSplitParams configures SkillTextSplit.
type TextSplitParams struct {
	TextSplitMode string `json:"textSplitMode,omitempty"` // "pages" | "sentences"
	MaximumPageLength int `json:"maximumPageLength,omitempty"`
	PageOverlapLength int `json:"pageOverlapLength,omitempty"`
}

// ShaperParams is opaque to the engine: the shaper skill simply republishes
// its resolved inputs under output names, so no extra parameters are
// needed beyond the generic input/output mappings.
type ShaperParams struct{}

// ConditionalParams configures SkillConditional: `condition` is a boolean
// expression over resolved inputs (reusing the filter-grammar evaluator),
// and whenTrue/whenFalse select which resolved value becomes the output.
type ConditionalParams struct {
	Condition string `json:"condition"`
}

// CustomWebAPIParams configures SkillCustomWebAPI.
type CustomWebAPIParams struct {
	URI                  string            `json:"uri"`
	HTTPHeaders          map[string]string `json:"httpHeaders,omitempty"`
	HTTPMethod           string            `json:"httpMethod,omitempty"`
	Timeout              string            `json:"timeout,omitempty"`
	BatchSize            int               `json:"batchSize,omitempty"`
	DegreeOfParallelism  int               `json:"degreeOfParallelism,omitempty"`
}

// AzureOpenAIEmbeddingParams configures SkillAzureOpenAIEmbed. No live
// Azure OpenAI call is made locally; the implementation deterministically
// hashes input text into a vector of the requested dimensionality so the
// rest of the enrichment/indexing pipeline can be exercised end to end.
type AzureOpenAIEmbeddingParams struct {
	Dimensions int `json:"dimensions"`
}

// Skill is the tagged-union envelope: exactly one of the Params fields
// matching Type should be populated. JSON (de)serialization uses the
// default encoding/json handling of these fields: each Params struct sits
// under its own key (textSplit, shaper, conditional, ...).
type Skill struct {
	Name    string          `json:"name"`
	Type    SkillType       `json:"type"`
	Context string          `json:"context,omitempty"` // default "/document"
	Inputs  []InputMapping  `json:"inputs,omitempty"`
	Outputs []OutputMapping `json:"outputs,omitempty"`

	TextSplit       *TextSplitParams            `json:"textSplit,omitempty"`
	Shaper          *ShaperParams               `json:"shaper,omitempty"`
	Conditional     *ConditionalParams          `json:"conditional,omitempty"`
	CustomWebAPI    *CustomWebAPIParams         `json:"customWebApi,omitempty"`
	AzureOpenAIEmbed *AzureOpenAIEmbeddingParams `json:"azureOpenAIEmbedding,omitempty"`
}

func (s *Skill) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("skill must have a name")
	}
	switch s.Type {
	case SkillTextSplit:
		if s.TextSplit == nil {
			return fmt.Errorf("skill %q missing textSplit params", s.Name)
		}
	case SkillTextMerge:
		// no required params
	case SkillShaper:
		// no required params
	case SkillConditional:
		if s.Conditional == nil || s.Conditional.Condition == "" {
			return fmt.Errorf("skill %q missing conditional.condition", s.Name)
		}
	case SkillCustomWebAPI:
		if s.CustomWebAPI == nil || s.CustomWebAPI.URI == "" {
			return fmt.Errorf("skill %q missing customWebApi.uri", s.Name)
		}
	case SkillAzureOpenAIEmbed:
		if s.AzureOpenAIEmbed == nil || s.AzureOpenAIEmbed.Dimensions <= 0 {
			return fmt.Errorf("skill %q missing azureOpenAIEmbedding.dimensions", s.Name)
		}
	default:
		return fmt.Errorf("skill %q has unknown type %q", s.Name, s.Type)
	}
	if len(s.Outputs) == 0 {
		return fmt.Errorf("skill %q must declare at least one output", s.Name)
	}
	return nil
}

// Skillset is an ordered pipeline of skills applied to each cracked
// document.
type Skillset struct {
	Name   string  `json:"name"`
	Skills []Skill `json:"skills"`
}

func (ss *Skillset) Validate() error {
	if !ValidName(ss.Name) {
		return fmt.Errorf("invalid skillset name %q", ss.Name)
	}
	if len(ss.Skills) == 0 {
		return fmt.Errorf("skillset %q must declare at least one skill", ss.Name)
	}
	seen := make(map[string]bool)
	for i := range ss.Skills {
		sk := &ss.Skills[i]
		if seen[sk.Name] {
			return fmt.Errorf("duplicate skill name %q in skillset %q", sk.Name, ss.Name)
		}
		seen[sk.Name] = true
		if err := sk.Validate(); err != nil {
			return fmt.Errorf("skillset %q: %w", ss.Name, err)
		}
	}
	return nil
}
