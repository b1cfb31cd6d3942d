package enrich

import (
	"context"
	"fmt"
	"net/http"

	"github.com/searchemu/searchemu/internal/schema"
)

// Executor runs a Skillset's skills in declaration order against an
// EnrichedDocument.
type Executor struct {
	client *http.Client
}

func NewExecutor() *Executor {
	return &Executor{client: &http.Client{}}
}

// NewDocument seeds an EnrichedDocument with a source object's cracked
// fields.
func NewDocument(fields map[string]interface{}) *Node {
	root := FromGo(fields)
	if root.Kind != KindObject {
		root = ObjectNode()
	}
	return root
}

// Run executes every skill in order, returning the accumulated warnings.
// A skill's own failure never aborts the pipeline: it is
// recorded as a warning and the next skill still runs.
func (e *Executor) Run(ctx context.Context, skillset *schema.Skillset, root *Node) []string {
	if skillset == nil {
		return nil
	}
	var warnings []string
	for i := range skillset.Skills {
		skill := &skillset.Skills[i]
		skillWarnings := e.runSkill(ctx, skill, root)
		warnings = append(warnings, skillWarnings...)
	}
	return warnings
}

func (e *Executor) runSkill(ctx context.Context, skill *schema.Skill, root *Node) []string {
	skillContext := skill.Context
	if skillContext == "" {
		skillContext = "/document"
	}
	bindings, err := resolveBindings(root, skillContext)
	if err != nil {
		return []string{fmt.Sprintf("skill %q: %v", skill.Name, err)}
	}

	if skill.Type == schema.SkillCustomWebAPI {
		return e.runCustomWebAPIBindings(ctx, skill, root, bindings)
	}

	var warnings []string
	for _, b := range bindings {
		inputs := resolveInputsFor(root, skill.Inputs, b)
		outputs, warn, err := e.dispatchSimple(skill, inputs)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skill %q: %v", skill.Name, err))
			continue
		}
		warnings = append(warnings, warn...)
		writeOutputs(root, skill.Outputs, b.contextPath, outputs, &warnings)
	}
	return warnings
}

func resolveInputsFor(root *Node, mappings []schema.InputMapping, b binding) map[string]*Node {
	inputs := make(map[string]*Node, len(mappings))
	for _, im := range mappings {
		inputs[im.Name] = resolveInput(root, im.Source, b)
	}
	return inputs
}

func writeOutputs(root *Node, mappings []schema.OutputMapping, contextPath string, outputs map[string]*Node, warnings *[]string) {
	for _, om := range mappings {
		val, ok := outputs[om.Name]
		if !ok {
			continue
		}
		target := om.TargetName
		if target == "" {
			target = om.Name
		}
		if err := Set(root, contextPath+"/"+target, val); err != nil {
			*warnings = append(*warnings, err.Error())
		}
	}
}

// dispatchSimple handles every skill type except custom-web-API, which
// batches across bindings instead of running one binding at a time.
func (e *Executor) dispatchSimple(skill *schema.Skill, inputs map[string]*Node) (map[string]*Node, []string, error) {
	switch skill.Type {
	case schema.SkillTextSplit:
		text := inputs["text"].StringValue()
		mode := ""
		var maxLen, overlap int
		if skill.TextSplit != nil {
			mode = skill.TextSplit.TextSplitMode
			maxLen = skill.TextSplit.MaximumPageLength
			overlap = skill.TextSplit.PageOverlapLength
		}
		pages := textSplit(mode, maxLen, overlap, text)
		items := make([]*Node, len(pages))
		for i, p := range pages {
			items[i] = StringNode(p)
		}
		return map[string]*Node{"textItems": {Kind: KindArray, Array: items}}, nil, nil

	case schema.SkillTextMerge:
		text := inputs["text"].StringValue()
		var items []*Node
		if n, ok := inputs["itemsToInsert"]; ok && n.Kind == KindArray {
			items = n.Array
		}
		preTag := inputs["insertPreTag"].StringValue()
		postTag := inputs["insertPostTag"].StringValue()
		merged := textMerge(text, items, preTag, postTag)
		return map[string]*Node{"mergedText": StringNode(merged)}, nil, nil

	case schema.SkillShaper:
		return map[string]*Node{"output": shaperOutput(inputs)}, nil, nil

	case schema.SkillConditional:
		condition := ""
		if skill.Conditional != nil {
			condition = skill.Conditional.Condition
		}
		ok, err := evalCondition(condition, inputs)
		if err != nil {
			return nil, []string{fmt.Sprintf("skill %q: condition: %v", skill.Name, err)}, nil
		}
		if ok {
			return map[string]*Node{"output": inputs["whenTrue"]}, nil, nil
		}
		return map[string]*Node{"output": inputs["whenFalse"]}, nil, nil

	case schema.SkillAzureOpenAIEmbed:
		dims := 0
		if skill.AzureOpenAIEmbed != nil {
			dims = skill.AzureOpenAIEmbed.Dimensions
		}
		text := inputs["text"].StringValue()
		vec := hashEmbed(text, dims)
		items := make([]*Node, len(vec))
		for i, f := range vec {
			items[i] = NumberNode(float64(f))
		}
		return map[string]*Node{"embedding": {Kind: KindArray, Array: items}}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown skill type %q", skill.Type)
	}
}

// runCustomWebAPIBindings batches every binding of a custom-web-API skill
// into one concurrent round of HTTP calls, then writes each binding's correlated response
// back to its own context path.
func (e *Executor) runCustomWebAPIBindings(ctx context.Context, skill *schema.Skill, root *Node, bindings []binding) []string {
	if skill.CustomWebAPI == nil {
		return []string{fmt.Sprintf("skill %q: missing customWebApi params", skill.Name)}
	}
	records := make([]webAPIRecord, len(bindings))
	recordBinding := make(map[string]binding, len(bindings))
	for i, b := range bindings {
		inputs := resolveInputsFor(root, skill.Inputs, b)
		data := make(map[string]interface{}, len(inputs))
		for name, n := range inputs {
			data[name] = n.ToGo()
		}
		id := newRecordID()
		records[i] = webAPIRecord{RecordID: id, Data: data}
		recordBinding[id] = b
	}

	results, warnings := e.callCustomWebAPI(ctx, skill.CustomWebAPI, records)
	for id, data := range results {
		b := recordBinding[id]
		outputs := make(map[string]*Node, len(data))
		for k, v := range data {
			outputs[k] = FromGo(v)
		}
		writeOutputs(root, skill.Outputs, b.contextPath, outputs, &warnings)
	}
	return warnings
}
