package enrich

import (
	"strings"

	"github.com/searchemu/searchemu/internal/queryengine"
)

// textSplit implements the text-split skill: split text
// into pages or sentences with maximumPageLength and pageOverlapLength.
func textSplit(mode string, maxLen, overlap int, text string) []string {
	if maxLen <= 0 {
		maxLen = 5000
	}
	if overlap < 0 || overlap >= maxLen {
		overlap = 0
	}
	if mode == "sentences" {
		return splitSentences(text)
	}
	return splitPages(text, maxLen, overlap)
}

func splitPages(text string, maxLen, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var pages []string
	step := maxLen - overlap
	if step <= 0 {
		step = maxLen
	}
	for start := 0; start < len(runes); start += step {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		pages = append(pages, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return pages
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(cur.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// textMerge implements the text-merge skill: concatenate text plus an
// itemsToInsert array, wrapping each inserted item in the optional
// pre/post tags.
func textMerge(text string, itemsToInsert []*Node, preTag, postTag string) string {
	var b strings.Builder
	b.WriteString(text)
	for _, item := range itemsToInsert {
		b.WriteString(preTag)
		b.WriteString(item.StringValue())
		b.WriteString(postTag)
	}
	return b.String()
}

// shaperOutput implements the shaper skill: republish all resolved
// inputs as a structured object.
func shaperOutput(inputs map[string]*Node) *Node {
	obj := ObjectNode()
	for name, n := range inputs {
		obj.Object[name] = n
	}
	return obj
}

// evalCondition implements the conditional skill's boolean expression,
// reusing the filter grammar's parser/evaluator.
func evalCondition(condition string, inputs map[string]*Node) (bool, error) {
	expr, err := queryengine.ParseFilter(condition)
	if err != nil {
		return false, err
	}
	flat := make(map[string]interface{}, len(inputs))
	for name, n := range inputs {
		flat[name] = n.ToGo()
	}
	return expr.Eval(flat), nil
}
