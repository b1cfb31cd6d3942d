package queryengine

import "strings"

// bleveMarkPre/Post are the fixed tags bleve's built-in HTML fragment
// formatter wraps matches in. There is no request-level hook to pass
// custom tags straight through to bleve's highlighter, so custom pre/post
// tags are applied as a post-processing substitution over
// bleve's own computed fragments — the fragment boundaries and term
// selection are still entirely bleve's, only the wrapping tag text
// changes.
const (
	bleveMarkPre  = "<mark>"
	bleveMarkPost = "</mark>"
)

// applyHighlightTags rewrites bleve's default <mark>...</mark> wrapping
// in each fragment to the caller's requested pre/post tags.
func applyHighlightTags(fragments map[string][]string, preTag, postTag string) map[string][]string {
	if preTag == "" && postTag == "" {
		return fragments
	}
	out := make(map[string][]string, len(fragments))
	for field, frags := range fragments {
		rewritten := make([]string, len(frags))
		for i, frag := range frags {
			r := strings.ReplaceAll(frag, bleveMarkPre, preTag)
			r = strings.ReplaceAll(r, bleveMarkPost, postTag)
			rewritten[i] = r
		}
		out[field] = rewritten
	}
	return out
}
