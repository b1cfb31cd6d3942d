package enrich

import (
	"fmt"
	"strconv"
	"strings"
)

// splitPath turns "/document/foo/0/bar" into ["document","foo","0","bar"],
// rejecting the empty/rootless path.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "document" {
		return nil, fmt.Errorf("path %q must be rooted at /document", path)
	}
	return parts[1:], nil
}

// Get resolves a concrete (wildcard-free) path against root, returning
// the node found there, or Null() if any segment is missing.
func Get(root *Node, path string) *Node {
	parts, err := splitPath(path)
	if err != nil {
		return Null()
	}
	cur := root
	for _, p := range parts {
		if cur == nil {
			return Null()
		}
		switch cur.Kind {
		case KindObject:
			next, ok := cur.Object[p]
			if !ok {
				return Null()
			}
			cur = next
		case KindArray:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(cur.Array) {
				return Null()
			}
			cur = cur.Array[idx]
		default:
			return Null()
		}
	}
	if cur == nil {
		return Null()
	}
	return cur
}

// Set writes value at a concrete path under root, creating intermediate
// Object nodes as needed. Intermediate array segments must already exist.
func Set(root *Node, path string, value *Node) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("cannot set document root")
	}
	cur := root
	for _, p := range parts[:len(parts)-1] {
		switch cur.Kind {
		case KindObject:
			next, ok := cur.Object[p]
			if !ok || next.Kind == KindNull {
				next = ObjectNode()
				cur.Object[p] = next
			}
			cur = next
		case KindArray:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(cur.Array) {
				return fmt.Errorf("path %q: array index %q out of range", path, p)
			}
			cur = cur.Array[idx]
		default:
			return fmt.Errorf("path %q: cannot descend into a scalar node", path)
		}
	}
	last := parts[len(parts)-1]
	switch cur.Kind {
	case KindObject:
		cur.Object[last] = value
	case KindArray:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(cur.Array) {
			return fmt.Errorf("path %q: array index %q out of range", path, last)
		}
		cur.Array[idx] = value
	default:
		return fmt.Errorf("path %q: cannot write into a scalar node", path)
	}
	return nil
}

// binding is one instantiation of a skill execution: a concrete context
// path, plus the key (object field name or array index string) that
// replaced the context's wildcard, if any.
type binding struct {
	contextPath     string
	wildcardPrefix  string // e.g. "/document/pages" (context's path before "*")
	wildcardKey     string // the concrete key/index substituted for "*"
	hasWildcard     bool
}

// resolveBindings expands a skill's context path into one binding per
// wildcard match. A context with no "*" yields exactly
// one binding. Only a single trailing wildcard segment is supported,
// matching SPEC_FULL's "single-level * wildcard expansion" note.
func resolveBindings(root *Node, context string) ([]binding, error) {
	if context == "" {
		context = "/document"
	}
	if !strings.Contains(context, "*") {
		return []binding{{contextPath: context}}, nil
	}
	parts, err := splitPath(context)
	if err != nil {
		return nil, err
	}
	starIdx := -1
	for i, p := range parts {
		if p == "*" {
			starIdx = i
			break
		}
	}
	if starIdx == -1 {
		return nil, fmt.Errorf("context %q: malformed wildcard", context)
	}
	if strings.Count(context, "*") > 1 {
		return nil, fmt.Errorf("context %q: only one wildcard segment is supported", context)
	}
	prefixParts := parts[:starIdx]
	prefixPath := "/document"
	if len(prefixParts) > 0 {
		prefixPath = "/document/" + strings.Join(prefixParts, "/")
	}
	parent := Get(root, prefixPath)
	var keys []string
	switch parent.Kind {
	case KindObject:
		for k := range parent.Object {
			keys = append(keys, k)
		}
	case KindArray:
		for i := range parent.Array {
			keys = append(keys, strconv.Itoa(i))
		}
	default:
		return nil, nil // nothing to bind against; zero executions
	}
	bindings := make([]binding, 0, len(keys))
	for _, k := range keys {
		bindings = append(bindings, binding{
			contextPath:    prefixPath + "/" + k,
			wildcardPrefix: prefixPath,
			wildcardKey:    k,
			hasWildcard:    true,
		})
	}
	return bindings, nil
}

// resolveInput resolves one input's source path for a given binding: if
// source shares the context's wildcard prefix, "*" is substituted with
// the binding's concrete key; otherwise it resolves from root unchanged.
func resolveInput(root *Node, source string, b binding) *Node {
	if b.hasWildcard {
		candidate := b.wildcardPrefix + "/*"
		if strings.HasPrefix(source, candidate) {
			substituted := b.wildcardPrefix + "/" + b.wildcardKey + strings.TrimPrefix(source, candidate)
			return Get(root, substituted)
		}
	}
	return Get(root, source)
}
