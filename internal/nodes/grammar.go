// Package nodes describes the recursive grammar of rich-document trees:
// which node types may nest inside which others, what attributes they
// require, and how a candidate document is validated against a pruned
// subset of the grammar.
package nodes

import (
	"fmt"
	"sort"
)

// RootType is the node type every document starts with. It survives any
// pruning.
const RootType = "root"

// TextType is the core text-bearing node type. It is retained whenever any
// retained container still references it.
const TextType = "text"

// Definition declares one node type: its allowed children (by reference,
// not by value), attributes it requires beyond "type", and enumerated
// attribute values where the grammar constrains them.
type Definition struct {
	Children []string            `json:"children,omitempty" yaml:"children,omitempty"`
	Required []string            `json:"required,omitempty" yaml:"required,omitempty"`
	Enums    map[string][]string `json:"enums,omitempty" yaml:"enums,omitempty"`
	HasText  bool                `json:"hasText,omitempty" yaml:"hasText,omitempty"`
}

// Grammar maps node-type names to their definitions.
type Grammar map[string]Definition

// DefaultGrammar returns the built-in node grammar. Callers may add custom
// kinds before building a schema from it.
func DefaultGrammar() Grammar {
	return Grammar{
		RootType: {
			Children: []string{"paragraph", "heading", "list", "quote", "horizontalrule"},
		},
		"paragraph": {
			Children: []string{TextType, "link"},
		},
		TextType: {
			HasText: true,
		},
		"link": {
			Children: []string{TextType},
			Required: []string{"url"},
		},
		"heading": {
			Children: []string{TextType, "link"},
			Required: []string{"tag"},
			Enums:    map[string][]string{"tag": {"h1", "h2", "h3", "h4"}},
		},
		"list": {
			Children: []string{"listitem"},
			Required: []string{"listType", "tag"},
			Enums: map[string][]string{
				"listType": {"bullet", "number", "check"},
				"tag":      {"ul", "ol"},
			},
		},
		"listitem": {
			Children: []string{TextType, "link", "list"},
		},
		"quote": {
			Children: []string{TextType, "link"},
		},
		"horizontalrule": {},
	}
}

// Types returns the node-type names in sorted order.
func (g Grammar) Types() []string {
	out := make([]string, 0, len(g))
	for name := range g {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Prune narrows the grammar to an allow-list of node types.
//
// The root and the core text type are always candidates; every other type
// must be explicitly allowed and reachable from the root through a chain
// of retained containers. Children references are rewritten afterwards so
// nothing dangles: narrowing must happen after the retained set is known,
// because children lists refer to definitions by name.
func (g Grammar) Prune(allowed []string) Grammar {
	candidate := map[string]bool{RootType: true, TextType: true}
	for _, t := range allowed {
		candidate[t] = true
	}

	// Pass one: collect types reachable from the root through candidates.
	retained := map[string]bool{}
	queue := []string{RootType}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if retained[name] {
			continue
		}
		def, ok := g[name]
		if !ok {
			continue
		}
		retained[name] = true
		for _, child := range def.Children {
			if candidate[child] && !retained[child] {
				queue = append(queue, child)
			}
		}
	}

	// Pass two: copy retained definitions and narrow their child references
	// to the retained set; drop the children list entirely when empty.
	out := make(Grammar, len(retained))
	for name := range retained {
		def := g[name]
		cp := Definition{HasText: def.HasText}
		cp.Required = append([]string(nil), def.Required...)
		if def.Enums != nil {
			cp.Enums = make(map[string][]string, len(def.Enums))
			for k, v := range def.Enums {
				cp.Enums[k] = append([]string(nil), v...)
			}
		}
		for _, child := range def.Children {
			if retained[child] {
				cp.Children = append(cp.Children, child)
			}
		}
		out[name] = cp
	}
	return out
}

// Validate sanity-checks a grammar: the root must exist and every child
// reference must resolve to a definition.
func (g Grammar) Validate() error {
	if _, ok := g[RootType]; !ok {
		return fmt.Errorf("grammar has no %q type", RootType)
	}
	for name, def := range g {
		for _, child := range def.Children {
			if _, ok := g[child]; !ok {
				return fmt.Errorf("type %q references unknown child type %q", name, child)
			}
		}
	}
	return nil
}
