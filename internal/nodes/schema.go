package nodes

import (
	"fmt"
	"strings"
)

// Violation describes one way a candidate document diverges from the
// schema. Path addresses the offending node, Attribute names the missing
// or invalid property when one is involved.
type Violation struct {
	Path      string `json:"path"`
	Attribute string `json:"attribute,omitempty"`
	Message   string `json:"message"`
}

func (v Violation) String() string {
	if v.Attribute != "" {
		return fmt.Sprintf("%s: attribute %q: %s", v.Path, v.Attribute, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// ValidationError carries the full violation list as an error value.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return "node schema validation failed: " + strings.Join(msgs, "; ")
}

// Schema is a compiled, validatable grammar. Build resolves each
// definition's effective required list once so validation does not have to
// reason about externally-authored required entries per node.
type Schema struct {
	grammar  Grammar
	required map[string][]string
}

// Build compiles a grammar into a validatable schema.
func Build(g Grammar) (*Schema, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	s := &Schema{
		grammar:  g,
		required: make(map[string][]string, len(g)),
	}
	for name, def := range g {
		s.required[name] = effectiveRequired(def)
	}
	return s, nil
}

// effectiveRequired intersects a definition's declared required list with
// the attributes the definition actually has: "type" is always required,
// "children" only when the definition declares children, "text" only when
// it carries a text attribute. Externally-authored grammars routinely list
// "children" on leaf types; dropping those here prevents spurious
// validation failures.
func effectiveRequired(def Definition) []string {
	req := []string{"type"}
	if len(def.Children) > 0 {
		req = append(req, "children")
	}
	if def.HasText {
		req = append(req, "text")
	}
	for _, r := range def.Required {
		switch r {
		case "type", "children", "text":
			// Covered above, and only when the definition has the attribute.
		default:
			req = append(req, r)
		}
	}
	return req
}

// Grammar returns the underlying grammar.
func (s *Schema) Grammar() Grammar { return s.grammar }

// Required returns the compiled required list for a node type.
func (s *Schema) Required(nodeType string) []string { return s.required[nodeType] }

// Prune narrows the schema to an allow-list of node types and recompiles.
func (s *Schema) Prune(allowed []string) *Schema {
	pruned, _ := Build(s.grammar.Prune(allowed))
	return pruned
}

// Validate checks a candidate root node against the schema and returns the
// list of violations, empty when the document conforms.
func (s *Schema) Validate(root map[string]any) []Violation {
	var out []Violation
	s.validateNode(root, RootType, "", "root", &out)
	return out
}

// ValidateErr is Validate shaped as an error for dispatcher boundaries.
func (s *Schema) ValidateErr(root map[string]any) error {
	if vs := s.Validate(root); len(vs) > 0 {
		return &ValidationError{Violations: vs}
	}
	return nil
}

func (s *Schema) validateNode(node map[string]any, parentType, parentPath, pos string, out *[]Violation) {
	path := pos
	if parentPath != "" {
		path = parentPath + "." + pos
	}

	rawType, ok := node["type"]
	if !ok {
		*out = append(*out, Violation{Path: path, Attribute: "type", Message: "missing"})
		return
	}
	nodeType, ok := rawType.(string)
	if !ok || nodeType == "" {
		*out = append(*out, Violation{Path: path, Attribute: "type", Message: "must be a non-empty string"})
		return
	}

	def, ok := s.grammar[nodeType]
	if !ok {
		*out = append(*out, Violation{Path: path, Attribute: "type", Message: fmt.Sprintf("unknown node type %q", nodeType)})
		return
	}

	if pos != "root" {
		parentDef := s.grammar[parentType]
		if !contains(parentDef.Children, nodeType) {
			*out = append(*out, Violation{Path: path, Attribute: "type",
				Message: fmt.Sprintf("node type %q not allowed inside %q", nodeType, parentType)})
			return
		}
	} else if nodeType != RootType {
		*out = append(*out, Violation{Path: path, Attribute: "type",
			Message: fmt.Sprintf("document root must be %q, got %q", RootType, nodeType)})
		return
	}

	for _, attr := range s.required[nodeType] {
		if attr == "type" {
			continue
		}
		if _, present := node[attr]; !present {
			*out = append(*out, Violation{Path: path, Attribute: attr, Message: "missing"})
		}
	}

	for attr, allowed := range def.Enums {
		raw, present := node[attr]
		if !present {
			continue
		}
		val, isStr := raw.(string)
		if !isStr || !contains(allowed, val) {
			*out = append(*out, Violation{Path: path, Attribute: attr,
				Message: fmt.Sprintf("must be one of %v", allowed)})
		}
	}

	if def.HasText {
		if raw, present := node["text"]; present {
			if _, isStr := raw.(string); !isStr {
				*out = append(*out, Violation{Path: path, Attribute: "text", Message: "must be a string"})
			}
		}
	}

	rawChildren, present := node["children"]
	if !present {
		return
	}
	children, ok := rawChildren.([]any)
	if !ok {
		*out = append(*out, Violation{Path: path, Attribute: "children", Message: "must be an array"})
		return
	}
	if len(def.Children) == 0 && len(children) > 0 {
		*out = append(*out, Violation{Path: path, Attribute: "children",
			Message: fmt.Sprintf("node type %q allows no children", nodeType)})
		return
	}
	for i, rawChild := range children {
		childPos := fmt.Sprintf("children[%d]", i)
		child, ok := rawChild.(map[string]any)
		if !ok {
			*out = append(*out, Violation{Path: path + "." + childPos, Message: "child must be an object"})
			continue
		}
		s.validateNode(child, nodeType, path, childPos, out)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
