// Package schema resolves a nested field schema into stable, index-free
// path identifiers used to key generation instructions.
package schema

// FieldType identifies the kind of a field in a document schema.
type FieldType string

const (
	TypeText         FieldType = "text"
	TypeTextarea     FieldType = "textarea"
	TypeRichDocument FieldType = "richDocument"
	TypeUpload       FieldType = "upload"
	TypeArray        FieldType = "array"
	TypeGroup        FieldType = "group"
	TypeBlocks       FieldType = "blocks"
	TypeTabs         FieldType = "tabs"
	TypeRelationship FieldType = "relationship"
)

// leafTypes are the field types that terminate a schema walk and can carry
// generation instructions.
var leafTypes = map[FieldType]bool{
	TypeText:         true,
	TypeTextarea:     true,
	TypeRichDocument: true,
	TypeUpload:       true,
}

// Field is one node of a nested document schema.
//
// Exactly one of Fields, Blocks or Tabs is populated for container types;
// leaf types carry none of them.
type Field struct {
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type       FieldType `json:"type" yaml:"type"`
	Label      string    `json:"label,omitempty" yaml:"label,omitempty"`
	RelationTo string    `json:"relationTo,omitempty" yaml:"relationTo,omitempty"`
	Fields     []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Blocks     []Block   `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Tabs       []Tab     `json:"tabs,omitempty" yaml:"tabs,omitempty"`
}

// Block is one variant of a tagged-block container, discriminated by Slug.
type Block struct {
	Slug   string  `json:"slug" yaml:"slug"`
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Tab is a presentational grouping. Tabs never contribute a path segment;
// their children sit at the same depth as siblings outside the tab.
type Tab struct {
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// PathEntry describes one leaf field reachable in a schema tree.
type PathEntry struct {
	Path           string    `json:"path"`
	FieldType      FieldType `json:"fieldType"`
	Label          string    `json:"label"`
	RelationTarget string    `json:"relationTarget,omitempty"`
}

// IsLeaf reports whether t terminates a schema walk.
func IsLeaf(t FieldType) bool { return leafTypes[t] }

// Flatten walks the field tree depth-first and returns one PathEntry per
// leaf field. Groups and arrays contribute their name as a path segment
// (arrays symbolically, without an index placeholder), tagged blocks
// contribute their discriminator slug, tabs contribute nothing.
func Flatten(fields []Field) []PathEntry {
	var out []PathEntry
	walk(fields, "", &out)
	return out
}

func walk(fields []Field, parent string, out *[]PathEntry) {
	for _, f := range fields {
		switch {
		case IsLeaf(f.Type):
			*out = append(*out, PathEntry{
				Path:           joinPath(parent, f.Name),
				FieldType:      f.Type,
				Label:          fieldLabel(f),
				RelationTarget: f.RelationTo,
			})
		case f.Type == TypeGroup || f.Type == TypeArray:
			walk(f.Fields, joinPath(parent, f.Name), out)
		case f.Type == TypeBlocks:
			base := joinPath(parent, f.Name)
			for _, b := range f.Blocks {
				walk(b.Fields, joinPath(base, b.Slug), out)
			}
		case f.Type == TypeTabs:
			for _, t := range f.Tabs {
				walk(t.Fields, parent, out)
			}
		}
		// Unknown container types carry no generatable leaves.
	}
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func fieldLabel(f Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
