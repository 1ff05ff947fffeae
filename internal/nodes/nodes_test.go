package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGrammarIsValid(t *testing.T) {
	require.NoError(t, DefaultGrammar().Validate())
}

func TestPruneNeverDangles(t *testing.T) {
	allowLists := [][]string{
		nil,
		{"paragraph"},
		{"paragraph", "heading"},
		{"list", "listitem"},
		{"listitem"}, // unreachable without list
		{"paragraph", "heading", "list", "listitem", "quote", "link", "horizontalrule"},
	}
	g := DefaultGrammar()
	for _, allowed := range allowLists {
		pruned := g.Prune(allowed)
		for name, def := range pruned {
			for _, child := range def.Children {
				_, ok := pruned[child]
				assert.True(t, ok, "allow %v: type %q references pruned child %q", allowed, name, child)
			}
		}
	}
}

func TestPruneRetainsRoot(t *testing.T) {
	pruned := DefaultGrammar().Prune(nil)
	_, ok := pruned[RootType]
	assert.True(t, ok)
}

func TestPruneDropsUnreachable(t *testing.T) {
	// listitem is only reachable through list; allowing it alone prunes it.
	pruned := DefaultGrammar().Prune([]string{"listitem"})
	_, ok := pruned["listitem"]
	assert.False(t, ok)
}

func TestPruneRemovesEmptyChildren(t *testing.T) {
	pruned := DefaultGrammar().Prune(nil)
	root := pruned[RootType]
	assert.Empty(t, root.Children)

	s, err := Build(pruned)
	require.NoError(t, err)
	assert.NotContains(t, s.Required(RootType), "children")
}

func TestEffectiveRequiredFiltersUndeclaredAttributes(t *testing.T) {
	g := Grammar{
		RootType: {Children: []string{"divider"}},
		// Externally-authored definitions often list attributes the type
		// does not actually carry.
		"divider": {Required: []string{"children", "text", "style"}},
	}
	s, err := Build(g)
	require.NoError(t, err)

	req := s.Required("divider")
	assert.NotContains(t, req, "children")
	assert.NotContains(t, req, "text")
	assert.Contains(t, req, "type")
	assert.Contains(t, req, "style")
}

func TestValidateAcceptsConformingDocument(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{
				"type": "heading",
				"tag":  "h2",
				"children": []any{
					map[string]any{"type": "text", "text": "Title"},
				},
			},
			map[string]any{
				"type": "paragraph",
				"children": []any{
					map[string]any{"type": "text", "text": "Body", "format": float64(1)},
				},
			},
		},
	}
	assert.Empty(t, s.Validate(doc))
	assert.NoError(t, s.ValidateErr(doc))
}

func TestValidateRejectsUnknownNodeType(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "customEmbed", "children": []any{}},
		},
	}
	violations := s.Validate(doc)
	require.Len(t, violations, 1)
	assert.Equal(t, "root.children[0]", violations[0].Path)
	assert.Equal(t, "type", violations[0].Attribute)
	assert.Contains(t, violations[0].Message, "customEmbed")
}

func TestValidateRejectsDisallowedNesting(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{
				"type": "paragraph",
				"children": []any{
					// paragraphs cannot nest inside paragraphs
					map[string]any{"type": "paragraph", "children": []any{}},
				},
			},
		},
	}
	violations := s.Validate(doc)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0].Message, "not allowed inside")
}

func TestValidateReportsMissingRequiredAttribute(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{
				"type":     "heading",
				"children": []any{},
			},
		},
	}
	violations := s.Validate(doc)
	require.Len(t, violations, 1)
	assert.Equal(t, "tag", violations[0].Attribute)
	assert.Equal(t, "root.children[0]", violations[0].Path)
}

func TestValidateEnumAttribute(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "heading", "tag": "h6", "children": []any{}},
		},
	}
	violations := s.Validate(doc)
	require.Len(t, violations, 1)
	assert.Equal(t, "tag", violations[0].Attribute)
}

func TestValidateAgainstPrunedSchema(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)
	pruned := s.Prune([]string{"paragraph"})

	ok := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "paragraph", "children": []any{
				map[string]any{"type": "text", "text": "hi"},
			}},
		},
	}
	assert.Empty(t, pruned.Validate(ok))

	rejected := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "heading", "tag": "h2", "children": []any{}},
		},
	}
	assert.NotEmpty(t, pruned.Validate(rejected))
}

func TestJSONSchemaShape(t *testing.T) {
	s, err := Build(DefaultGrammar())
	require.NoError(t, err)

	js := s.JSONSchema()
	assert.Equal(t, "#/$defs/root", js["$ref"])

	defs, ok := js["$defs"].(map[string]any)
	require.True(t, ok)
	for _, name := range DefaultGrammar().Types() {
		assert.Contains(t, defs, name)
	}

	heading := defs["heading"].(map[string]any)
	props := heading["properties"].(map[string]any)
	assert.Contains(t, props, "tag")
	assert.Contains(t, props, "children")
}

func TestRenderHTML(t *testing.T) {
	doc := map[string]any{
		"type": "root",
		"children": []any{
			map[string]any{"type": "heading", "tag": "h2", "children": []any{
				map[string]any{"type": "text", "text": "Hello <World>"},
			}},
			map[string]any{"type": "paragraph", "children": []any{
				map[string]any{"type": "text", "text": "bold", "format": float64(1)},
				map[string]any{"type": "link", "url": "https://example.com", "children": []any{
					map[string]any{"type": "text", "text": "link"},
				}},
			}},
			map[string]any{"type": "list", "listType": "bullet", "tag": "ul", "children": []any{
				map[string]any{"type": "listitem", "children": []any{
					map[string]any{"type": "text", "text": "item"},
				}},
			}},
			map[string]any{"type": "horizontalrule"},
		},
	}
	got := RenderHTML(doc)
	assert.Equal(t,
		`<h2>Hello &lt;World&gt;</h2><p><strong>bold</strong><a href="https://example.com">link</a></p><ul><li>item</li></ul><hr>`,
		got)
}
