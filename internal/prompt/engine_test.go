package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRawField(t *testing.T) {
	e := NewEngine()

	out, err := e.Render("Write about {{ title }}", map[string]any{"title": "Foo"})
	require.NoError(t, err)
	assert.Equal(t, "Write about Foo", out)
}

func TestRenderComputedWinsOverRaw(t *testing.T) {
	e := NewEngine()
	e.RegisterComputed("title", func(doc map[string]any) (any, bool) {
		return "Computed", true
	})

	out, err := e.Render("{{ title }}", map[string]any{"title": "Raw"})
	require.NoError(t, err)
	assert.Equal(t, "Computed", out)
}

func TestRenderComputedFallsBackToRaw(t *testing.T) {
	e := NewEngine()
	e.RegisterComputed("title", func(doc map[string]any) (any, bool) {
		return nil, false
	})

	out, err := e.Render("{{ title }}", map[string]any{"title": "Raw"})
	require.NoError(t, err)
	assert.Equal(t, "Raw", out)
}

func TestRenderUnknownFieldIsEmpty(t *testing.T) {
	e := NewEngine()

	out, err := e.Render("Before {{ missing }} after", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Before  after", out)
}

func TestRenderNestedAttribute(t *testing.T) {
	e := NewEngine()

	doc := map[string]any{"meta": map[string]any{"description": "hello"}}
	out, err := e.Render("{{ meta.description }}", doc)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRenderSystemFallback(t *testing.T) {
	e := NewEngine()

	out, err := e.RenderSystem("", nil, "You are a helpful editor.")
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful editor.", out)

	out, err = e.RenderSystem("System for {{ title }}", map[string]any{"title": "Foo"}, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "System for Foo", out)
}

func TestRichDocumentHTMLComputed(t *testing.T) {
	e := NewEngine()
	e.RegisterComputed("body", RichDocumentHTML("body"))

	doc := map[string]any{
		"body": map[string]any{
			"type": "root",
			"children": []any{
				map[string]any{
					"type": "paragraph",
					"children": []any{
						map[string]any{"type": "text", "text": "Hello"},
					},
				},
			},
		},
	}
	out, err := e.Render("Context: {{ body }}", doc)
	require.NoError(t, err)
	assert.Equal(t, "Context: <p>Hello</p>", out)
}

func TestRichDocumentHTMLMissingField(t *testing.T) {
	fn := RichDocumentHTML("body")
	_, ok := fn(map[string]any{})
	assert.False(t, ok)

	_, ok = fn(map[string]any{"body": "not a document"})
	assert.False(t, ok)
}
