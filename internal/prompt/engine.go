// Package prompt renders instruction templates against document data using
// Twig-style templates.
package prompt

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tyler-sommer/stick"

	"draftsmith/internal/document"
	"draftsmith/internal/nodes"
)

// ComputedFunc derives a template variable from the raw document. The second
// return value reports whether the field could be computed.
type ComputedFunc func(doc map[string]any) (any, bool)

// Engine renders instruction templates. Variable lookup is two-tier: a
// computed field with the referenced name wins, otherwise the raw document
// value is used. Unresolved references render empty and are logged, never
// failed, so a stale template degrades instead of blocking generation.
type Engine struct {
	env      *stick.Env
	computed map[string]ComputedFunc
}

// NewEngine creates a template engine with no computed fields registered.
func NewEngine() *Engine {
	return &Engine{
		env:      stick.New(nil),
		computed: make(map[string]ComputedFunc),
	}
}

// RegisterComputed binds a derived template variable. Registering the same
// name twice replaces the previous function.
func (e *Engine) RegisterComputed(name string, fn ComputedFunc) {
	e.computed[name] = fn
}

// varRef matches top-level variable references in a template. Attribute
// chains like {{ meta.title }} resolve through the root name.
var varRef = regexp.MustCompile(`\{\{-?\s*([a-zA-Z_][a-zA-Z0-9_]*)`)

// Render executes a template against the document.
func (e *Engine) Render(template string, doc map[string]any) (string, error) {
	ctx := make(map[string]stick.Value)

	for _, match := range varRef.FindAllStringSubmatch(template, -1) {
		name := match[1]
		if _, done := ctx[name]; done {
			continue
		}
		if fn, ok := e.computed[name]; ok {
			if v, ok := fn(doc); ok {
				ctx[name] = v
				continue
			}
		}
		if v, ok := doc[name]; ok {
			ctx[name] = v
			continue
		}
		slog.Warn("template field unresolved, rendering empty", "field", name)
		ctx[name] = ""
	}

	var out strings.Builder
	if err := e.env.Execute(template, &out, ctx); err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return out.String(), nil
}

// RenderSystem renders a system prompt template, or returns the fallback
// when the template is empty.
func (e *Engine) RenderSystem(template string, doc map[string]any, fallback string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return fallback, nil
	}
	return e.Render(template, doc)
}

// RichDocumentHTML returns a computed field that serializes the structured
// document stored at livePath to HTML, so templates can embed rich text
// fields as readable markup.
func RichDocumentHTML(livePath string) ComputedFunc {
	return func(doc map[string]any) (any, bool) {
		v, ok := document.Get(doc, livePath)
		if !ok {
			return nil, false
		}
		root, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		return nodes.RenderHTML(root), true
	}
}
