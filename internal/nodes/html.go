package nodes

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML serializes a rich-document node tree to HTML for inclusion in
// a prompt. Unknown node types render their children transparently so a
// partially pruned document still produces usable context.
func RenderHTML(root map[string]any) string {
	var b strings.Builder
	renderNode(&b, root)
	return b.String()
}

func renderNode(b *strings.Builder, node map[string]any) {
	nodeType, _ := node["type"].(string)
	switch nodeType {
	case RootType:
		renderChildren(b, node)
	case "paragraph":
		b.WriteString("<p>")
		renderChildren(b, node)
		b.WriteString("</p>")
	case "heading":
		tag, _ := node["tag"].(string)
		if tag == "" {
			tag = "h2"
		}
		fmt.Fprintf(b, "<%s>", tag)
		renderChildren(b, node)
		fmt.Fprintf(b, "</%s>", tag)
	case "list":
		tag, _ := node["tag"].(string)
		if tag != "ol" {
			tag = "ul"
		}
		fmt.Fprintf(b, "<%s>", tag)
		renderChildren(b, node)
		fmt.Fprintf(b, "</%s>", tag)
	case "listitem":
		b.WriteString("<li>")
		renderChildren(b, node)
		b.WriteString("</li>")
	case "quote":
		b.WriteString("<blockquote>")
		renderChildren(b, node)
		b.WriteString("</blockquote>")
	case "link":
		url, _ := node["url"].(string)
		fmt.Fprintf(b, `<a href=%q>`, url)
		renderChildren(b, node)
		b.WriteString("</a>")
	case "horizontalrule":
		b.WriteString("<hr>")
	case TextType:
		text, _ := node["text"].(string)
		escaped := html.EscapeString(text)
		if isBold(node) {
			escaped = "<strong>" + escaped + "</strong>"
		}
		if isItalic(node) {
			escaped = "<em>" + escaped + "</em>"
		}
		b.WriteString(escaped)
	default:
		renderChildren(b, node)
	}
}

func renderChildren(b *strings.Builder, node map[string]any) {
	children, _ := node["children"].([]any)
	for _, raw := range children {
		if child, ok := raw.(map[string]any); ok {
			renderNode(b, child)
		}
	}
}

// Lexical-style format bitmask: 1 = bold, 2 = italic.
const (
	formatBold   = 1
	formatItalic = 2
)

func isBold(node map[string]any) bool   { return formatBit(node, formatBold) }
func isItalic(node map[string]any) bool { return formatBit(node, formatItalic) }

func formatBit(node map[string]any, bit int) bool {
	switch v := node["format"].(type) {
	case float64:
		return int(v)&bit != 0
	case int:
		return v&bit != 0
	}
	return false
}
