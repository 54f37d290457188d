package article

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FromMarkdown extracts an article from a markdown document. The first
// heading becomes the title; the remaining prose becomes the body with
// markup, code and HTML dropped.
func FromMarkdown(src []byte) (title, body string) {
	reader := text.NewReader(src)
	doc := goldmark.New().Parser().Parse(reader)

	var paragraphs []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && title == "" {
			title = inlineText(h, src)
			continue
		}
		if s := blockText(n, src); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return title, strings.Join(paragraphs, "\n\n")
}

// PlainText strips markdown formatting from src.
func PlainText(src string) string {
	b := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(b))

	var paragraphs []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if s := blockText(n, b); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func blockText(n ast.Node, src []byte) string {
	switch n := n.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return ""
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return inlineText(n, src)
	case *ast.List:
		var items []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if s := blockText(c, src); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, "\n")
	default:
		// Blockquotes and list items nest other blocks.
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if s := blockText(c, src); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
}

func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	walkInline(n, src, &buf)
	return strings.TrimSpace(buf.String())
}

func walkInline(node ast.Node, src []byte, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.RawHTML, *ast.Image:
			// dropped
		default:
			walkInline(n, src, buf)
		}
	}
}
