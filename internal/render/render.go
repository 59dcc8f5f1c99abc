// Package render converts markdown documents to HTML while resolving links,
// extracting headings and highlighting code.
//
// Each Render call builds its own goldmark instance around a fresh node
// renderer, so no state is shared between documents.
package render

import (
	"bytes"
	"net/url"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/ter/internal/models"
)

// Options describe the document being rendered.
type Options struct {
	Document models.Document
	// BaseURL is used to build absolute link targets. Nil means root-relative.
	BaseURL *url.URL
}

// Result is the output of one render pass.
type Result struct {
	HTML string
	// Links holds the absolute URLs of internal pages linked from the
	// document, deduplicated, in first-seen order.
	Links []string
	// Headings lists every heading in document order, including a leading
	// title heading that is not part of HTML.
	Headings []models.Heading
}

// Render converts src to HTML. It never fails: malformed markdown degrades
// according to the CommonMark grammar.
func Render(src []byte, opts Options) Result {
	nr := newNodeRenderer(opts)
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(nr, 100)),
		),
	)

	doc := md.Parser().Parse(text.NewReader(src))
	headings := nr.collectHeadings(doc, src)

	// A leading h1 is the page title and is rendered by the page view.
	if first, ok := doc.FirstChild().(*ast.Heading); ok && first.Level == 1 {
		doc.RemoveChild(doc, first)
	}

	var buf bytes.Buffer
	_ = md.Renderer().Render(&buf, src, doc) // node funcs never fail; buffer writes cannot.

	return Result{
		HTML:     buf.String(),
		Links:    nr.links.list(),
		Headings: headings,
	}
}

// Headings extracts the heading list of src without rendering it.
func Headings(src []byte) []models.Heading {
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(src))
	return newNodeRenderer(Options{}).collectHeadings(doc, src)
}

type linkSet struct {
	seen  map[string]struct{}
	order []string
}

func (s *linkSet) add(target string) {
	if _, ok := s.seen[target]; ok {
		return
	}
	s.seen[target] = struct{}{}
	s.order = append(s.order, target)
}

func (s *linkSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
