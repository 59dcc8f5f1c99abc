package render

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/starford/ter/internal/links"
	"github.com/starford/ter/internal/models"
)

const externalRel = "external noopener noreferrer"

// nodeRenderer overrides goldmark's link, image, heading and code block
// output for a single render call.
type nodeRenderer struct {
	opts    Options
	slugger *Slugger
	slugs   map[*ast.Heading]string
	links   *linkSet
}

func newNodeRenderer(opts Options) *nodeRenderer {
	return &nodeRenderer{
		opts:    opts,
		slugger: NewSlugger(),
		slugs:   make(map[*ast.Heading]string),
		links:   &linkSet{seen: make(map[string]struct{})},
	}
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
}

// collectHeadings allocates slugs for every heading in document order. The
// rendered ids reuse these slugs so the list and the HTML always agree.
func (r *nodeRenderer) collectHeadings(doc ast.Node, source []byte) []models.Heading {
	var out []models.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		txt := plainText(h, source)
		slug := r.slugger.Slug(txt)
		r.slugs[h] = slug
		out = append(out, models.Heading{Text: txt, Level: h.Level, Slug: slug})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func (r *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	r.openAnchor(w, string(n.Destination), string(n.Title), plainText(n, source))
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.AutoLink)
	if !entering {
		return ast.WalkContinue, nil
	}
	dest := string(n.URL(source))
	if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(dest), "mailto:") {
		dest = "mailto:" + dest
	}
	label := n.Label(source)
	r.openAnchor(w, dest, "", string(label))
	_, _ = w.Write(util.EscapeHTML(label))
	_, _ = w.WriteString("</a>")
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) openAnchor(w util.BufWriter, dest, title, text string) {
	res := links.ResolveLink(dest, r.opts.Document, r.opts.BaseURL)
	if !res.External && res.Target != "" {
		r.links.add(res.Target)
	}
	if title == "" {
		title = text
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(escapeURL(res.Href))
	_ = w.WriteByte('"')
	if res.External {
		_, _ = w.WriteString(` rel="` + externalRel + `"`)
	}
	_, _ = w.WriteString(` title="`)
	_, _ = w.Write(util.EscapeHTML([]byte(title)))
	_, _ = w.WriteString(`">`)
}

func (r *nodeRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	src := links.ResolveImage(string(n.Destination), r.opts.Document)

	_, _ = w.WriteString(`<img src="`)
	_, _ = w.Write(escapeURL(src))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML([]byte(plainText(n, source))))
	_, _ = w.WriteString(`" title="`)
	_, _ = w.Write(util.EscapeHTML(n.Title))
	_, _ = w.WriteString(`"/>`)
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	level := strconv.Itoa(n.Level)
	slug, ok := r.slugs[n]
	if !ok {
		slug = r.slugger.Slug(plainText(n, source))
		r.slugs[n] = slug
	}
	escaped := util.EscapeHTML([]byte(slug))

	if entering {
		_, _ = w.WriteString("<h" + level + ` id="`)
		_, _ = w.Write(escaped)
		_, _ = w.WriteString(`">`)
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<a class="anchor" href="#`)
	_, _ = w.Write(escaped)
	_, _ = w.WriteString(`"></a></h` + level + ">\n")
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	writeCode(w, string(n.Language(source)), codeLines(n, source))
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	writeCode(w, "", codeLines(node, source))
	return ast.WalkSkipChildren, nil
}

func codeLines(n ast.Node, source []byte) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// plainText concatenates the literal text below n, ignoring markup.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func escapeURL(href string) []byte {
	return util.EscapeHTML(util.URLEscape([]byte(href), true))
}
