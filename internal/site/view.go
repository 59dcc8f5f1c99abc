package site

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/models"
	"github.com/starford/ter/internal/parser"
	"github.com/starford/ter/internal/render"
)

//go:embed views/page.html
var defaultPageView string

// ViewFile is the page view override, relative to the config directory.
const ViewFile = "views/page.html"

// Crumb is one breadcrumb entry.
type Crumb struct {
	Name string
	Href string
}

// PageData is what a page view is executed with.
type PageData struct {
	Site        Info
	Page        models.Page
	Title       string
	Description string
	URL         string
	Content     template.HTML
	Headings    []models.Heading
	// TOC lists headings below the page title.
	TOC     []models.Heading
	Links   []string
	Crumbs  []Crumb
	Refresh template.HTML
}

// loadView parses <configDir>/views/page.html, or the built-in view when the
// override does not exist. It is read on every build so edits apply on the
// next rebuild.
func loadView(configDir string) (*template.Template, error) {
	src := defaultPageView
	name := "page"
	if configDir != "" {
		p := filepath.Join(configDir, filepath.FromSlash(ViewFile))
		data, err := os.ReadFile(p)
		switch {
		case err == nil:
			src, name = string(data), p
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read view: %w", err)
		}
	}
	t, err := template.New(name).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse view: %w", err)
	}
	return t, nil
}

func (b *Builder) renderPage(view *template.Template, page models.Page, opts models.BuildOptions) ([]byte, error) {
	res := render.Render([]byte(page.Body), b.renderOptions(page.Document))

	title := page.Title
	toc := res.Headings
	if len(toc) > 0 && toc[0].Level == 1 {
		if title == "" {
			title = toc[0].Text
		}
		toc = toc[1:]
	}
	if title == "" && page.Path != "" {
		title = path.Base(page.Path)
	}

	data := PageData{
		Site:        b.cfg.Site,
		Page:        page,
		Title:       title,
		Description: parser.StringAttr(page.Frontmatter, "description"),
		URL:         b.BaseURL().ResolveReference(pageRef(page.Document)).String(),
		Content:     template.HTML(res.HTML),
		Headings:    res.Headings,
		TOC:         toc,
		Links:       res.Links,
		Crumbs:      crumbs(b.cfg.Site.RootCrumb, page.Document),
	}
	if data.Description == "" {
		data.Description = b.cfg.Site.Description
	}
	if opts.IncludeRefresh {
		data.Refresh = template.HTML(livereload.ClientScript(b.cfg.ReloadPath))
	}

	var buf bytes.Buffer
	if err := view.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute view: %w", err)
	}
	return buf.Bytes(), nil
}

// crumbs lists the root and every ancestor of doc, excluding doc itself.
func crumbs(root string, doc models.Document) []Crumb {
	if doc.Path == "" {
		return nil
	}
	if root == "" {
		root = "index"
	}
	out := []Crumb{{Name: root, Href: "/"}}
	parts := strings.Split(doc.Path, "/")
	for i := 0; i < len(parts)-1; i++ {
		out = append(out, Crumb{Name: parts[i], Href: "/" + strings.Join(parts[:i+1], "/")})
	}
	return out
}

func pageRef(doc models.Document) *url.URL {
	if doc.Path == "" {
		return &url.URL{}
	}
	return &url.URL{Path: doc.Path + "/"}
}
