// Package site is the default rebuild: it renders every markdown source under
// the input directory into <output>/<page>/index.html.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/ter/internal/apperr"
	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/logfields"
	"github.com/starford/ter/internal/models"
	"github.com/starford/ter/internal/parser"
	"github.com/starford/ter/internal/render"
	"github.com/starford/ter/internal/storage"
)

// Author identifies the site author.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

// Info is the site-wide data handed to views.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	BaseURL     string `json:"base_url"`
	RootCrumb   string `json:"root_crumb"`
	Author      Author `json:"author"`
}

// Config binds a Builder to its directories.
type Config struct {
	InputPath  string
	OutputPath string
	// ConfigDir holds optional overrides such as views/page.html.
	ConfigDir    string
	RenderDrafts bool
	// ReloadPath is the push endpoint embedded when IncludeRefresh is set.
	ReloadPath string
	Site       Info
}

// Report summarizes one build.
type Report struct {
	Pages    int
	Written  int
	Skipped  int
	Drafts   int
	Duration time.Duration
}

// Builder renders the site. Concurrent builds are serialized.
type Builder struct {
	cfg    Config
	src    storage.Provider
	base   *url.URL
	logger *slog.Logger

	mu sync.Mutex
}

// New validates cfg and returns a Builder. The input directory must exist.
func New(cfg Config, logger *slog.Logger) (*Builder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("site: parse base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	outAbs, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("site: resolve output: %w", err)
	}
	cfg.OutputPath = outAbs
	if cfg.ReloadPath == "" {
		cfg.ReloadPath = livereload.DefaultPath
	}

	src, err := storage.NewFS(cfg.InputPath, storage.WithSkipDir(func(dir string) bool {
		return dir == outAbs
	}))
	if err != nil {
		return nil, fmt.Errorf("site: open input: %w", err)
	}

	return &Builder{cfg: cfg, src: src, base: base, logger: logger}, nil
}

// Rebuild implements watch.Rebuilder.
func (b *Builder) Rebuild(ctx context.Context, opts models.BuildOptions) error {
	_, err := b.Build(ctx, opts)
	return err
}

// Build renders every page. The first failing page aborts the build.
func (b *Builder) Build(ctx context.Context, opts models.BuildOptions) (Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	var rep Report

	if err := os.MkdirAll(b.cfg.OutputPath, 0o755); err != nil {
		return rep, fmt.Errorf("%w: create output: %v", apperr.ErrBuild, err)
	}
	out, err := storage.NewFS(b.cfg.OutputPath)
	if err != nil {
		return rep, fmt.Errorf("%w: %v", apperr.ErrBuild, err)
	}

	view, err := loadView(b.cfg.ConfigDir)
	if err != nil {
		return rep, fmt.Errorf("%w: %v", apperr.ErrBuild, err)
	}

	sources, err := b.src.List("")
	if err != nil {
		return rep, fmt.Errorf("%w: %v", apperr.ErrBuild, err)
	}

	for _, meta := range sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		page, err := b.load(meta)
		if err != nil {
			return rep, fmt.Errorf("%w: %s: %v", apperr.ErrBuild, meta.Path, err)
		}
		if page.Draft && !b.cfg.RenderDrafts {
			rep.Drafts++
			continue
		}
		rep.Pages++

		html, err := b.renderPage(view, page, opts)
		if err != nil {
			return rep, fmt.Errorf("%w: %s: %v", apperr.ErrBuild, meta.Path, err)
		}

		target := OutputPath(page.Document)
		wrote, err := out.WriteIfChanged(target, html)
		if err != nil {
			return rep, fmt.Errorf("%w: %s: %v", apperr.ErrBuild, target, err)
		}
		if !wrote {
			rep.Skipped++
			continue
		}
		rep.Written++
		if !opts.Quiet {
			b.logger.Info("site: write", logfields.Path(filepath.Join(b.cfg.OutputPath, filepath.FromSlash(target))))
		}
	}

	rep.Duration = time.Since(start)
	if !opts.Quiet {
		b.logger.Info("site: build complete",
			slog.Int("pages", rep.Pages),
			slog.Int("written", rep.Written),
			slog.Int("unchanged", rep.Skipped),
			slog.Int("drafts", rep.Drafts),
			logfields.Duration(rep.Duration),
		)
	}
	return rep, nil
}

func (b *Builder) load(meta models.SourceMetadata) (models.Page, error) {
	data, err := b.src.Read(meta.Path)
	if err != nil {
		return models.Page{}, err
	}
	parsed := parser.Parse(data)
	return models.Page{
		Document:    DocumentFor(meta.Path),
		Source:      meta.Path,
		Title:       parsed.Title,
		Frontmatter: parsed.Frontmatter,
		Draft:       parsed.Draft,
		Body:        parsed.Body,
		UpdatedAt:   meta.UpdatedAt,
	}, nil
}

// RenderPage renders a single source file (relative to the input root)
// without writing it.
func (b *Builder) RenderPage(source string, opts models.BuildOptions) ([]byte, error) {
	view, err := loadView(b.cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	page, err := b.load(models.SourceMetadata{Path: filepath.ToSlash(source)})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", source, apperr.ErrNotFound)
		}
		return nil, err
	}
	return b.renderPage(view, page, opts)
}

// DocumentFor maps a source path ("blog/index.md") to its document.
func DocumentFor(source string) models.Document {
	p := strings.TrimSuffix(filepath.ToSlash(source), path.Ext(source))
	dir, name := path.Split(p)
	if strings.EqualFold(name, "index") {
		return models.Document{Path: strings.Trim(dir, "/"), IsIndex: true}
	}
	return models.Document{Path: strings.Trim(p, "/")}
}

// OutputPath is the output file of doc, relative to the output root.
func OutputPath(doc models.Document) string {
	return path.Join(doc.Path, "index.html")
}

// BaseURL returns the parsed site base URL.
func (b *Builder) BaseURL() *url.URL {
	u := *b.base
	return &u
}

func (b *Builder) renderOptions(doc models.Document) render.Options {
	return render.Options{Document: doc, BaseURL: b.BaseURL()}
}
