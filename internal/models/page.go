// Package models defines the domain types shared by the renderer, builder and watcher.
package models

import "time"

// Document identifies one page of the generated site.
//
// Path is site-relative, without extension or trailing slash ("blog/post").
// IsIndex is set when the document is the default page of a directory-like
// path, in which case Path names the directory itself ("blog" for blog/index.md).
type Document struct {
	Path    string `json:"path"`
	IsIndex bool   `json:"is_index"`
}

// Heading is one heading extracted from a rendered document.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	Slug  string `json:"slug"`
}

// Page is a discovered content file after frontmatter parsing.
type Page struct {
	Document
	Source      string         `json:"source"`
	Title       string         `json:"title,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Draft       bool           `json:"draft,omitempty"`
	Body        string         `json:"-"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SourceMetadata is a lightweight representation returned by storage listings.
type SourceMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuildOptions are passed to every rebuild request.
type BuildOptions struct {
	// Quiet suppresses per-file log lines.
	Quiet bool
	// IncludeRefresh embeds the live-reload client script into every page.
	IncludeRefresh bool
}
