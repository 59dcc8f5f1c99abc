// Package watch turns filesystem change events into serialized rebuilds
// followed by a live-reload request.
package watch

import (
	"path/filepath"
	"strings"
)

// Kind classifies a filesystem event.
type Kind string

const (
	KindAny      Kind = "any"
	KindAccess   Kind = "access"
	KindMetadata Kind = "metadata"
	KindCreate   Kind = "create"
	KindModify   Kind = "modify"
	KindRemove   Kind = "remove"
	KindRename   Kind = "rename"
	KindOther    Kind = "other"
)

// Event is one change notification over the watched roots. Paths are absolute.
type Event struct {
	Kind  Kind
	Paths []string
}

// Reasons returned by Filter.Check.
const (
	ReasonNoop   = "noop"
	ReasonEmpty  = "empty"
	ReasonOutput = "output"
	ReasonHidden = "hidden"
	ReasonEditor = "editor"
)

// Filter decides which events may trigger a rebuild.
type Filter struct {
	// Roots are the watched directories; hidden segments are matched
	// relative to the root containing a path.
	Roots []string
	// OutputDir is the build output directory. Writes under it never
	// trigger a rebuild.
	OutputDir string
}

// NewFilter returns a Filter over cleaned absolute paths.
func NewFilter(roots []string, outputDir string) Filter {
	f := Filter{OutputDir: absClean(outputDir)}
	for _, r := range roots {
		f.Roots = append(f.Roots, absClean(r))
	}
	return f
}

// Allow reports whether ev should trigger a rebuild.
func (f Filter) Allow(ev Event) bool {
	return f.Check(ev) == ""
}

// Check returns the reason ev is discarded, or "" when it is allowed. A single
// vetoed path discards the whole event.
func (f Filter) Check(ev Event) string {
	switch ev.Kind {
	case KindAny, KindAccess, KindMetadata:
		return ReasonNoop
	}
	if len(ev.Paths) == 0 {
		return ReasonEmpty
	}
	for _, p := range ev.Paths {
		p = filepath.Clean(p)
		switch {
		case f.inOutput(p):
			return ReasonOutput
		case f.hidden(p):
			return ReasonHidden
		case editorFile(filepath.Base(p)):
			return ReasonEditor
		}
	}
	return ""
}

// SkipDir reports whether dir should not be watched at all.
func (f Filter) SkipDir(dir string) bool {
	dir = filepath.Clean(dir)
	return f.inOutput(dir) || f.hidden(dir)
}

func (f Filter) inOutput(p string) bool {
	return f.OutputDir != "" && within(f.OutputDir, p)
}

func (f Filter) hidden(p string) bool {
	rel := p
	if root := f.rootOf(p); root != "" {
		r, err := filepath.Rel(root, p)
		if err != nil {
			return false
		}
		rel = r
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == "." || seg == ".." || seg == "" {
			continue
		}
		if seg[0] == '.' || seg[0] == '_' {
			return true
		}
	}
	return false
}

// rootOf returns the deepest root containing p.
func (f Filter) rootOf(p string) string {
	best := ""
	for _, r := range f.Roots {
		if within(r, p) && len(r) > len(best) {
			best = r
		}
	}
	return best
}

// editorFile matches swap and backup files written by common editors.
func editorFile(name string) bool {
	switch {
	case strings.HasSuffix(name, "~"):
		return true
	case len(name) > 1 && strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#"):
		return true
	}
	switch filepath.Ext(name) {
	case ".swp", ".swx":
		return true
	}
	return false
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func absClean(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
