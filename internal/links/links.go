// Package links classifies and resolves hyperlink references found in
// markdown documents.
//
// A reference is external when it carries a URL scheme (or is a
// protocol-relative "//host" reference), or when its pathname starts with
// "mailto". Everything else is internal and is resolved to a site-relative
// href, plus a canonical absolute target used to build the link graph.
package links

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/ter/internal/models"
)

var (
	schemeRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	indexSuffixRe = regexp.MustCompile(`(?i)/index$`)
)

// Reference is the decomposition of a raw href or src.
type Reference struct {
	HasScheme bool
	Pathname  string
	// Hash includes the leading '#', or is empty.
	Hash string
}

// IsExternal reports whether the reference points outside the site.
func (r Reference) IsExternal() bool {
	return r.HasScheme || strings.HasPrefix(r.Pathname, "mailto")
}

// Parse splits raw into scheme presence, pathname and fragment. The query
// string is not part of the pathname and is dropped. Parse never fails.
func Parse(raw string) Reference {
	raw = strings.TrimSpace(raw)

	var ref Reference
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		ref.Hash = raw[i:]
		raw = raw[:i]
	}

	if schemeRe.MatchString(raw) || strings.HasPrefix(raw, "//") {
		ref.HasScheme = true
		if u, err := url.Parse(raw); err == nil {
			ref.Pathname = u.Path
		}
		return ref
	}

	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	ref.Pathname = raw
	return ref
}

// Resolution is the outcome of resolving a link reference.
type Resolution struct {
	External bool
	// Href is the value to emit in the anchor.
	Href string
	// Target is the absolute URL of the linked page, without fragment. It is
	// empty for external links and self-links.
	Target string
}

// ResolveLink classifies raw and, for internal references, resolves it
// relative to doc. base is used to build the absolute Target; a nil base
// yields root-relative targets.
func ResolveLink(raw string, doc models.Document, base *url.URL) Resolution {
	ref := Parse(raw)
	if ref.IsExternal() {
		return Resolution{External: true, Href: raw}
	}

	clean := cleanPathname(ref.Pathname)

	if path.IsAbs(clean) {
		return Resolution{
			Href:   clean + ref.Hash,
			Target: absolute(base, clean),
		}
	}

	if clean == "" {
		return Resolution{Href: ref.Hash}
	}

	joined := path.Join(documentDir(doc), clean)
	joined = indexSuffixRe.ReplaceAllString(joined, "")
	joined = strings.TrimPrefix(withoutTrailingSlash(joined), "/")

	// The joined path ran back up to the site root.
	if joined == "" || joined == "." {
		return Resolution{Href: "/" + ref.Hash, Target: absolute(base, "")}
	}

	return Resolution{
		Href:   "/" + joined + ref.Hash,
		Target: absolute(base, joined),
	}
}

// ResolveImage resolves an image src. External and absolute sources pass
// through; relative sources are joined against the directory holding the
// document's source file. Images never contribute link targets.
func ResolveImage(raw string, doc models.Document) string {
	ref := Parse(raw)
	if ref.IsExternal() {
		return raw
	}
	if ref.Pathname == "" || path.IsAbs(ref.Pathname) {
		return ref.Pathname
	}
	return path.Join(documentDir(doc), ref.Pathname)
}

// documentDir returns the absolute directory that relative references are
// resolved against. An index document lives in its own directory.
func documentDir(doc models.Document) string {
	p := "/" + strings.Trim(doc.Path, "/")
	if doc.IsIndex {
		return p
	}
	return path.Dir(p)
}

func cleanPathname(p string) string {
	if p == "" {
		return ""
	}
	p = withoutTrailingSlash(p)
	return strings.TrimSuffix(p, extname(p))
}

// extname returns the extension of the last path element. Leading dots
// ("..", ".hidden") do not start an extension.
func extname(p string) string {
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || strings.Trim(base, ".") == "" {
		return ""
	}
	return base[i:]
}

func withoutTrailingSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}

func absolute(base *url.URL, p string) string {
	if base == nil {
		base = &url.URL{Path: "/"}
	}
	ref := &url.URL{Path: p}
	return base.ResolveReference(ref).String()
}
