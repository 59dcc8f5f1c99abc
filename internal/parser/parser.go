// Package parser splits YAML frontmatter from markdown sources and derives
// page attributes from it.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Result holds the output of parsing a markdown source.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Draft       bool
}

// Parse extracts frontmatter and body from raw markdown bytes. Missing,
// unterminated or invalid frontmatter leaves the whole input as body.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Draft:       boolAttr(fm, "draft"),
	}
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	end := bytes.Index(rest, []byte("\n"+delim))
	if end < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, string(data)
	}

	after := rest[end+1+len(delim):]
	// The closing delimiter owns the rest of its line.
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 && len(bytes.TrimSpace(after[:nl])) == 0 {
		after = after[nl+1:]
	}
	return fm, strings.TrimLeft(string(after), "\n\r")
}

// deriveTitle returns the frontmatter "title" if present, otherwise the text
// of a leading "# " heading, otherwise "".
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimRight(trimmed[2:], "#"))
		}
		break
	}
	return ""
}

// boolAttr reads a boolean attribute, accepting YAML booleans and the strings
// "true"/"yes".
func boolAttr(fm map[string]any, key string) bool {
	switch v := fm[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		}
	}
	return false
}

// StringAttr returns a string attribute or "".
func StringAttr(fm map[string]any, key string) string {
	s, _ := fm[key].(string)
	return s
}
