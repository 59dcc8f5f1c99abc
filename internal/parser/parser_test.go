package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	r := Parse([]byte("---\ntitle: Hello\ndescription: greeting\n---\n# Heading\nBody text.\n"))

	require.NotNil(t, r.Frontmatter)
	assert.Equal(t, "Hello", r.Title)
	assert.Equal(t, "greeting", StringAttr(r.Frontmatter, "description"))
	assert.Equal(t, "# Heading\nBody text.\n", r.Body)
	assert.False(t, r.Draft)
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, "Just a heading", r.Title)
	assert.Equal(t, "# Just a heading\nSome text.\n", r.Body)
}

func TestParse_TitleOnlyFromLeadingHeading(t *testing.T) {
	r := Parse([]byte("Intro paragraph.\n\n# Later heading\n"))
	assert.Empty(t, r.Title)

	r = Parse([]byte("\n\n# Closed heading #\n"))
	assert.Equal(t, "Closed heading", r.Title)
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	r := Parse([]byte(input))
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, input, r.Body)
}

func TestParse_UnterminatedFrontmatter(t *testing.T) {
	input := "---\ntitle: x\nno closing delimiter\n"
	r := Parse([]byte(input))
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, input, r.Body)
}

func TestParse_Draft(t *testing.T) {
	tests := map[string]bool{
		"---\ndraft: true\n---\nx":    true,
		"---\ndraft: false\n---\nx":   false,
		"---\ndraft: \"yes\"\n---\nx": true,
		"---\ndraft: 1\n---\nx":       false,
		"no frontmatter":              false,
	}
	for in, want := range tests {
		assert.Equal(t, want, Parse([]byte(in)).Draft, in)
	}
}
