package render

import (
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ter/internal/models"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func opts(path string, isIndex bool) Options {
	base, _ := url.Parse("https://example.com/")
	return Options{Document: models.Document{Path: path, IsIndex: isIndex}, BaseURL: base}
}

func TestRender_InternalLinks(t *testing.T) {
	src := "See [foo](foo.md) and [about](/about/) and [again](foo.md#x)."
	res := Render([]byte(src), opts("blog/post", false))

	doc := parseHTML(t, res.HTML)
	anchors := doc.Find("a")
	require.Equal(t, 3, anchors.Length())

	first := anchors.Eq(0)
	assert.Equal(t, "/blog/foo", first.AttrOr("href", ""))
	assert.Equal(t, "foo", first.AttrOr("title", ""), "title falls back to link text")
	_, hasRel := first.Attr("rel")
	assert.False(t, hasRel, "internal links carry no rel")

	assert.Equal(t, "/about", anchors.Eq(1).AttrOr("href", ""))
	assert.Equal(t, "/blog/foo#x", anchors.Eq(2).AttrOr("href", ""))

	assert.Equal(t, []string{
		"https://example.com/blog/foo",
		"https://example.com/about",
	}, res.Links, "targets are deduplicated in first-seen order")
}

func TestRender_IndexDocumentResolvesInOwnDirectory(t *testing.T) {
	res := Render([]byte("[foo](foo)"), opts("blog", true))
	a := parseHTML(t, res.HTML).Find("a").First()
	assert.Equal(t, "/blog/foo", a.AttrOr("href", ""))
	assert.Equal(t, []string{"https://example.com/blog/foo"}, res.Links)
}

func TestRender_ExternalLinks(t *testing.T) {
	src := `[go](https://go.dev "The Go site") [mail](mailto:me@example.com) <https://auto.example.com>`
	res := Render([]byte(src), opts("blog/post", false))

	anchors := parseHTML(t, res.HTML).Find("a")
	require.Equal(t, 3, anchors.Length())
	anchors.Each(func(_ int, s *goquery.Selection) {
		assert.Equal(t, externalRel, s.AttrOr("rel", ""), s.AttrOr("href", ""))
	})
	assert.Equal(t, "The Go site", anchors.Eq(0).AttrOr("title", ""))
	assert.Equal(t, "mail", anchors.Eq(1).AttrOr("title", ""))
	assert.Empty(t, res.Links, "external links are never registered")
}

func TestRender_SelfLinkNotRegistered(t *testing.T) {
	res := Render([]byte("[top](#top)"), opts("blog/post", false))
	a := parseHTML(t, res.HTML).Find("a").First()
	assert.Equal(t, "#top", a.AttrOr("href", ""))
	assert.Empty(t, res.Links)
}

func TestRender_LeadingTitleRemovedButListed(t *testing.T) {
	src := "# Title\n\nIntro.\n\n## Usage\n\n### Details\n"
	res := Render([]byte(src), opts("docs/intro", false))

	doc := parseHTML(t, res.HTML)
	assert.Equal(t, 0, doc.Find("h1").Length(), "leading h1 is not rendered")
	assert.Equal(t, 1, doc.Find("h2#usage").Length())
	assert.Equal(t, 1, doc.Find(`h3#details a.anchor[href="#details"]`).Length())

	assert.Equal(t, []models.Heading{
		{Text: "Title", Level: 1, Slug: "title"},
		{Text: "Usage", Level: 2, Slug: "usage"},
		{Text: "Details", Level: 3, Slug: "details"},
	}, res.Headings)
}

func TestRender_NonLeadingTitleKept(t *testing.T) {
	res := Render([]byte("Intro.\n\n# Title\n"), opts("a", false))
	assert.Equal(t, 1, parseHTML(t, res.HTML).Find("h1#title").Length())
}

func TestRender_DuplicateSlugsMatchIDs(t *testing.T) {
	src := "# Intro\n\n## Intro\n\n## Intro\n"
	res := Render([]byte(src), opts("a", false))

	require.Len(t, res.Headings, 3)
	assert.Equal(t, "intro", res.Headings[0].Slug)
	assert.Equal(t, "intro-1", res.Headings[1].Slug)
	assert.Equal(t, "intro-2", res.Headings[2].Slug)

	doc := parseHTML(t, res.HTML)
	assert.Equal(t, 1, doc.Find("h2#intro-1").Length())
	assert.Equal(t, 1, doc.Find("h2#intro-2").Length())
}

func TestRender_HeadingTextIgnoresMarkup(t *testing.T) {
	res := Render([]byte("## Using `go test` *quickly*\n"), opts("a", false))
	require.Len(t, res.Headings, 1)
	assert.Equal(t, "Using go test quickly", res.Headings[0].Text)
	assert.Equal(t, "using-go-test-quickly", res.Headings[0].Slug)
}

func TestRender_Images(t *testing.T) {
	src := "![Diagram](diagram.png \"Flow\") ![Logo](/img/logo.png)"
	res := Render([]byte(src), opts("blog/post", false))

	imgs := parseHTML(t, res.HTML).Find("img")
	require.Equal(t, 2, imgs.Length())
	assert.Equal(t, "/blog/diagram.png", imgs.Eq(0).AttrOr("src", ""))
	assert.Equal(t, "Diagram", imgs.Eq(0).AttrOr("alt", ""))
	assert.Equal(t, "Flow", imgs.Eq(0).AttrOr("title", ""))
	assert.Equal(t, "/img/logo.png", imgs.Eq(1).AttrOr("src", ""))
	assert.Empty(t, res.Links, "images are not link targets")
}

func TestRender_CodeBlocks(t *testing.T) {
	src := "```go\nfunc main() {}\n```\n\n```nosuchlang\n<b>x</b>\n```\n\n    indented\n"
	res := Render([]byte(src), opts("a", false))

	doc := parseHTML(t, res.HTML)
	pres := doc.Find("pre")
	require.Equal(t, 3, pres.Length())

	assert.True(t, pres.Eq(0).HasClass("language-go"))
	assert.Greater(t, pres.Eq(0).Find("span").Length(), 0, "recognised languages are highlighted")

	assert.True(t, pres.Eq(1).HasClass("language-plaintext"))
	assert.Equal(t, 0, pres.Eq(1).Find("b").Length(), "fallback output is escaped")
	assert.Contains(t, pres.Eq(1).Text(), "<b>x</b>")

	assert.True(t, pres.Eq(2).HasClass("language-plaintext"))
	assert.Contains(t, pres.Eq(2).Text(), "indented")
}

func TestResolveLanguage(t *testing.T) {
	name, lexer := ResolveLanguage("Go")
	assert.Equal(t, "go", name)
	assert.NotNil(t, lexer)

	name, lexer = ResolveLanguage("definitely-not-a-language")
	assert.Equal(t, PlainLanguage, name)
	assert.Nil(t, lexer)

	name, _ = ResolveLanguage("")
	assert.Equal(t, PlainLanguage, name)
}

func TestRender_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"[]()",
		"[x](#a#b)",
		"[x]( )",
		"[x](?q=1)",
		"![]()",
		"#",
		"# ",
		"```\n",
		"<div>unclosed",
		"[ref]\n\n[ref]: ",
		strings.Repeat("[", 500),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Render([]byte(in), Options{}) }, in)
	}
}

func TestRender_ConcurrentCallsAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Render([]byte("## A\n\n## A\n\n[x](x)"), opts("p", false))
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		require.Len(t, res.Headings, 2)
		assert.Equal(t, "a", res.Headings[0].Slug)
		assert.Equal(t, "a-1", res.Headings[1].Slug)
		assert.Equal(t, []string{"https://example.com/x"}, res.Links)
	}
}

func TestHeadings(t *testing.T) {
	hs := Headings([]byte("# One\n\ntext\n\n## Two\n"))
	require.Len(t, hs, 2)
	assert.Equal(t, "one", hs[0].Slug)
	assert.Equal(t, 2, hs[1].Level)
}
