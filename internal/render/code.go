package render

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/util"
)

// PlainLanguage is the language name used for code without a recognised lexer.
const PlainLanguage = "plaintext"

// ResolveLanguage returns the language a code block is tagged with and its
// lexer. Unknown or empty languages resolve to PlainLanguage and a nil lexer.
func ResolveLanguage(lang string) (string, chroma.Lexer) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == PlainLanguage {
		return PlainLanguage, nil
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return PlainLanguage, nil
	}
	return lang, lexer
}

func writeCode(w util.BufWriter, lang, code string) {
	name, lexer := ResolveLanguage(lang)

	_, _ = w.WriteString(`<pre class="chroma language-`)
	_, _ = w.Write(util.EscapeHTML([]byte(name)))
	_, _ = w.WriteString(`"><code>`)
	if highlighted, ok := highlight(lexer, code); ok {
		_, _ = w.Write(highlighted)
	} else {
		_, _ = w.Write(util.EscapeHTML([]byte(code)))
	}
	_, _ = w.WriteString("</code></pre>\n")
}

// highlight formats code with CSS classes; the caller writes the wrapper.
func highlight(lexer chroma.Lexer, code string) ([]byte, bool) {
	if lexer == nil {
		return nil, false
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return nil, false
	}
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.PreventSurroundingPre(true),
	)
	var buf bytes.Buffer
	if err := formatter.Format(&buf, styles.Fallback, it); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
