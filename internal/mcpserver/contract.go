package mcpserver

// PageFormatContract describes how ter reads markdown sources. It is exposed
// as a resource so LLM clients can write pages that render as intended.
const PageFormatContract = `# Ter Page Format

Every ` + "`" + `.md` + "`" + ` file under the input directory becomes one page.

## Location

- ` + "`" + `blog/post.md` + "`" + ` is written to ` + "`" + `blog/post/index.html` + "`" + ` and served at ` + "`" + `/blog/post` + "`" + `.
- ` + "`" + `blog/index.md` + "`" + ` is the page of the ` + "`" + `blog` + "`" + ` directory itself.
- Files and directories starting with ` + "`" + `.` + "`" + ` or ` + "`" + `_` + "`" + ` are ignored.

## Frontmatter

Optional YAML between ` + "`" + `---` + "`" + ` lines at the very top of the file:

` + "```" + `markdown
---
title: Shown in the page title   # falls back to a leading "# " heading
description: Meta description    # falls back to the site description
draft: true                      # skipped unless render_drafts is set
---
` + "```" + `

## Body

- A leading level-1 heading is the page title; it is rendered by the page view,
  not inside the content.
- Every heading gets an id derived from its text; repeats get ` + "`" + `-1` + "`" + `, ` + "`" + `-2` + "`" + ` suffixes.
- Links with a scheme (` + "`" + `https:` + "`" + `, ` + "`" + `mailto:` + "`" + `) are external and open with
  ` + "`" + `rel="external noopener noreferrer"` + "`" + `.
- Other links point at pages, without the ` + "`" + `.md` + "`" + ` extension:
  ` + "`" + `[next](other-post)` + "`" + ` resolves next to the current page, ` + "`" + `[home](/)` + "`" + ` from the site root.
  Inside an ` + "`" + `index.md` + "`" + `, relative links resolve inside its own directory.
- Fenced code blocks take a language name for highlighting.
`
