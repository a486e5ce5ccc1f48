package llm

import (
	"fmt"
)

const systemPrompt = `You are a technical documentation editor. You receive raw markdown scraped from a documentation website and produce clean, well-structured documentation. Preserve all technical content exactly: code blocks, parameter names, endpoint paths, type signatures and version numbers must not be altered. Remove navigation artifacts, cookie notices, footer text and duplicated menus. Output only the formatted markdown with no commentary.`

func chunkPrompt(content, pageURL, title string) string {
	header := ""
	if title != "" {
		header = fmt.Sprintf("Page title: %s\n", title)
	}
	return fmt.Sprintf(`%sSource URL: %s

Format the following documentation content as clean markdown. Use a single top-level heading, organize sections logically, and keep every code example in a fenced code block with its language tag.

%s`, header, pageURL, content)
}

func combinedReviewPrompt(content string) string {
	return fmt.Sprintf(`The following is a combined documentation file assembled from many crawled pages. Review it as a whole: fix inconsistent heading levels, remove duplicated boilerplate between pages, and keep the table of contents, anchors and source footers intact. Do not summarize or drop content.

%s`, content)
}

func reviewPrompt(content, pageURL string) string {
	return fmt.Sprintf(`Source URL: %s

The following documentation was formatted in separate chunks. Review it as a whole: merge duplicated headings, fix broken sections at chunk seams, and ensure consistent heading levels. Do not summarize or drop content.

%s`, pageURL, content)
}
