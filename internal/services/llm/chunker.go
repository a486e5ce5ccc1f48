package llm

import (
	"strings"
)

// splitMarkdown divides markdown into chunks of at most maxChars, breaking
// at heading boundaries where possible so each chunk stays self-contained.
// A single oversized section is split at paragraph breaks as a last resort.
func splitMarkdown(markdown string, maxChars int) []string {
	if len(markdown) <= maxChars {
		return []string{markdown}
	}

	sections := splitAtHeadings(markdown)

	chunks := make([]string, 0)
	var current strings.Builder
	for _, section := range sections {
		if len(section) > maxChars {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, splitAtParagraphs(section, maxChars)...)
			continue
		}

		if current.Len()+len(section) > maxChars && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(section)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitAtHeadings partitions markdown into sections starting at h1/h2
// headings, keeping each heading with its body
func splitAtHeadings(markdown string) []string {
	lines := strings.SplitAfter(markdown, "\n")

	sections := make([]string, 0)
	var current strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isHeading := strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ")
		if isHeading && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// splitAtParagraphs hard-splits an oversized section at blank lines
func splitAtParagraphs(section string, maxChars int) []string {
	paragraphs := strings.SplitAfter(section, "\n\n")

	chunks := make([]string, 0)
	var current strings.Builder
	for _, para := range paragraphs {
		// A paragraph larger than the limit is emitted as its own chunk;
		// providers tolerate oversized input better than mid-sentence cuts
		if current.Len()+len(para) > maxChars && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
