package services

import (
	"regexp"
	"strings"
)

var (
	reHeading      = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	reMarkdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reBold         = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
	reListBold     = regexp.MustCompile(`(?m)^\*\s+\*([^*]+?)\*\s*(.*)$`)
	reList         = regexp.MustCompile(`(?m)^\*\s+`)
	reCodeFence    = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")
	reInlineCode   = regexp.MustCompile("`([^`]+)`")
	reMultiNewline = regexp.MustCompile(`\n{3,}`)
)

// FormatForWhatsApp converts markdown artifacts into WhatsApp plain-text
// conventions. The target channel renders no headings and no link syntax;
// emphasis uses single asterisks.
func FormatForWhatsApp(text string) string {
	// Headings become bold lines
	text = reHeading.ReplaceAllString(text, "*$1*")

	// [label](url) → label: url (or just url when label repeats it)
	text = reMarkdownLink.ReplaceAllStringFunc(text, func(m string) string {
		parts := reMarkdownLink.FindStringSubmatch(m)
		label, target := parts[1], parts[2]
		if label == target {
			return target
		}
		return label + ": " + target
	})

	// Convert markdown bold (**text**) to WhatsApp bold (*text*)
	text = reBold.ReplaceAllString(text, "*$1*")

	// Convert markdown list items with bold
	// From: *   **Item:** description
	// To:   - *Item:* description
	text = reListBold.ReplaceAllString(text, "- *$1* $2")

	// Convert remaining markdown list items (* item) to WhatsApp style (- item)
	text = reList.ReplaceAllString(text, "- ")

	// Strip code fences and inline backticks, keep the content
	text = reCodeFence.ReplaceAllString(text, "$1")
	text = reInlineCode.ReplaceAllString(text, "$1")

	// Clean up multiple consecutive newlines (max 2)
	text = reMultiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// StripMarkdown removes all markdown formatting
func StripMarkdown(text string) string {
	text = regexp.MustCompile(`\*+`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`_+`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`~+`).ReplaceAllString(text, "")
	text = regexp.MustCompile("`+").ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}
