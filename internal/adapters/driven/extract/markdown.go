package extract

import (
	"regexp"
	"strings"
)

type markdown struct{}

func (markdown) Name() string { return "markdown" }

func (markdown) MIMETypes() []string { return []string{"text/markdown", "text/x-markdown"} }

func (markdown) Extensions() []string { return []string{".md", ".markdown"} }

var (
	mdFence       = regexp.MustCompile("(?m)^[ \t]*```[^\n]*\n?")
	mdInlineCode  = regexp.MustCompile("`([^`]+)`")
	mdImages      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLinks       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeadings    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdBold        = regexp.MustCompile(`(\*\*|__)([^\n]+?)(\*\*|__)`)
	mdItalic      = regexp.MustCompile(`(^|[^\w*])\*([^*\n]+)\*`)
	mdBlockquote  = regexp.MustCompile(`(?m)^>[ \t]?`)
	mdRule        = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	mdBullets     = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	mdNewlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Convert strips Markdown formatting. Heading text, numbered list markers
// and pipe tables are kept: they carry the document's legal structure.
func (markdown) Convert(data string) (string, error) {
	data = mdFence.ReplaceAllString(data, "")
	data = mdInlineCode.ReplaceAllString(data, "$1")
	data = mdImages.ReplaceAllString(data, "$1")
	data = mdLinks.ReplaceAllString(data, "$1")
	data = mdHeadings.ReplaceAllString(data, "")
	data = mdBold.ReplaceAllString(data, "$2")
	data = mdItalic.ReplaceAllString(data, "$1$2")
	data = mdBlockquote.ReplaceAllString(data, "")
	data = mdRule.ReplaceAllString(data, "")
	data = mdBullets.ReplaceAllString(data, "$1")
	data = mdNewlineRuns.ReplaceAllString(data, "\n\n")
	return strings.TrimSpace(data), nil
}
