package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type htmlText struct{}

func (htmlText) Name() string { return "html" }

func (htmlText) MIMETypes() []string { return []string{"text/html", "application/xhtml+xml"} }

func (htmlText) Extensions() []string { return []string{".html", ".htm", ".xhtml"} }

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "ul": true, "caption": true,
}

var (
	htmlSpaces   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	htmlNewlines = regexp.MustCompile(`\n{3,}`)
)

// Convert renders the body as text. Block elements start new lines and
// table rows become pipe-delimited lines.
func (htmlText) Convert(data string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, head, svg, template, iframe").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		for _, n := range body.Nodes {
			renderNode(&sb, n)
		}
	})

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(htmlSpaces.ReplaceAllString(line, " "))
		out = append(out, line)
	}
	text := htmlNewlines.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

// htmlTitle returns the document's <title> or first <h1>.
func htmlTitle(data string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(data))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func renderNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(sb, c)
		}
		return
	}

	switch n.Data {
	case "br":
		sb.WriteString("\n")
		return
	case "tr":
		sb.WriteString("|")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				sb.WriteString(" ")
				sb.WriteString(strings.Join(strings.Fields(goquery.NewDocumentFromNode(c).Text()), " "))
				sb.WriteString(" |")
			}
		}
		sb.WriteString("\n")
		return
	}

	block := blockElements[n.Data]
	if block {
		sb.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(sb, c)
	}
	if block {
		sb.WriteString("\n")
	}
}
