// Package extract turns uploaded documents into plain text for analysis.
// Plain text, Markdown and HTML are supported; each format is a small
// converter selected by MIME type or, failing that, by file extension.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// format converts one document format to text.
type format interface {
	Name() string
	MIMETypes() []string
	Extensions() []string
	Convert(data string) (string, error)
}

// Extractor dispatches to the matching format converter.
type Extractor struct {
	byMIME map[string]format
	byExt  map[string]format
}

// New creates an extractor for plain text, Markdown and HTML.
func New() *Extractor {
	e := &Extractor{byMIME: make(map[string]format), byExt: make(map[string]format)}
	for _, f := range []format{plainText{}, markdown{}, htmlText{}} {
		for _, m := range f.MIMETypes() {
			e.byMIME[m] = f
		}
		for _, ext := range f.Extensions() {
			e.byExt[ext] = f
		}
	}
	return e
}

// Extract returns normalised text: UTF-8, NFC, LF line endings, no BOM.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := e.formatFor(contentType, filename)
	if err != nil {
		return "", err
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrExtraction, displayName(filename))
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text, err = f.Convert(text)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtraction, f.Name(), err)
	}
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains no text", domain.ErrExtraction, displayName(filename))
	}
	return text, nil
}

func (e *Extractor) formatFor(contentType, filename string) (format, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if f, ok := e.byMIME[strings.ToLower(mediaType)]; ok {
				return f, nil
			}
		}
	}
	if f, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return f, nil
	}
	if contentType == "" && filepath.Ext(filename) == "" {
		return plainText{}, nil
	}
	return nil, fmt.Errorf("%w: %w: content type %q, file %s",
		domain.ErrExtraction, domain.ErrUnsupportedType, contentType, displayName(filename))
}

// ReverseAnonymization replaces every placeholder key with its original value.
// Longer keys win over keys they contain; empty keys are ignored.
func (e *Extractor) ReverseAnonymization(text string, keywordMap map[string]string) string {
	if len(keywordMap) == 0 {
		return text
	}
	keys := make([]string, 0, len(keywordMap))
	for k := range keywordMap {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, keywordMap[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Title derives a document title: the HTML <title>, the first Markdown
// H1, or else the file name without extension.
func (e *Extractor) Title(data []byte, contentType, filename string) string {
	if f, err := e.formatFor(contentType, filename); err == nil {
		switch f.(type) {
		case htmlText:
			if t := htmlTitle(string(data)); t != "" {
				return t
			}
		case markdown:
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if strings.HasPrefix(line, "# ") {
					return strings.TrimSpace(strings.TrimPrefix(line, "#"))
				}
			}
		}
	}
	if filename == "" {
		return ""
	}
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

func displayName(filename string) string {
	if filename == "" {
		return "document"
	}
	return filepath.Base(filename)
}
