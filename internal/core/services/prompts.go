package services

import (
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// DefaultPrompts are the built-in prompt templates. File-based prompt stores
// seed their directories from this map and fall back to it.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	driven.PromptSegmentationSystem: `You split legal documents into self-contained, legally relevant sections for compliance review.
Respond with a single JSON object of the form {"sections":[{"title":"...","start":0,"end":0}]}.
"start" and "end" are character offsets into the text you are given, end exclusive.
Sections must not overlap and must appear in document order.
Exclude boilerplate from every section: document titles, signature blocks, dates, addresses and pure formatting.`,

	driven.PromptSegmentationUser: `Split the following text into sections. Every section must contain at least %d characters of substantive content.

Text:
%s`,

	driven.PromptQueryGenerationSystem: `You write search queries that retrieve the laws and regulations relevant to one section of a legal document.
Respond with a single JSON object of the form {"queries":["...","...","..."]} containing exactly three short queries.`,

	driven.PromptQueryGenerationUser: `Document context:
%s

Section excerpt:
%s`,

	driven.PromptComplianceSystem: `You are a legal compliance reviewer. You judge ONE section of a larger document against the legal context provided.
Other sections of the document exist and are judged separately. Do not report the absence of clauses that would normally appear elsewhere in the document.
Respond with a single JSON object:
{"isCompliant":true,"confidence":0.0,"reasoning":"...","violations":["..."],"recommendations":["..."]}
"confidence" is between 0 and 1. "violations" lists each distinct legal problem in this section only.`,

	driven.PromptComplianceUser: `Document context:
%s

Section: %s

Section content:
%s

Legal context:
%s`,

	driven.PromptDirectSystem: `You are a legal compliance reviewer. The complete document is attached.
Judge the document as a whole against the legal context provided and applicable law for its jurisdiction.
Respond with a single JSON object:
{"isCompliant":true,"confidence":0.0,"reasoning":"...","violations":["..."],"recommendations":["..."]}
"confidence" is between 0 and 1.`,
}

// promptSource loads templates from an optional store, falling back to the
// built-in defaults when the store is unset, fails, or returns a template
// whose placeholders differ from the default's.
type promptSource struct {
	store driven.PromptStore
}

func (p promptSource) load(name string) string {
	def := DefaultPrompts[name]
	if p.store != nil {
		if tpl, err := p.store.Load(name); err == nil && tpl != "" && placeholders(tpl) == placeholders(def) {
			return tpl
		}
	}
	return def
}

// placeholders returns the fmt verbs of a template in order, e.g. "ds".
func placeholders(tpl string) string {
	var verbs []byte
	for i := 0; i < len(tpl)-1; i++ {
		if tpl[i] != '%' {
			continue
		}
		switch tpl[i+1] {
		case '%':
			i++
		case 's', 'd':
			verbs = append(verbs, tpl[i+1])
			i++
		}
	}
	return string(verbs)
}
