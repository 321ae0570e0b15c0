package enrich

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Clause tags.
const (
	TagLiability            = "liability"
	TagTermination          = "termination"
	TagConfidentiality      = "confidentiality"
	TagIndemnification      = "indemnification"
	TagGoverningLaw         = "governing_law"
	TagPayment              = "payment"
	TagDataProtection       = "data_protection"
	TagForceMajeure         = "force_majeure"
	TagIntellectualProperty = "intellectual_property"
	TagDisputeResolution    = "dispute_resolution"
)

// clauseKeywords maps each tag to lowercase keywords in the supported languages.
var clauseKeywords = map[string][]string{
	TagLiability:            {"liability", "liable", "haftung", "haftet", "responsabilité", "responsabilidad"},
	TagTermination:          {"terminat", "kündigung", "kündigen", "résiliation", "rescisión", "resolución del contrato"},
	TagConfidentiality:      {"confidential", "non-disclosure", "vertraulich", "geheimhaltung", "confidentialité", "confidencialidad"},
	TagIndemnification:      {"indemnif", "hold harmless", "freistellung", "freistellen", "indemnisation", "indemnización"},
	TagGoverningLaw:         {"governing law", "governed by the laws", "anwendbares recht", "droit applicable", "ley aplicable"},
	TagPayment:              {"payment", "invoice", "fees", "zahlung", "rechnung", "vergütung", "paiement", "facture", "pago", "factura"},
	TagDataProtection:       {"personal data", "data protection", "gdpr", "datenschutz", "dsgvo", "données personnelles", "rgpd", "datos personales"},
	TagForceMajeure:         {"force majeure", "höhere gewalt", "fuerza mayor"},
	TagIntellectualProperty: {"intellectual property", "copyright", "trademark", "patent", "urheberrecht", "geistiges eigentum", "propriété intellectuelle", "propiedad intelectual"},
	TagDisputeResolution:    {"arbitration", "dispute", "jurisdiction of the courts", "schiedsgericht", "gerichtsstand", "arbitrage", "litige", "arbitraje", "controversia"},
}

// ClauseTags classifies chunks into clause types by keyword match.
// It implements the PostProcessor interface.
type ClauseTags struct{}

// NewClauseTags creates a clause-tag enricher.
func NewClauseTags() *ClauseTags {
	return &ClauseTags{}
}

// Name returns the processor name.
func (c *ClauseTags) Name() string {
	return "clause_tags"
}

// Process annotates each chunk with the clause tags matching its content.
func (c *ClauseTags) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		chunks[i].ClauseTags = TagClauses(chunks[i].Content)
	}
	return chunks, nil
}

// TagClauses returns the sorted clause tags whose keywords occur in text.
func TagClauses(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for tag, keywords := range clauseKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}
