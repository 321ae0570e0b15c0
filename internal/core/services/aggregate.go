package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Aggregate folds unit verdicts into the overall verdict. The document is
// compliant only if every unit is, so a document without units is compliant
// with a zero score; the score is the compliant fraction.
func Aggregate(results []domain.UnitResult) domain.OverallCompliance {
	total := len(results)
	if total == 0 {
		return domain.OverallCompliance{
			IsCompliant:     true,
			ComplianceScore: 0,
			Summary:         "No sections were analysed.",
		}
	}

	compliant, violations, fallbacks := 0, 0, 0
	for _, r := range results {
		if r.Verdict.IsCompliant {
			compliant++
		}
		violations += len(r.Verdict.Violations)
		if r.Fallback {
			fallbacks++
		}
	}

	overall := domain.OverallCompliance{
		IsCompliant:     compliant == total,
		ComplianceScore: float64(compliant) / float64(total),
		ViolationCount:  violations,
		FallbackCount:   fallbacks,
	}
	overall.Summary = summarize(compliant, total, violations, fallbacks)
	return overall
}

func summarize(compliant, total, violations, fallbacks int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d %s compliant (%.0f%%). ",
		compliant, total, plural(total, "section", "sections"), 100*float64(compliant)/float64(total))

	switch violations {
	case 0:
		b.WriteString("No violations found.")
	default:
		fmt.Fprintf(&b, "%d %s found.", violations, plural(violations, "violation", "violations"))
	}

	if fallbacks > 0 {
		fmt.Fprintf(&b, " %d %s could not be analysed automatically and %s manual review; their verdicts are low-confidence placeholders.",
			fallbacks, plural(fallbacks, "section", "sections"), plural(fallbacks, "needs", "need"))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
