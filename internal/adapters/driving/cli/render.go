package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v with its JSON field names. The JSON document is read
// back as a YAML node tree so key order follows the struct order.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func writeResult(w io.Writer, r *domain.AnalysisResult, format outputFormat) error {
	switch format {
	case formatJSON:
		return writeJSON(w, r)
	case formatYAML:
		return writeYAML(w, r)
	default:
		printResult(w, r)
		return nil
	}
}

func printResult(w io.Writer, r *domain.AnalysisResult) {
	overall := r.OverallCompliance
	verdict := "NON-COMPLIANT"
	if overall.IsCompliant {
		verdict = "COMPLIANT"
	}

	fmt.Fprintf(w, "Analysis:   %s\n", r.AnalysisID)
	fmt.Fprintf(w, "Document:   %s\n", r.DocumentID)
	if r.UserID != "" {
		fmt.Fprintf(w, "User:       %s\n", r.UserID)
	}
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	fmt.Fprintf(w, "Strategy:   %s\n", r.Strategy)
	fmt.Fprintf(w, "Verdict:    %s (score %.2f)\n", verdict, overall.ComplianceScore)
	fmt.Fprintf(w, "Violations: %d\n", overall.ViolationCount)
	if overall.FallbackCount > 0 {
		fmt.Fprintf(w, "Unanalysed: %d section(s) need manual review\n", overall.FallbackCount)
	}
	if overall.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", overall.Summary)
	}

	if len(r.Units) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sections")
	fmt.Fprintln(w, "--------")
	for _, u := range r.Units {
		status := "compliant"
		switch {
		case u.Fallback:
			status = "not analysed"
		case !u.Verdict.IsCompliant:
			status = "non-compliant"
		}
		title := u.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "[%s] %s: %s, confidence %.2f\n", u.UnitID, title, status, u.Verdict.Confidence)
		for _, f := range u.Findings {
			fmt.Fprintf(w, "  - %s [%s] %s\n", f.ID, f.Severity, f.Title)
			if len(f.LegalBasis) > 0 {
				fmt.Fprintf(w, "    basis: %s\n", strings.Join(f.LegalBasis, "; "))
			}
		}
		for _, rec := range u.Verdict.Recommendations {
			fmt.Fprintf(w, "  > %s\n", rec)
		}
	}
}

func printJob(w io.Writer, job *domain.Job) {
	fmt.Fprintf(w, "Analysis: %s\n", job.ID)
	fmt.Fprintf(w, "Status:   %s\n", job.Status)
	if job.Stage != "" {
		fmt.Fprintf(w, "Stage:    %s (%d%%)\n", job.Stage, job.Percent)
	}
	if job.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", job.Message)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", job.Error)
	}
}
