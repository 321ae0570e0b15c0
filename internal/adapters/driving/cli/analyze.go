package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// progressInterval is how often job progress is polled on a terminal.
var progressInterval = 250 * time.Millisecond

// stderrIsTerminal reports whether progress should be rendered.
var stderrIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

type analyzeOptions struct {
	contentType  string
	documentType string
	domain       string
	jurisdiction string
	legalArea    string
	keyTerms     []string
	userID       string
	strategy     string
	analysisID   string
	kind         string
	language     string
	keywords     map[string]string
	asJSON       bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyse a legal document for compliance",
	Long: `Analyse a document section by section and print the compliance result.

Plain text, markdown and HTML files are supported. The result is stored and
can be shown again with 'lexcheck show <id>'.

Examples:
  lexcheck analyze contract.md --jurisdiction DE --legal-area "data protection"
  lexcheck analyze policy.html --strategy direct_document --json
  lexcheck analyze redacted.txt --keyword "[CLIENT]=Acme GmbH"`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.contentType, "type", "", "content type of the file (detected from the extension when empty)")
	f.StringVar(&analyzeOpts.documentType, "document-type", "", "document type, e.g. employment contract")
	f.StringVar(&analyzeOpts.domain, "domain", "", "business domain of the document")
	f.StringVar(&analyzeOpts.jurisdiction, "jurisdiction", "", "jurisdiction the document is judged under")
	f.StringVar(&analyzeOpts.legalArea, "legal-area", "", "legal area, e.g. data protection")
	f.StringSliceVar(&analyzeOpts.keyTerms, "key-terms", nil, "key terms to focus the analysis on")
	f.StringVar(&analyzeOpts.userID, "user", "", "owner of the analysis")
	f.StringVar(&analyzeOpts.strategy, "strategy", string(domain.StrategyLocalSectionSearch),
		"local_section_search or direct_document")
	f.StringVar(&analyzeOpts.analysisID, "id", "", "analysis id (generated when empty)")
	f.StringVar(&analyzeOpts.kind, "kind", "", "document kind hint: regulation, contract, policy or other")
	f.StringVar(&analyzeOpts.language, "language", "", "language hint: en, de, fr or es")
	f.StringToStringVar(&analyzeOpts.keywords, "keyword", nil, "anonymisation placeholder mapping PLACEHOLDER=original")
	f.BoolVar(&analyzeOpts.asJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return fmt.Errorf("analysis %w", errNotConfigured)
	}
	if settingsService != nil {
		if err := settingsService.Validate(); err != nil {
			return fmt.Errorf("configuration is incomplete, run 'lexcheck config show': %w", err)
		}
	}

	req, err := buildAnalysisRequest(args[0], analyzeOpts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := analysisService.CreateJob(ctx, req)
	if err != nil {
		return fmt.Errorf("start analysis: %w", err)
	}

	job, err = awaitJob(ctx, cmd.ErrOrStderr(), job.ID, stderrIsTerminal())
	if err != nil {
		return err
	}
	switch job.Status {
	case domain.JobCompleted:
	case domain.JobCancelled:
		return fmt.Errorf("analysis %s: %w", job.ID, domain.ErrCancelled)
	default:
		return fmt.Errorf("analysis %s failed: %s", job.ID, job.Error)
	}

	result, err := analysisService.Result(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load result: %w", err)
	}
	format := formatText
	if analyzeOpts.asJSON {
		format = formatJSON
	}
	return writeResult(cmd.OutOrStdout(), result, format)
}

func buildAnalysisRequest(path string, opts analyzeOptions) (domain.AnalysisRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AnalysisRequest{}, fmt.Errorf("read %s: %w", path, err)
	}

	strategy := domain.AnalysisStrategy(opts.strategy)
	if !strategy.IsValid() {
		return domain.AnalysisRequest{}, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, opts.strategy)
	}
	hints, err := parseHints(opts.kind, opts.language)
	if err != nil {
		return domain.AnalysisRequest{}, err
	}

	return domain.AnalysisRequest{
		AnalysisID:  opts.analysisID,
		UserID:      opts.userID,
		Filename:    filepath.Base(path),
		ContentType: opts.contentType,
		Data:        data,
		KeywordMap:  opts.keywords,
		DocumentContext: domain.DocumentContext{
			DocumentType: opts.documentType,
			Domain:       opts.domain,
			Jurisdiction: opts.jurisdiction,
			LegalArea:    opts.legalArea,
			KeyTerms:     opts.keyTerms,
		},
		Strategy: strategy,
		Hints:    hints,
	}, nil
}

func parseHints(kind, language string) (domain.DocumentHints, error) {
	var hints domain.DocumentHints
	if kind != "" {
		hints.Kind = domain.DocumentKind(kind)
		if !hints.Kind.IsValid() {
			return hints, fmt.Errorf("%w: unknown document kind %q", domain.ErrInvalidInput, kind)
		}
	}
	if language != "" {
		hints.Language = domain.Language(language)
		if !hints.Language.IsValid() {
			return hints, fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidInput, language)
		}
	}
	return hints, nil
}

// awaitJob waits for a job to finish. When ctx is cancelled the job is asked
// to stop and awaitJob keeps waiting for it to reach a terminal state.
func awaitJob(ctx context.Context, w io.Writer, id string, showProgress bool) (*domain.Job, error) {
	type outcome struct {
		job *domain.Job
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		job, err := analysisService.Wait(context.WithoutCancel(ctx), id)
		done <- outcome{job, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	interrupted := ctx.Done()
	last := -1
	for {
		select {
		case o := <-done:
			if showProgress && last >= 0 {
				fmt.Fprintln(w)
			}
			if o.err != nil {
				return nil, fmt.Errorf("wait for analysis: %w", o.err)
			}
			return o.job, nil
		case <-interrupted:
			interrupted = nil
			if err := analysisService.Cancel(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("cancel analysis: %w", err)
			}
			fmt.Fprintln(w, "\nCancelling analysis...")
		case <-ticker.C:
			if !showProgress {
				continue
			}
			job, err := analysisService.Status(context.WithoutCancel(ctx), id)
			if err != nil || job.Percent == last {
				continue
			}
			last = job.Percent
			fmt.Fprintf(w, "\r[%3d%%] %-9s %-40.40s", job.Percent, job.Stage, job.Message)
		}
	}
}
