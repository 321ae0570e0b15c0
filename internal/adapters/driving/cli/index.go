package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Add legal texts to the legal-context index",
	Long: `Chunk statutes, regulations or guidelines and add them to the index the
analyzer retrieves legal context from. Each file becomes one source, named
after the file unless --id is given. Indexing a source again replaces it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List indexed legal sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	flags := indexCmd.Flags()
	flags.String("jurisdiction", "", "jurisdiction the texts apply in, e.g. Germany or EU")
	flags.String("legal-area", "", "legal area of the texts, e.g. employment or data_protection")
	flags.String("index-id", "", "named corpus to add the texts to (default: search.index_id)")
	flags.String("id", "", "source id (single file only)")
	flags.String("title", "", "source title (single file only)")
	flags.String("type", "", "content type of the files (detected from the extension when empty)")
	flags.String("kind", "", "document kind hint: regulation, contract, policy or other")
	flags.String("language", "", "language hint: en, de, fr or es")
	flags.Bool("json", false, "print the indexed sources as JSON")
	sourcesCmd.Flags().Bool("json", false, "print the sources as JSON")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if corpusService == nil {
		return fmt.Errorf("legal index %w", errNotConfigured)
	}
	flags := cmd.Flags()
	jurisdiction, _ := flags.GetString("jurisdiction")
	legalArea, _ := flags.GetString("legal-area")
	indexID, _ := flags.GetString("index-id")
	sourceID, _ := flags.GetString("id")
	title, _ := flags.GetString("title")
	contentType, _ := flags.GetString("type")
	kind, _ := flags.GetString("kind")
	language, _ := flags.GetString("language")
	asJSON, _ := flags.GetBool("json")

	if len(args) > 1 && (sourceID != "" || title != "") {
		return fmt.Errorf("%w: --id and --title need a single file", domain.ErrInvalidInput)
	}
	hints, err := parseHints(kind, language)
	if err != nil {
		return err
	}

	indexed := make([]domain.LegalSource, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		src, err := corpusService.Index(cmd.Context(), domain.IndexRequest{
			SourceID:     sourceID,
			Title:        title,
			Filename:     filepath.Base(path),
			ContentType:  contentType,
			Data:         data,
			LegalArea:    legalArea,
			Jurisdiction: jurisdiction,
			IndexID:      indexID,
			Hints:        hints,
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
		indexed = append(indexed, *src)
		if !asJSON {
			cmd.Printf("Indexed %s: %d chunks, %d references\n", src.ID, src.Chunks, src.References)
		}
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), indexed)
	}
	return nil
}

func runSources(cmd *cobra.Command, _ []string) error {
	if corpusService == nil {
		return fmt.Errorf("legal index %w", errNotConfigured)
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	sources, err := corpusService.Sources(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), sources)
	}
	if len(sources) == 0 {
		cmd.Println("No legal sources indexed.")
		return nil
	}

	cmd.Printf("%-24s  %-14s  %-16s  %6s  %4s  %s\n", "ID", "JURISDICTION", "AREA", "CHUNKS", "REFS", "INDEXED")
	for _, s := range sources {
		cmd.Printf("%-24s  %-14s  %-16s  %6d  %4d  %s\n",
			s.ID, dash(s.Jurisdiction), dash(s.LegalArea), s.Chunks, s.References,
			s.IndexedAt.Local().Format(time.DateTime))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
