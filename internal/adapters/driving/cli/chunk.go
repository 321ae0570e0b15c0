package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Split a document into structural chunks",
	Long: `Classify the structure of a document and split it into chunks along its
chapters, sections, clauses and tables. Nothing is stored and no reasoning
model is called.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().Bool("json", false, "print profile and chunks as JSON")
	chunkCmd.Flags().String("type", "", "content type of the file (detected from the extension when empty)")
	chunkCmd.Flags().String("kind", "", "document kind hint: regulation, contract, policy or other")
	chunkCmd.Flags().String("language", "", "language hint: en, de, fr or es")
	rootCmd.AddCommand(chunkCmd)
}

// chunkOutput is the JSON shape of the chunk command.
type chunkOutput struct {
	Profile domain.StructureProfile `json:"profile"`
	Chunks  []domain.Chunk          `json:"chunks"`
}

func runChunk(cmd *cobra.Command, args []string) error {
	if chunkingService == nil || documentReader == nil {
		return fmt.Errorf("chunking %w", errNotConfigured)
	}
	flags := cmd.Flags()
	asJSON, _ := flags.GetBool("json")
	contentType, _ := flags.GetString("type")
	kind, _ := flags.GetString("kind")
	language, _ := flags.GetString("language")

	hints, err := parseHints(kind, language)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	filename := filepath.Base(path)
	text, err := documentReader.Extract(cmd.Context(), data, contentType, filename)
	if err != nil {
		return err
	}

	doc := &domain.Document{
		ID:      filename,
		Title:   documentReader.Title(data, contentType, filename),
		Content: text,
		Hints:   hints,
	}
	profile := chunkingService.Profile(doc)
	chunks, err := chunkingService.Chunk(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), chunkOutput{Profile: profile, Chunks: chunks})
	}

	cmd.Printf("Document:   %s\n", doc.Title)
	cmd.Printf("Kind:       %s\n", profile.Kind)
	cmd.Printf("Language:   %s\n", profile.Language)
	cmd.Printf("Complexity: %s\n", profile.Complexity)
	cmd.Printf("Structure:  chapters=%t sections=%t tables=%t\n",
		profile.HasChapters, profile.HasSections, profile.HasTables)
	cmd.Printf("Chunks:     %d\n\n", len(chunks))
	for _, c := range chunks {
		label := c.Section
		if c.Subsection != "" {
			label += "/" + c.Subsection
		}
		cmd.Printf("#%d %s %s [%d:%d]\n", c.Index, c.Level, label, c.StartOffset, c.EndOffset)
		if len(c.LegalReferences) > 0 {
			cmd.Printf("   references: %s\n", strings.Join(c.LegalReferences, ", "))
		}
		if len(c.ClauseTags) > 0 {
			cmd.Printf("   clauses:    %s\n", strings.Join(c.ClauseTags, ", "))
		}
		cmd.Printf("   %s\n", preview(c.Body(), 80))
	}
	return nil
}

// preview returns the first line of s, cut to at most n runes.
func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
