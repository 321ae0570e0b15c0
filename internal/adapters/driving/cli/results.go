package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

var showCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show a stored analysis",
	Long: `Print a stored analysis result. While the analysis is still running its
job status is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <analysis-id>",
	Short: "Delete a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	showCmd.Flags().StringP("format", "o", string(formatText), "output format: text, json or yaml")
	listCmd.Flags().String("user", "", "only list analyses of this user")
	listCmd.Flags().Int("limit", 20, "maximum number of analyses to list (0 = all)")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return fmt.Errorf("analysis %w", errNotConfigured)
	}
	raw, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("getting format flag: %w", err)
	}
	format, err := parseFormat(raw)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	id := args[0]
	result, err := analysisService.Result(ctx, id)
	if err == nil {
		return writeResult(cmd.OutOrStdout(), result, format)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load analysis: %w", err)
	}

	// No result yet: the job may still be running or may have failed.
	job, jobErr := analysisService.Status(ctx, id)
	if jobErr != nil {
		return fmt.Errorf("analysis %s: %w", id, err)
	}
	switch format {
	case formatJSON:
		return writeJSON(cmd.OutOrStdout(), job)
	case formatYAML:
		return writeYAML(cmd.OutOrStdout(), job)
	default:
		printJob(cmd.OutOrStdout(), job)
		return nil
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	if analysisService == nil {
		return fmt.Errorf("analysis %w", errNotConfigured)
	}
	userID, err := cmd.Flags().GetString("user")
	if err != nil {
		return fmt.Errorf("getting user flag: %w", err)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	summaries, err := analysisService.List(cmd.Context(), userID, limit)
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}
	if len(summaries) == 0 {
		cmd.Println("No analyses found.")
		return nil
	}

	cmd.Printf("%-36s  %-10s  %-13s  %5s  %5s  %s\n", "ID", "STATUS", "VERDICT", "SCORE", "UNITS", "CREATED")
	for _, s := range summaries {
		verdict := "non-compliant"
		if s.IsCompliant {
			verdict = "compliant"
		}
		if s.Status != domain.JobCompleted {
			verdict = "-"
		}
		cmd.Printf("%-36s  %-10s  %-13s  %5.2f  %5d  %s\n",
			s.AnalysisID, s.Status, verdict, s.ComplianceScore, s.UnitCount,
			s.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return fmt.Errorf("analysis %w", errNotConfigured)
	}
	if err := analysisService.Delete(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, domain.ErrJobInProgress) {
			return fmt.Errorf("analysis %s is still running", args[0])
		}
		return fmt.Errorf("delete analysis: %w", err)
	}
	cmd.Printf("Deleted analysis %s\n", args[0])
	return nil
}
