package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the reasoning model, retrieval backend, rate-limit budget
and other settings. Values are stored in config.toml in the data directory.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a single configuration value. Run 'lexcheck config keys' for the list
of keys.

Examples:
  lexcheck config set llm.provider anthropic
  lexcheck config set search.backend qdrant
  lexcheck config set budget.tokens_per_minute 40000`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, key := range services.SettableKeys() {
			cmd.Println(key)
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and reach the providers",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the LLM provider interactively",
	Args:  cobra.NoArgs,
	RunE:  runConfigLLM,
}

func init() {
	configKeysCmd.Annotations = map[string]string{annotationNoServices: "true"}
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configLLMCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	printAPIKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
	if settings.LLM.RequestsPerSecond > 0 {
		cmd.Printf("  Requests/s: %g\n", settings.LLM.RequestsPerSecond)
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Backend: %s\n", settings.Search.Backend)
	cmd.Printf("  Top K: %d\n", settings.Search.TopK)
	cmd.Printf("  Score threshold: %.2f\n", settings.Search.ScoreThreshold)
	if settings.Search.IndexID != "" {
		cmd.Printf("  Index: %s\n", settings.Search.IndexID)
	}
	if settings.Search.Backend == domain.SearchBackendQdrant {
		q := settings.Search.Qdrant
		cmd.Printf("  Qdrant: %s:%d/%s (tls=%t)\n", q.Host, q.Port, q.Collection, q.UseTLS)
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	printAPIKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	b := settings.Budget
	cmd.Println("[Budget]")
	cmd.Printf("  Tokens/minute: %d (margin %.2f, buffer %.2f)\n", b.TokensPerMinute, b.SafetyMargin, b.SafetyBuffer)
	cmd.Printf("  Cooldown: %s\n", b.Cooldown)
	cmd.Println()

	c := settings.Chunking
	cmd.Println("[Chunking]")
	cmd.Printf("  Segmentation: %s\n", c.Segmentation)
	cmd.Printf("  Max request tokens: %d\n", c.MaxRequestTokens)
	cmd.Printf("  Fallback language: %s\n", c.FallbackLanguage)
	cmd.Println()

	if settings.Notify.WebhookURL != "" {
		cmd.Println("[Notify]")
		cmd.Printf("  Webhook: %s\n", settings.Notify.WebhookURL)
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'lexcheck config set' or 'lexcheck config llm' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}
	key, value := args[0], args[1]
	if err := settingsService.SetValue(key, value); err != nil {
		return err
	}
	if strings.HasSuffix(key, "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	var failed []error
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Settings: FAILED: %v\n", err)
		failed = append(failed, err)
	} else {
		cmd.Println("Settings: OK")
	}

	cmd.Print("LLM provider: ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		failed = append(failed, err)
	} else {
		cmd.Println("OK")
	}

	if settings.Search.Backend == domain.SearchBackendQdrant {
		cmd.Print("Embedding provider: ")
		if err := settingsService.ValidateEmbeddingConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			failed = append(failed, err)
		} else {
			cmd.Println("OK")
		}

		cmd.Print("Search backend: ")
		if err := settingsService.ValidateSearchConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			failed = append(failed, err)
		} else {
			cmd.Println("OK")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(failed...))
	}
	return nil
}

func runConfigLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return fmt.Errorf("settings %w", errNotConfigured)
	}
	return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", selectedProvider.Description(), model)
	return nil
}

func printAPIKey(cmd *cobra.Command, provider domain.AIProvider, key string) {
	if !provider.RequiresAPIKey() {
		return
	}
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
