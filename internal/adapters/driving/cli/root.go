// Package cli provides the lexcheck command-line interface.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// version is overridden at build time via SetVersion.
var version = "dev"

// annotationNoServices marks commands that run without bootstrapping services.
const annotationNoServices = "lexcheck/no-services"

var rootCmd = &cobra.Command{
	Use:   "lexcheck",
	Short: "Legal document compliance analysis",
	Long: `lexcheck splits legal documents into sections, retrieves the legal
context relevant to each section and asks a reasoning model whether the
section complies. Section verdicts are aggregated into one overall result.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bootstrapServices,
	PersistentPostRun: func(*cobra.Command, []string) {
		releaseServices()
	},
}

// DocumentReader extracts text and display titles from uploaded files.
type DocumentReader interface {
	driven.TextExtractor

	// Title returns a human-readable title for the file.
	Title(data []byte, contentType, filename string) string
}

// Watcher is a background process tied to long-running commands.
type Watcher interface {
	Start(ctx context.Context) error
	Close() error
}

// Services are the collaborators the commands drive.
type Services struct {
	Analysis driving.AnalysisService
	Chunking driving.ChunkingService
	Settings driving.SettingsService
	Reader   DocumentReader

	// Corpus indexes legal texts. May be nil.
	Corpus driving.CorpusService

	// Prompts is started by long-running commands. May be nil.
	Prompts Watcher

	Logger *logger.Logger
}

// Options are the global flags handed to a Bootstrap function.
type Options struct {
	Home    string
	Verbose bool
	Stderr  io.Writer
}

// Bootstrap builds the services for a command run. The returned cleanup is
// called after the command finishes.
type Bootstrap func(ctx context.Context, opts Options) (Services, func(), error)

var (
	analysisService driving.AnalysisService
	chunkingService driving.ChunkingService
	settingsService driving.SettingsService
	documentReader  DocumentReader
	corpusService   driving.CorpusService
	promptWatcher   Watcher
	cliLogger       *logger.Logger

	bootstrap Bootstrap
	cleanup   func()

	homeDir string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "data directory (default: ~/.lexcheck)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices injects the services used by commands.
func SetServices(s Services) {
	analysisService = s.Analysis
	chunkingService = s.Chunking
	settingsService = s.Settings
	documentReader = s.Reader
	corpusService = s.Corpus
	promptWatcher = s.Prompts
	cliLogger = s.Logger
}

// SetBootstrap registers the function that builds services from the global
// flags. It runs once before any command that needs services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Services are released even when the
// command fails.
func Execute(ctx context.Context) error {
	defer releaseServices()
	return rootCmd.ExecuteContext(ctx)
}

func bootstrapServices(cmd *cobra.Command, _ []string) error {
	if bootstrap == nil || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	services, release, err := bootstrap(cmd.Context(), Options{
		Home:    homeDir,
		Verbose: verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	SetServices(services)
	cleanup = release
	return nil
}

func releaseServices() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

var errNotConfigured = errors.New("service not configured")
