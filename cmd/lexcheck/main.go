// Command lexcheck analyses legal documents for regulatory compliance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/ai"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/extract"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/notify"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/memory"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/tokenizer"
	"github.com/custodia-labs/lexcheck/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexcheck/internal/core/services"
	"github.com/custodia-labs/lexcheck/internal/logger"
	"github.com/custodia-labs/lexcheck/internal/postprocessors"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/chunker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// bootstrap wires the adapters into the core services for one command run.
func bootstrap(_ context.Context, opts cli.Options) (cli.Services, func(), error) {
	log := logger.New(opts.Stderr, opts.Verbose)

	home := opts.Home
	if home == "" {
		dir, err := file.HomeDir()
		if err != nil {
			return cli.Services{}, nil, err
		}
		home = dir
	}

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("load settings: %w", err)
	}

	// chunk, show and config run without a reasoning model; analyze
	// reports the missing provider through settings validation.
	aiServices, err := ai.Build(*settings, log.With("ai"))
	if err != nil {
		log.Debug("reasoning model unavailable: %v", err)
		aiServices = &ai.Services{Index: memory.NewKeywordIndex()}
	}
	for _, w := range aiServices.Warnings {
		log.Warn("%s", w)
	}

	tok := tokenizer.New(settings.LLM.Model, log.With("tokenizer"))
	log.Debug("token counts for %s: exact=%t", settings.LLM.Model, tok.Exact())

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, postprocessors.Deps{
		Tokenizer:        tok,
		Logger:           log.With("chunker"),
		FallbackLanguage: settings.Chunking.FallbackLanguage,
	})
	pipeline, err := postprocessors.Build(registry, nil, nil)
	if err != nil {
		aiServices.Close()
		return cli.Services{}, nil, err
	}
	classifier := chunker.NewClassifier(chunker.WithFallbackLanguage(settings.Chunking.FallbackLanguage))
	chunkingService := services.NewChunkingService(pipeline, classifier)

	promptDir := filepath.Join(home, "prompts")
	prompts, err := file.NewPromptStore(promptDir, services.DefaultPrompts)
	if err != nil {
		aiServices.Close()
		return cli.Services{}, nil, fmt.Errorf("load prompts: %w", err)
	}
	store, err := sqlite.NewStore(home)
	if err != nil {
		aiServices.Close()
		return cli.Services{}, nil, fmt.Errorf("open store: %w", err)
	}

	// The keyword index lives in memory and is rebuilt from the stored corpus.
	legalIndex := services.NewPersistentIndex(aiServices.Index, store, aiServices.Embedding == nil, log.With("corpus"))

	segmenter := services.NewSegmenter(aiServices.LLM, tok, settings.Chunking, log.With("segmenter"))
	segmenter.SetPromptStore(prompts)
	analyzer := services.NewSectionAnalyzer(aiServices.LLM, legalIndex, settings.Search, log.With("analyzer"))
	analyzer.SetPromptStore(prompts)

	estimator := services.NewBudgetEstimator(tok, settings.Budget)
	orchestrator := services.NewBatchOrchestrator(estimator, settings.Budget,
		services.WithBatchLogger(log.With("batch")))

	results := services.NewCompactResultStore(store, settings.Storage.MaxIndexBytes, log.With("results"))

	eventOpts := []services.EventOption{services.WithEventLogger(log.With("events"))}
	if settings.Notify.MaxAttempts > 0 {
		eventOpts = append(eventOpts, services.WithMaxAttempts(settings.Notify.MaxAttempts))
	}
	events := services.NewEventDispatcher(notify.FromSettings(settings.Notify, log.With("notify")), eventOpts...)

	extractor := extract.New()
	analysisService := services.NewAnalysisService(services.AnalysisDeps{
		Extractor:    extractor,
		Chunking:     chunkingService,
		Segmenter:    segmenter,
		Orchestrator: orchestrator,
		Analyzer:     analyzer,
		Results:      results,
		Events:       events,
		Segmentation: settings.Chunking.Segmentation,
		Logger:       log.With("analysis"),
	})
	corpus := services.NewCorpusService(services.CorpusDeps{
		Extractor: extractor,
		Chunking:  chunkingService,
		Index:     legalIndex,
		Records:   store,
		IndexID:   settings.Search.IndexID,
		Logger:    log.With("corpus"),
	})

	cleanup := func() {
		events.Close()
		if err := store.Close(); err != nil {
			log.Warn("close store: %v", err)
		}
		aiServices.Close()
	}

	return cli.Services{
		Analysis: analysisService,
		Chunking: chunkingService,
		Settings: settingsService,
		Reader:   extractor,
		Corpus:   corpus,
		Prompts:  file.NewPromptWatcher(prompts, promptDir, 0, log.With("prompts")),
		Logger:   log,
	}, cleanup, nil
}
