package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/chunker"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/enrich"
)

// DefaultChain is the processor order used when none is configured.
var DefaultChain = []string{"hierarchical", "legal_references", "clause_tags", "section_labels"}

// Deps are shared collaborators handed to processor builders.
type Deps struct {
	Tokenizer        driven.Tokenizer
	Logger           *logger.Logger
	FallbackLanguage domain.Language
}

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry, deps Deps) {
	r.Register("hierarchical", func(cfg map[string]any) (driven.PostProcessor, error) {
		return buildHierarchical(cfg, deps), nil
	})
	r.Register("fixed", buildFixed)
	r.Register("legal_references", func(map[string]any) (driven.PostProcessor, error) {
		return enrich.NewReferences(), nil
	})
	r.Register("clause_tags", func(map[string]any) (driven.PostProcessor, error) {
		return enrich.NewClauseTags(), nil
	})
	r.Register("section_labels", func(map[string]any) (driven.PostProcessor, error) {
		return enrich.NewSectionLabels(), nil
	})
}

// Build creates a pipeline from processor names. cfgs holds optional
// per-processor config keyed by name.
func Build(r *Registry, names []string, cfgs map[string]map[string]any) (*Pipeline, error) {
	if len(names) == 0 {
		names = DefaultChain
	}
	p := NewPipeline()
	for _, name := range names {
		proc, err := r.Build(name, cfgs[name])
		if err != nil {
			return nil, fmt.Errorf("build pipeline: %w", err)
		}
		p.Add(proc)
	}
	return p, nil
}

// buildHierarchical creates the structural chunker.
// Supported config keys:
//   - complexity_threshold (int): Bytes above which structured text is complex (default: 20000)
//   - fallback_chunk_size (int): Fixed chunk size used on degradation (default: 1000)
func buildHierarchical(cfg map[string]any, deps Deps) *chunker.Hierarchical {
	classifierOpts := []chunker.ClassifierOption{chunker.WithFallbackLanguage(deps.FallbackLanguage)}
	if n := getIntFromConfig(cfg, "complexity_threshold"); n > 0 {
		classifierOpts = append(classifierOpts, chunker.WithComplexityThreshold(n))
	}

	opts := []chunker.HierarchicalOption{
		chunker.WithClassifier(chunker.NewClassifier(classifierOpts...)),
		chunker.WithTokenizer(deps.Tokenizer),
		chunker.WithLogger(deps.Logger),
	}
	if size := getIntFromConfig(cfg, "fallback_chunk_size"); size > 0 {
		opts = append(opts, chunker.WithFallback(chunker.NewFixed(chunker.WithChunkSize(size))))
	}
	return chunker.NewHierarchical(opts...)
}

// buildFixed creates a fixed-size chunker from generic config.
// Supported config keys:
//   - chunk_size (int): Bytes per chunk (default: 1000)
//   - overlap (int): Overlapping bytes between chunks (default: 200)
func buildFixed(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}

	return chunker.NewFixed(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
