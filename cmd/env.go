package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/port-research/internal/research"
	"github.com/sells-group/port-research/internal/store"
	"github.com/sells-group/port-research/pkg/anthropic"
	"github.com/sells-group/port-research/pkg/perplexity"
)

// env bundles the wired dependencies a command needs.
type env struct {
	Store  store.Store
	Runner *research.Runner
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openStore picks the backend from config. SQLite is for local use; postgres
// is the deployment default.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires the store, external clients, and runner from config.
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Perplexity.Key == "" {
		return nil, eris.New("perplexity.key is required (PORTRESEARCH_PERPLEXITY_KEY)")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required (PORTRESEARCH_ANTHROPIC_KEY)")
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	provider := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModels(cfg.Perplexity.Model, cfg.Perplexity.DeepModel),
		perplexity.WithRateLimit(cfg.Perplexity.RatePerSecond),
	)
	llm := anthropic.NewClient(cfg.Anthropic.Key)

	runner := research.NewRunner(provider, llm, st, research.Config{
		StandardTimeout: time.Duration(cfg.Research.StandardTimeoutSecs) * time.Second,
		DeepTimeout:     time.Duration(cfg.Research.DeepTimeoutSecs) * time.Second,
		RetryBackoff:    time.Duration(cfg.Research.RetryBackoffSecs) * time.Second,
		MaxReportChars:  cfg.Research.MaxReportChars,
		ExtractModel:    cfg.Anthropic.SonnetModel,
		AnalysisModel:   cfg.Anthropic.HaikuModel,
	})

	return &env{Store: st, Runner: runner}, nil
}
