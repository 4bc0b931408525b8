package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-consolidator/internal/consolidate"
	"github.com/sells-group/profile-consolidator/internal/db"
	"github.com/sells-group/profile-consolidator/internal/profile"
	"github.com/sells-group/profile-consolidator/internal/validate"
	anthropicpkg "github.com/sells-group/profile-consolidator/pkg/anthropic"
	"github.com/sells-group/profile-consolidator/pkg/registry"
)

// appEnv holds the initialized store, engine, and validation orchestrator
// shared by the consolidate/validate/serve commands.
type appEnv struct {
	Store        profile.Store
	Engine       *consolidate.Engine
	Orchestrator *validate.Orchestrator
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initEnv opens the configured store and builds the consolidation engine
// and validation orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{
		Store:        st,
		Engine:       consolidate.NewEngine(st, cfg.Consolidate),
		Orchestrator: validate.NewOrchestrator(st, initValidators(), cfg.Validation),
	}
	return env, nil
}

// initStore opens the store named by the configured driver. The sqlite
// driver migrates in place; postgres migrations are run by the migrate
// command.
func initStore(ctx context.Context) (profile.Store, error) {
	switch cfg.Store.Driver {
	case "", "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return profile.NewPostgresStore(pool), nil
	case "sqlite":
		st, err := profile.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initValidators builds the source validator set from config. LLM
// validators are only registered when an Anthropic key is present.
func initValidators() []validate.SourceValidator {
	regOpts := []registry.Option{
		registry.WithAPIToken(cfg.Registry.Key),
		registry.WithRateLimit(cfg.Registry.RequestsPerSec),
	}
	if cfg.Registry.BaseURL != "" {
		regOpts = append(regOpts, registry.WithBaseURL(cfg.Registry.BaseURL))
	}
	regClient := registry.NewClient(regOpts...)

	validators := []validate.SourceValidator{
		validate.NewRegistryValidator(regClient),
		validate.NewWebsiteValidator(&http.Client{Timeout: cfg.Validation.ValidatorTimeout()}),
	}

	if cfg.Anthropic.Key != "" {
		llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
		for _, category := range []string{
			validate.CategoryBasicInfo,
			validate.CategoryFinancial,
			validate.CategoryPersonnel,
		} {
			validators = append(validators, validate.NewLLMValidator(llm, cfg.Anthropic.HaikuModel, category))
		}
	}

	return validators
}
